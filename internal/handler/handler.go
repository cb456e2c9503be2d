package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves the unauthenticated service endpoints.
type Handler struct {
	db       Pinger
	gatherer prometheus.Gatherer
}

// NewHandler creates a new handler instance. db may be nil when there is no
// database to check.
func NewHandler(db Pinger, gatherer prometheus.Gatherer) *Handler {
	return &Handler{db: db, gatherer: gatherer}
}

func (h *Handler) Banner(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "OdontoCare API",
		"status":  "OK",
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, &Response{
				Status:  "error",
				Message: "database unavailable",
				Data:    gin.H{"status": "DOWN"},
			})
			return
		}
	}

	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
	}))
}

func (h *Handler) MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}
