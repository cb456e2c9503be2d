package router

import (
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/odontocare-api/internal/config"
	"github.com/jwalitptl/odontocare-api/internal/handler"
	"github.com/jwalitptl/odontocare-api/internal/middleware"
	"github.com/jwalitptl/odontocare-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine       *gin.Engine
	config       RouterConfig
	authH        Handler
	adminH       Handler
	appointmentH Handler
	h            *handler.Handler
	metrics      *metrics.Metrics
}

type RouterConfig struct {
	Mode           string
	RequestTimeout time.Duration
	RateLimit      config.RateLimitConfig
	CORS           config.CORSConfig
}

func NewRouter(
	authH Handler,
	adminH Handler,
	appointmentH Handler,
	h *handler.Handler,
	m *metrics.Metrics,
	cfg RouterConfig,
) *Router {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	engine := gin.New()

	r := &Router{
		engine:       engine,
		config:       cfg,
		authH:        authH,
		adminH:       adminH,
		appointmentH: appointmentH,
		h:            h,
		metrics:      m,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		r.metricsMiddleware(),
		middleware.Timeout(cfg.RequestTimeout),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(middleware.DefaultMaxBodySize),
		cors.New(corsConfig(cfg.CORS)),
	)

	return r
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.HeaderXRequestID}
	c.ExposeHeaders = []string{middleware.HeaderXRequestID}
	c.MaxAge = 12 * time.Hour

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	return c
}

func (r *Router) Setup() {
	r.engine.GET("/", r.h.Banner)
	r.engine.GET("/health", r.h.HealthCheck)
	r.engine.GET("/metrics", r.h.MetricsHandler())

	api := r.engine.Group("")

	public := api.Group("")
	if r.config.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  rate.Limit(r.config.RateLimit.RequestsPerSecond),
			Burst: r.config.RateLimit.Burst,
		})
		public.Use(limiter.RateLimit())
	}
	r.authH.RegisterRoutes(public)

	r.adminH.RegisterRoutes(api)
	r.appointmentH.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.ErrorTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		}
	}
}
