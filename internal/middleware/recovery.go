package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/odontocare-api/internal/handler"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
)

// Recovery handles panics and logs them appropriately
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				LoggerFromContext(c).Error().
					Interface("error", err).
					Str("stack", string(debug.Stack())).
					Str("client_ip", c.ClientIP()).
					Msg("Request panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError,
					handler.NewKindErrorResponse(apperrors.KindInternal, "internal server error"))
			}
		}()
		c.Next()
	}
}
