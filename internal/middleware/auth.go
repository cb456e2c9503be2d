package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/odontocare-api/internal/handler"
	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/internal/rbac"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
)

const ContextCaller = "caller"

// IdentityResolver turns a bearer token into the authenticated caller.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*model.Caller, error)
}

type AuthMiddleware struct {
	identities IdentityResolver
}

func NewAuthMiddleware(identities IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{identities: identities}
}

func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", apperrors.Unauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.Unauthorized("invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// Authenticate verifies the bearer token and stores the caller in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			handler.Error(c, err)
			c.Abort()
			return
		}

		caller, err := m.identities.ResolveIdentity(c.Request.Context(), token)
		if err != nil {
			handler.Error(c, err)
			c.Abort()
			return
		}

		setCaller(c, caller)
		c.Next()
	}
}

// OptionalAuthenticate stores the caller when a valid token is present and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err == nil {
			if caller, err := m.identities.ResolveIdentity(c.Request.Context(), token); err == nil {
				setCaller(c, caller)
			}
		}
		c.Next()
	}
}

// RequirePermission must run after Authenticate.
func (m *AuthMiddleware) RequirePermission(action rbac.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := rbac.Authorize(CallerFromContext(c), action); err != nil {
			handler.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

func setCaller(c *gin.Context, caller *model.Caller) {
	c.Set(ContextCaller, caller)
	logger := LoggerFromContext(c).With().
		Int64("user_id", caller.UserID).
		Str("role", caller.Role.String()).
		Logger()
	c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
}

// CallerFromContext returns the authenticated caller, or nil for anonymous
// requests.
func CallerFromContext(c *gin.Context) *model.Caller {
	v, ok := c.Get(ContextCaller)
	if !ok {
		return nil
	}
	caller, _ := v.(*model.Caller)
	return caller
}
