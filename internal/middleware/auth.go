package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medtrack-api/internal/access"
	"github.com/jwalitptl/medtrack-api/internal/model"
	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
	"github.com/jwalitptl/medtrack-api/pkg/httputil"
)

// ContextCaller is the gin context key of the authenticated model.Caller.
const ContextCaller = "caller"

const (
	msgNoCredentials = "Authentication credentials were not provided."
	msgBadHeader     = "Authorization header must be of the form: Bearer <token>."
	msgForbidden     = "You do not have permission to perform this action."
)

// Authenticator resolves a bearer access token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Caller, error)
}

type AuthMiddleware struct {
	authenticator Authenticator
}

func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Authenticate verifies the bearer token and stores the caller in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			abort(c, apperrors.Unauthenticated(msgNoCredentials))
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abort(c, apperrors.Unauthenticated(msgBadHeader))
			return
		}

		caller, err := m.authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(ContextCaller, *caller)
		c.Next()
	}
}

// RequireRole lets the request through only when the caller's role may
// perform op. It must run after Authenticate.
func RequireRole(op access.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			abort(c, apperrors.Unauthenticated(msgNoCredentials))
			return
		}
		if !access.Allowed(op, caller.Role) {
			abort(c, apperrors.Forbidden(msgForbidden))
			return
		}
		c.Next()
	}
}

// CallerFrom returns the caller stored by Authenticate.
func CallerFrom(c *gin.Context) (model.Caller, bool) {
	v, ok := c.Get(ContextCaller)
	if !ok {
		return model.Caller{}, false
	}
	caller, ok := v.(model.Caller)
	return caller, ok
}

func abort(c *gin.Context, err error) {
	httputil.RespondWithError(c, err)
	c.Abort()
}
