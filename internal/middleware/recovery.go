package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/medtrack-api/pkg/httputil"
)

// Recovery turns a panic into a 500 and logs the stack with the request's
// logger.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				zerolog.Ctx(c.Request.Context()).Error().
					Interface("error", err).
					Str("stack", string(debug.Stack())).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("client_ip", c.ClientIP()).
					Msg("Request panic recovered")

				httputil.RespondWithDetail(c, http.StatusInternalServerError, "Internal server error.")
				c.Abort()
			}
		}()
		c.Next()
	}
}
