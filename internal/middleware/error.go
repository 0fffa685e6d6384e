package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
	"github.com/jwalitptl/medtrack-api/pkg/httputil"
)

// ErrorHandler renders the last error a handler attached with c.Error.
// Server errors are logged with their cause; the client only sees a
// generic message.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		lastErr := c.Errors.Last()
		status := http.StatusInternalServerError
		if appErr, ok := apperrors.As(lastErr.Err); ok {
			status = appErr.StatusCode()
		}

		event := log.Debug()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Err(lastErr.Err).
			Str("request_id", c.GetString(ContextRequestID)).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Int("status", status).
			Msg("Request error")

		if c.Writer.Written() {
			return
		}
		httputil.RespondWithError(c, lastErr.Err)
	}
}
