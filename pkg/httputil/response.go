package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jwalitptl/medtrack-api/pkg/errors"
)

// DetailResponse is the body for messages and non-field errors.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// ValidationResponse is the body for field-keyed validation errors.
type ValidationResponse struct {
	Errors map[string]string `json:"errors"`
}

// RespondWithDetail sends {"detail": message} with the given status.
func RespondWithDetail(c *gin.Context, status int, message string) {
	c.JSON(status, DetailResponse{Detail: message})
}

// RespondWithError renders err. Validation errors with fields become
// {"errors": {...}}; everything else becomes {"detail": ...}. Errors that are
// not AppErrors are reported as a generic 500.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		RespondWithDetail(c, http.StatusInternalServerError, "Internal server error.")
		return
	}

	status := appErr.StatusCode()
	switch {
	case appErr.Kind == errors.KindValidation && len(appErr.Fields) > 0:
		c.JSON(status, ValidationResponse{Errors: appErr.Fields})
	case status == http.StatusInternalServerError:
		RespondWithDetail(c, status, "Internal server error.")
	default:
		RespondWithDetail(c, status, appErr.Message)
	}
}
