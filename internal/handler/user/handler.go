package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medtrack-api/internal/access"
	"github.com/jwalitptl/medtrack-api/internal/middleware"
	"github.com/jwalitptl/medtrack-api/internal/service/user"
)

type Handler struct {
	svc user.UserServicer
}

func NewHandler(svc user.UserServicer) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/user", middleware.RequireRole(access.ReadUserInfo), h.GetUser)
}

// GetUser lists every user for admins and the caller's own record otherwise.
func (h *Handler) GetUser(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	result, err := h.svc.Visible(c.Request.Context(), caller)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
