package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medtrack-api/internal/access"
	"github.com/jwalitptl/medtrack-api/internal/middleware"
	"github.com/jwalitptl/medtrack-api/internal/service/notification"
)

type Handler struct {
	svc notification.Service
}

func NewHandler(svc notification.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/notifications", middleware.RequireRole(access.ReadNotifications), h.List)
}

func (h *Handler) List(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	notifications, err := h.svc.List(c.Request.Context(), caller)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}
