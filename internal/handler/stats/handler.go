package stats

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medtrack-api/internal/access"
	"github.com/jwalitptl/medtrack-api/internal/middleware"
	"github.com/jwalitptl/medtrack-api/internal/model"
)

type Reader interface {
	Get(ctx context.Context) (*model.AdminStat, error)
}

type Handler struct {
	stats Reader
}

func NewHandler(stats Reader) *Handler {
	return &Handler{stats: stats}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/admin-stat", middleware.RequireRole(access.ReadAdminStat), h.Get)
}

func (h *Handler) Get(c *gin.Context) {
	stat, err := h.stats.Get(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stat)
}
