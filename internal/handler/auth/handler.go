package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medtrack-api/internal/access"
	"github.com/jwalitptl/medtrack-api/internal/middleware"
	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/pkg/httputil"
)

// Service is the part of the auth service the handler drives.
type Service interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, header string) (*model.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
	Logout(ctx context.Context, caller model.Caller, refreshToken string) error
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the credential endpoints on public and logout on
// the authenticated group.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/register", h.Register)
	public.POST("/login", h.Login)
	public.POST("/token/refresh", h.RefreshToken)

	protected.POST("/logout", middleware.RequireRole(access.Logout), h.Logout)
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	if _, err := h.svc.Register(c.Request.Context(), req); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, model.RegisterResponse{Message: "User registered successfully."})
}

func (h *Handler) Login(c *gin.Context) {
	resp, err := h.svc.Login(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) RefreshToken(c *gin.Context) {
	var req model.RefreshTokenRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *Handler) Logout(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	var req model.RefreshTokenRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.svc.Logout(c.Request.Context(), caller, req.RefreshToken); err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithDetail(c, http.StatusOK, "Successfully logged out.")
}
