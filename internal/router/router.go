package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medtrack-api/internal/handler/auth"
	"github.com/jwalitptl/medtrack-api/internal/handler/health"
	"github.com/jwalitptl/medtrack-api/internal/handler/notification"
	"github.com/jwalitptl/medtrack-api/internal/handler/patient"
	"github.com/jwalitptl/medtrack-api/internal/handler/procedure"
	"github.com/jwalitptl/medtrack-api/internal/handler/prometheus"
	"github.com/jwalitptl/medtrack-api/internal/handler/stats"
	"github.com/jwalitptl/medtrack-api/internal/handler/user"
	"github.com/jwalitptl/medtrack-api/internal/middleware"
)

const apiVersion = "1.0"

// Handler is implemented by every handler mounted on the authenticated group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Handlers are the route owners. Health and Metrics are optional.
type Handlers struct {
	Health       *health.Handler
	Metrics      *prometheus.Handler
	Auth         *auth.Handler
	User         *user.Handler
	Notification *notification.Handler
	Stats        *stats.Handler
	Patient      *patient.Handler
	Procedure    *procedure.Handler
}

type RouterConfig struct {
	Mode           string
	RateLimit      *middleware.RateLimiter
	CORS           middleware.CORSConfig
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   RouterConfig
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()
	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		config:   config,
	}

	engine.Use(middleware.RequestID(), middleware.Logger())
	if handlers.Metrics != nil {
		engine.Use(handlers.Metrics.Middleware())
	}
	engine.Use(
		middleware.Recovery(),
		middleware.ErrorHandler(),
		middleware.SecurityHeaders(),
		middleware.CORS(config.CORS),
		middleware.SizeLimit(config.MaxBodyBytes),
		middleware.Timeout(config.RequestTimeout),
	)
	return r
}

// Setup mounts every route under /api/v1.
func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", apiVersion)
		c.Next()
	})

	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(api)
	}
	if r.handlers.Metrics != nil {
		api.GET("/metrics", r.handlers.Metrics.Handler())
	}

	public := api.Group("")
	if r.config.RateLimit != nil {
		public.Use(r.config.RateLimit.RateLimit())
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	r.handlers.Auth.RegisterRoutes(public, protected)
	for _, h := range []Handler{
		r.handlers.User,
		r.handlers.Notification,
		r.handlers.Stats,
		r.handlers.Patient,
		r.handlers.Procedure,
	} {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
