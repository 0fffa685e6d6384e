package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medtrack-api/internal/access"
	"github.com/jwalitptl/medtrack-api/internal/middleware"
	"github.com/jwalitptl/medtrack-api/internal/model"
	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthenticator map[string]model.Caller

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (*model.Caller, error) {
	caller, ok := f[token]
	if !ok {
		return nil, apperrors.Unauthenticated("Token is invalid or expired.")
	}
	return &caller, nil
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Detail
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	clerk := model.Caller{UserID: uuid.New(), Username: "frank", Role: model.RoleFrontDesk}
	admin := model.Caller{UserID: uuid.New(), Username: "root", Role: model.RoleAdmin}
	auth := middleware.NewAuthMiddleware(fakeAuthenticator{"clerk": clerk, "admin": admin})

	engine := gin.New()
	engine.GET("/admin-stat", auth.Authenticate(), middleware.RequireRole(access.ReadAdminStat), func(c *gin.Context) {
		caller, ok := middleware.CallerFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"username": caller.Username})
	})

	tests := []struct {
		name   string
		header string
		status int
		detail string
	}{
		{"missing header", "", http.StatusUnauthorized, "Authentication credentials were not provided."},
		{"wrong scheme", "Token admin", http.StatusUnauthorized, "Authorization header must be of the form: Bearer <token>."},
		{"empty token", "Bearer ", http.StatusUnauthorized, "Authorization header must be of the form: Bearer <token>."},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, "Token is invalid or expired."},
		{"wrong role", "Bearer clerk", http.StatusForbidden, "You do not have permission to perform this action."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin-stat", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(engine, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.detail, detail(t, w))
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/admin-stat", nil)
	req.Header.Set("Authorization", "bearer admin")
	w := serve(engine, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"root"}`, w.Body.String())
}

func TestRequireRole_WithoutCaller(t *testing.T) {
	engine := gin.New()
	engine.GET("/x", middleware.RequireRole(access.ReadUserInfo), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestErrorHandler(t *testing.T) {
	engine := gin.New()
	engine.Use(middleware.ErrorHandler())
	engine.GET("/field", func(c *gin.Context) {
		_ = c.Error(apperrors.Field("mobile_number", "Mobile number must be exactly 10 digits."))
	})
	engine.GET("/missing", func(c *gin.Context) { _ = c.Error(apperrors.NotFound("Patient not found.")) })
	engine.GET("/boom", func(c *gin.Context) { _ = c.Error(apperrors.Internal("failed to query", assert.AnError)) })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/field", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"errors":{"mobile_number":"Mobile number must be exactly 10 digits."}}`, w.Body.String())

	w = serve(engine, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Patient not found.", detail(t, w))

	w = serve(engine, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error.", detail(t, w))
	assert.NotContains(t, w.Body.String(), "failed to query")
}

func TestRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Recovery())
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error.", detail(t, w))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(middleware.ContextRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.HeaderXRequestID, "abc-123")
	w := serve(engine, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(middleware.HeaderXRequestID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.HeaderXRequestID, strings.Repeat("x", 100))
	w = serve(engine, req)
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err, "oversized ids are replaced")
}

func TestRateLimiter_PerClient(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{RPS: 0.001, Burst: 1})
	engine := gin.New()
	engine.POST("/login", limiter.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	request := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		return serve(engine, req).Code
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1:1001"))
	assert.Equal(t, http.StatusOK, request("10.0.0.2:1000"), "other clients have their own bucket")
}

func TestCORS(t *testing.T) {
	engine := gin.New()
	engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins: []string{"https://app.example.com"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Authorization"},
		MaxAge:       600,
	}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := serve(engine, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(engine, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSizeLimit(t *testing.T) {
	engine := gin.New()
	engine.POST("/", middleware.SizeLimit(8), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = serve(engine, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	engine := gin.New()
	engine.Use(middleware.SecurityHeaders())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
