package router_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authhandler "github.com/jwalitptl/medtrack-api/internal/handler/auth"
	notificationhandler "github.com/jwalitptl/medtrack-api/internal/handler/notification"
	patienthandler "github.com/jwalitptl/medtrack-api/internal/handler/patient"
	procedurehandler "github.com/jwalitptl/medtrack-api/internal/handler/procedure"
	promhandler "github.com/jwalitptl/medtrack-api/internal/handler/prometheus"
	statshandler "github.com/jwalitptl/medtrack-api/internal/handler/stats"
	userhandler "github.com/jwalitptl/medtrack-api/internal/handler/user"
	"github.com/jwalitptl/medtrack-api/internal/middleware"
	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/router"
	authsvc "github.com/jwalitptl/medtrack-api/internal/service/auth"
	notificationsvc "github.com/jwalitptl/medtrack-api/internal/service/notification"
	patientsvc "github.com/jwalitptl/medtrack-api/internal/service/patient"
	proceduresvc "github.com/jwalitptl/medtrack-api/internal/service/procedure"
	"github.com/jwalitptl/medtrack-api/internal/service/servicetest"
	usersvc "github.com/jwalitptl/medtrack-api/internal/service/user"
	"github.com/jwalitptl/medtrack-api/pkg/auth"
	"github.com/jwalitptl/medtrack-api/pkg/security"
)

const password = "Str0ng!Pass"

type app struct {
	t      *testing.T
	engine *gin.Engine
	env    *servicetest.Env
}

func newApp(t *testing.T) *app {
	t.Helper()
	env := servicetest.New()
	logger := zerolog.Nop()

	authService := authsvc.NewService(
		env.Store.Transactor(), env.Store.Users(), env.Store.Roles(), env.Validator,
		security.NewBcryptHasher(bcrypt.MinCost),
		auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "medtrack"}),
		auth.NewMemoryDenylist(time.Minute),
		env.Pipeline, nil, logger,
	)

	handlers := router.Handlers{
		Metrics:      promhandler.New(prometheus.NewRegistry(), "medtrack"),
		Auth:         authhandler.NewHandler(authService),
		User:         userhandler.NewHandler(usersvc.NewService(env.Store.Users())),
		Notification: notificationhandler.NewHandler(notificationsvc.NewService(env.Store.Notifications())),
		Stats:        statshandler.NewHandler(env.Stats),
		Patient: patienthandler.NewHandler(patientsvc.NewService(
			env.Store.Transactor(), env.Store.Patients(), env.Validator, env.Pipeline, logger)),
		Procedure: procedurehandler.NewHandler(proceduresvc.NewService(
			env.Store.Transactor(), env.Store.Procedures(), env.Store.Patients(), env.Files,
			env.Validator, env.Pipeline, 1<<20, logger)),
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(authService), handlers, router.RouterConfig{
		Mode:         gin.TestMode,
		CORS:         middleware.CORSConfig{AllowOrigins: []string{"*"}},
		MaxBodyBytes: 2 << 20,
	})
	r.Setup()
	return &app{t: t, engine: r.Engine(), env: env}
}

func (a *app) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *app) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, token)
}

func (a *app) register(username string, role model.Role) {
	w := a.do(http.MethodPost, "/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": password,
		"role":     role.String(),
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(a.t, `{"message":"User registered successfully."}`, w.Body.String())
}

func (a *app) login(username string) model.LoginResponse {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(username+":"+password)))
	w := a.send(req, "")
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var resp model.LoginResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func patientBody() map[string]string {
	return map[string]string{
		"first_name":                      "Ann",
		"last_name":                       "Lee",
		"mobile_number":                   "9876543210",
		"address":                         "1 Main St",
		"gender":                          "F",
		"birthdate":                       "1990-01-02",
		"email":                           "ann@example.com",
		"city":                            "Pune",
		"state":                           "MH",
		"pincode":                         "411001",
		"emergency_contact_name":          "Bo Lee",
		"emergency_contact_mobile_number": "9123456780",
		"language":                        "English",
	}
}

func TestClinicalWorkflow(t *testing.T) {
	a := newApp(t)
	a.register("alice", model.RoleDoctor)
	a.register("frank", model.RoleFrontDesk)
	a.register("root", model.RoleAdmin)

	alice := a.login("alice")
	assert.Equal(t, model.RoleDoctor, alice.Role)
	frank := a.login("frank")
	root := a.login("root")

	w := a.do(http.MethodPost, "/patients", frank.Access, patientBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var patient model.Patient
	decode(t, w, &patient)
	assert.Equal(t, model.GenderFemale, patient.Gender)

	w = a.do(http.MethodGet, "/admin-stat", frank.Access, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = a.do(http.MethodGet, "/patients", alice.Access, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, "/procedures", alice.Access, map[string]string{
		"patient":            patient.ID.String(),
		"status":             "COMPLETED",
		"category":           "Surgical",
		"procedure_name":     "Appendectomy",
		"procedure_datetime": "2024-05-01T09:30:00Z",
		"clinic_address":     "1 Clinic Rd",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var procedure model.Procedure
	decode(t, w, &procedure)
	assert.Equal(t, "completed", procedure.Status)
	assert.Equal(t, "alice", procedure.CreatedBy.Username)

	w = a.do(http.MethodGet, "/notifications", alice.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notes []model.Notification
	decode(t, w, &notes)
	require.Len(t, notes, 1)
	assert.Equal(t, "A procedure Appendectomy for patient Ann Lee has been created.", notes[0].Message)

	w = a.do(http.MethodGet, "/admin-stat", root.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stat model.AdminStat
	decode(t, w, &stat)
	assert.Equal(t, int64(1), stat.TotalPatients)
	assert.Equal(t, int64(1), stat.TotalProcedures)
	assert.Equal(t, int64(1), stat.DoctorUsers)
	assert.Equal(t, int64(1), stat.FrontDeskUsers)
	assert.Equal(t, int64(1), stat.AdminUsers)

	w = a.do(http.MethodGet, "/procedures?patient_id="+patient.ID.String(), alice.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Procedure
	decode(t, w, &list)
	assert.Len(t, list, 1)

	w = a.do(http.MethodGet, "/procedures?patient_id=nope", alice.Access, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"errors":{"patient_id":"Must be a valid UUID."}}`, w.Body.String())

	w = a.do(http.MethodPut, "/procedures/"+procedure.ID.String(), alice.Access, map[string]string{"status": "on-hold"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &procedure)
	assert.Equal(t, "on-hold", procedure.Status)
	assert.Equal(t, 2, a.env.Store.CountNotifications(alice.ID))
}

func TestAuthLifecycle(t *testing.T) {
	a := newApp(t)
	a.register("alice", model.RoleDoctor)
	alice := a.login("alice")

	w := a.do(http.MethodPost, "/register", "", map[string]string{
		"username": "alice", "email": "x@example.com", "password": "weak", "role": "Nurse",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	decode(t, w, &body)
	assert.Contains(t, body.Errors, "username")
	assert.Contains(t, body.Errors, "password")
	assert.Contains(t, body.Errors, "role")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", nil)
	req.Header.Set("Authorization", base64.StdEncoding.EncodeToString([]byte("alice:wrong")))
	w = a.send(req, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodGet, "/user", alice.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info model.UserInfo
	decode(t, w, &info)
	assert.Equal(t, "alice", info.Username)

	w = a.do(http.MethodPost, "/token/refresh", "", map[string]string{"refresh_token": alice.Refresh})
	require.Equal(t, http.StatusOK, w.Code)
	var pair model.TokenPair
	decode(t, w, &pair)

	w = a.do(http.MethodPost, "/token/refresh", "", map[string]string{"refresh_token": alice.Refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "refresh tokens are single use")

	w = a.do(http.MethodPost, "/logout", pair.Access, map[string]string{"refresh_token": pair.Refresh})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"detail":"Successfully logged out."}`, w.Body.String())

	w = a.do(http.MethodPost, "/token/refresh", "", map[string]string{"refresh_token": pair.Refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodGet, "/notifications", alice.Access, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"No notifications available."}`, w.Body.String())
}

func TestReportUploadAndDelete(t *testing.T) {
	a := newApp(t)
	a.register("alice", model.RoleDoctor)
	a.register("root", model.RoleAdmin)
	alice := a.login("alice")
	root := a.login("root")
	patient := a.env.CreatePatient("Ann", "Lee")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"patient":            patient.ID.String(),
		"status":             "completed",
		"category":           "diagnostic",
		"procedure_name":     "MRI",
		"procedure_datetime": "2024-05-01T09:30:00Z",
		"clinic_address":     "1 Clinic Rd",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("report", "scan.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 mri"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/procedures", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := a.send(req, alice.Access)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var procedure model.Procedure
	decode(t, w, &procedure)
	require.NotNil(t, procedure.Report)
	assert.Equal(t, 1, a.env.Files.Len())

	w = a.do(http.MethodGet, "/procedures/"+procedure.ID.String()+"/report", alice.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "scan.pdf")
	assert.Equal(t, "%PDF-1.4 mri", w.Body.String())

	w = a.do(http.MethodDelete, "/procedures/"+procedure.ID.String(), alice.Access, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodDelete, "/procedures/"+procedure.ID.String(), root.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"detail":"Procedure deleted."}`, w.Body.String())
	assert.Zero(t, a.env.Files.Len())

	w = a.do(http.MethodGet, "/procedures/"+procedure.ID.String(), root.Access, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"Procedure not found."}`, w.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)

	w := a.do(http.MethodGet, "/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "1.0", w.Header().Get("X-API-Version"))

	w = a.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `medtrack_http_requests_total{method="GET",path="/api/v1/user",status="401"} 1`)
}
