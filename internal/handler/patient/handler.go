package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medtrack-api/internal/access"
	"github.com/jwalitptl/medtrack-api/internal/middleware"
	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/service/patient"
	"github.com/jwalitptl/medtrack-api/pkg/httputil"
)

type Handler struct {
	service patient.PatientService
}

func NewHandler(service patient.PatientService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", middleware.RequireRole(access.CreatePatient), h.CreatePatient)
		patients.GET("", middleware.RequireRole(access.ListPatients), h.ListPatients)
		patients.GET("/:id", middleware.RequireRole(access.ReadPatient), h.GetPatient)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	var req model.CreatePatientRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	patient, err := h.service.CreatePatient(c.Request.Context(), caller, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, patient)
}

// ListPatients filters by ?name= (first-name fragment) and ?city= (exact).
func (h *Handler) ListPatients(c *gin.Context) {
	filter := model.PatientFilter{
		Name: c.Query("name"),
		City: c.Query("city"),
	}

	patients, err := h.service.ListPatients(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, patients)
}

func (h *Handler) GetPatient(c *gin.Context) {
	patient, err := h.service.GetPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, patient)
}
