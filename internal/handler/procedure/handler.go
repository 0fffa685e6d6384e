package procedure

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medtrack-api/internal/access"
	"github.com/jwalitptl/medtrack-api/internal/middleware"
	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/service/procedure"
	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
	"github.com/jwalitptl/medtrack-api/pkg/httputil"
)

// reportField is the multipart field carrying the PDF report.
const reportField = "report"

type Handler struct {
	service procedure.ProcedureService
}

func NewHandler(service procedure.ProcedureService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	procedures := r.Group("/procedures")
	{
		procedures.POST("", middleware.RequireRole(access.CreateProcedure), h.CreateProcedure)
		procedures.GET("", middleware.RequireRole(access.ListProcedures), h.ListProcedures)
		procedures.GET("/:id", middleware.RequireRole(access.ReadProcedure), h.GetProcedure)
		procedures.PUT("/:id", middleware.RequireRole(access.UpdateProcedure), h.UpdateProcedure)
		procedures.DELETE("/:id", middleware.RequireRole(access.DeleteProcedure), h.DeleteProcedure)
		procedures.GET("/:id/report", middleware.RequireRole(access.DownloadReport), h.DownloadReport)
	}
}

// CreateProcedure accepts JSON, or multipart form data with an optional
// report file.
func (h *Handler) CreateProcedure(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	var req model.CreateProcedureRequest
	if err := httputil.Bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	report, closeReport, err := reportUpload(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer closeReport()

	procedure, err := h.service.CreateProcedure(c.Request.Context(), caller, req, report)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, procedure)
}

// ListProcedures lists all procedures, or one patient's with ?patient_id=.
func (h *Handler) ListProcedures(c *gin.Context) {
	procedures, err := h.service.ListProcedures(c.Request.Context(), c.Query("patient_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, procedures)
}

func (h *Handler) GetProcedure(c *gin.Context) {
	procedure, err := h.service.GetProcedure(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, procedure)
}

// UpdateProcedure applies a partial update; absent fields are unchanged.
func (h *Handler) UpdateProcedure(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	var req model.UpdateProcedureRequest
	if err := httputil.Bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	report, closeReport, err := reportUpload(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer closeReport()

	procedure, err := h.service.UpdateProcedure(c.Request.Context(), caller, c.Param("id"), req, report)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, procedure)
}

func (h *Handler) DeleteProcedure(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	if err := h.service.DeleteProcedure(c.Request.Context(), caller, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithDetail(c, http.StatusOK, "Procedure deleted.")
}

func (h *Handler) DownloadReport(c *gin.Context) {
	rc, filename, err := h.service.OpenReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filename),
	})
}

// reportUpload returns the uploaded report of a multipart request, or nil
// when there is none.
func reportUpload(c *gin.Context) (*model.ReportUpload, func(), error) {
	noop := func() {}
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, noop, nil
	}

	fh, err := c.FormFile(reportField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, apperrors.Field(reportField, "The submitted data was not a file.")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, noop, apperrors.Internal("failed to open uploaded report", err)
	}
	report := &model.ReportUpload{Filename: fh.Filename, Size: fh.Size, Content: f}
	return report, func() { _ = f.Close() }, nil
}
