package model

import (
	"io"
	"time"

	"github.com/google/uuid"
)

var ProcedureStatuses = []string{
	"preparation", "in-progress", "not-done", "on-hold",
	"stopped", "completed", "entered-in-error", "unknown",
}

var ProcedureCategories = []string{
	"psychiatry", "counseling", "surgical", "diagnostic",
	"chiropractic", "social-service",
}

type Procedure struct {
	ID                uuid.UUID   `json:"id" db:"id"`
	PatientID         uuid.UUID   `json:"patient" db:"patient_id"`
	Status            string      `json:"status" db:"status"`
	Category          string      `json:"category" db:"category"`
	ProcedureName     string      `json:"procedure_name" db:"procedure_name"`
	ProcedureDatetime time.Time   `json:"procedure_datetime" db:"procedure_datetime"`
	ClinicAddress     string      `json:"clinic_address" db:"clinic_address"`
	Notes             *string     `json:"notes" db:"notes"`
	Report            *string     `json:"report" db:"report"`
	CreatedByID       uuid.UUID   `json:"-" db:"created_by"`
	CreatedBy         UserSummary `json:"created_by" db:"creator"`
	CreatedDate       time.Time   `json:"created_date" db:"created_date"`
	UpdatedDate       time.Time   `json:"updated_date" db:"updated_date"`
}

// CreateProcedureRequest is the raw create payload. Report holds the uploaded
// file name when a report is attached.
type CreateProcedureRequest struct {
	Patient           string  `json:"patient" form:"patient" validate:"required"`
	Status            string  `json:"status" form:"status" validate:"required,oneof=preparation in-progress not-done on-hold stopped completed entered-in-error unknown"`
	Category          string  `json:"category" form:"category" validate:"required,oneof=psychiatry counseling surgical diagnostic chiropractic social-service"`
	ProcedureName     string  `json:"procedure_name" form:"procedure_name" validate:"required,max=100"`
	ProcedureDatetime string  `json:"procedure_datetime" form:"procedure_datetime" validate:"required"`
	ClinicAddress     string  `json:"clinic_address" form:"clinic_address" validate:"required"`
	Notes             *string `json:"notes" form:"notes"`
	Report            *string `json:"-" form:"-" validate:"omitempty,pdf"`
}

// UpdateProcedureRequest is a partial update; nil fields are left unchanged.
type UpdateProcedureRequest struct {
	Patient           *string `json:"patient" form:"patient"`
	Status            *string `json:"status" form:"status" validate:"omitempty,oneof=preparation in-progress not-done on-hold stopped completed entered-in-error unknown"`
	Category          *string `json:"category" form:"category" validate:"omitempty,oneof=psychiatry counseling surgical diagnostic chiropractic social-service"`
	ProcedureName     *string `json:"procedure_name" form:"procedure_name" validate:"omitempty,max=100"`
	ProcedureDatetime *string `json:"procedure_datetime" form:"procedure_datetime"`
	ClinicAddress     *string `json:"clinic_address" form:"clinic_address"`
	Notes             *string `json:"notes" form:"notes"`
	Report            *string `json:"-" form:"-" validate:"omitempty,pdf"`
}

// ProcedureChanges is a validated, normalized partial update.
type ProcedureChanges struct {
	PatientID         *uuid.UUID
	Status            *string
	Category          *string
	ProcedureName     *string
	ProcedureDatetime *time.Time
	ClinicAddress     *string
	Notes             *string
}

func (c *ProcedureChanges) Apply(p *Procedure) {
	if c.PatientID != nil {
		p.PatientID = *c.PatientID
	}
	if c.Status != nil {
		p.Status = *c.Status
	}
	if c.Category != nil {
		p.Category = *c.Category
	}
	if c.ProcedureName != nil {
		p.ProcedureName = *c.ProcedureName
	}
	if c.ProcedureDatetime != nil {
		p.ProcedureDatetime = *c.ProcedureDatetime
	}
	if c.ClinicAddress != nil {
		p.ClinicAddress = *c.ClinicAddress
	}
	if c.Notes != nil {
		p.Notes = c.Notes
	}
}

type ProcedureFilter struct {
	PatientID *uuid.UUID
}

// ReportUpload is an uploaded report file.
type ReportUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}
