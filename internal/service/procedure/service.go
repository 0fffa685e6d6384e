package procedure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
	"github.com/jwalitptl/medtrack-api/internal/service/event"
	"github.com/jwalitptl/medtrack-api/internal/storage"
	"github.com/jwalitptl/medtrack-api/internal/validation"
	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
)

const (
	msgNotFound        = "Procedure not found."
	msgPatientNotFound = "Patient does not exist."
	msgNoReport        = "This procedure has no report."
	msgInvalidPatient  = "Must be a valid UUID."
)

type ProcedureService interface {
	CreateProcedure(ctx context.Context, caller model.Caller, req model.CreateProcedureRequest, report *model.ReportUpload) (*model.Procedure, error)
	UpdateProcedure(ctx context.Context, caller model.Caller, id string, req model.UpdateProcedureRequest, report *model.ReportUpload) (*model.Procedure, error)
	GetProcedure(ctx context.Context, id string) (*model.Procedure, error)
	ListProcedures(ctx context.Context, patientID string) ([]*model.Procedure, error)
	DeleteProcedure(ctx context.Context, caller model.Caller, id string) error
	OpenReport(ctx context.Context, id string) (io.ReadCloser, string, error)
}

type Service struct {
	tx             repository.Transactor
	procedures     repository.ProcedureRepository
	patients       repository.PatientRepository
	files          storage.Storage
	validator      *validation.Validator
	pipeline       *event.Pipeline
	maxUploadBytes int64
	logger         zerolog.Logger
}

func NewService(
	tx repository.Transactor,
	procedures repository.ProcedureRepository,
	patients repository.PatientRepository,
	files storage.Storage,
	validator *validation.Validator,
	pipeline *event.Pipeline,
	maxUploadBytes int64,
	logger zerolog.Logger,
) *Service {
	return &Service{
		tx:             tx,
		procedures:     procedures,
		patients:       patients,
		files:          files,
		validator:      validator,
		pipeline:       pipeline,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("component", "procedure").Logger(),
	}
}

// CreateProcedure stores a procedure, and its report if one is attached,
// on behalf of caller.
func (s *Service) CreateProcedure(ctx context.Context, caller model.Caller, req model.CreateProcedureRequest, report *model.ReportUpload) (*model.Procedure, error) {
	if report != nil {
		req.Report = &report.Filename
	}
	procedure, err := s.validator.NewProcedure(req)
	if err != nil {
		return nil, err
	}
	if err := s.checkSize(report); err != nil {
		return nil, err
	}

	patient, err := s.patients.Get(ctx, procedure.PatientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(msgPatientNotFound)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load patient", err)
	}

	procedure.CreatedByID = caller.UserID
	newKey, err := s.storeReport(ctx, report)
	if err != nil {
		return nil, err
	}
	procedure.Report = newKey

	var (
		saved *model.Procedure
		note  *model.Notification
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.procedures.Create(ctx, procedure); err != nil {
			return err
		}
		if saved, err = s.procedures.Get(ctx, procedure.ID); err != nil {
			return err
		}
		note, err = s.pipeline.ProcedureSaved(ctx, saved, patient, true)
		return err
	})
	if err != nil {
		s.releaseKey(ctx, newKey)
		return nil, apperrors.Internal("failed to create procedure", err)
	}

	s.pipeline.Publish(ctx, note)
	s.logger.Info().
		Str("procedure_id", saved.ID.String()).
		Str("created_by", caller.UserID.String()).
		Msg("Procedure created")
	return saved, nil
}

// UpdateProcedure applies a partial update. The caller becomes the
// procedure's creator and receives the notification. The row is locked for
// the update, and the report it held is released after commit when replaced.
func (s *Service) UpdateProcedure(ctx context.Context, caller model.Caller, id string, req model.UpdateProcedureRequest, report *model.ReportUpload) (*model.Procedure, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.NotFound(msgNotFound)
	}

	if report != nil {
		req.Report = &report.Filename
	}
	changes, err := s.validator.ProcedureUpdate(req)
	if err != nil {
		return nil, err
	}
	if err := s.checkSize(report); err != nil {
		return nil, err
	}

	// Reject unknown ids and patients before uploading anything.
	if _, err := s.GetProcedure(ctx, id); err != nil {
		return nil, err
	}
	if changes.PatientID != nil {
		if _, err := s.loadPatient(ctx, *changes.PatientID, true); err != nil {
			return nil, err
		}
	}

	newKey, err := s.storeReport(ctx, report)
	if err != nil {
		return nil, err
	}

	var (
		saved  *model.Procedure
		note   *model.Notification
		oldKey *string
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		procedure, err := s.procedures.GetForUpdate(ctx, pid)
		if err != nil {
			return err
		}
		changes.Apply(procedure)
		patient, err := s.loadPatient(ctx, procedure.PatientID, changes.PatientID != nil)
		if err != nil {
			return err
		}
		if newKey != nil {
			oldKey = procedure.Report
			procedure.Report = newKey
		}
		procedure.CreatedByID = caller.UserID

		if err := s.procedures.Update(ctx, procedure); err != nil {
			return err
		}
		if saved, err = s.procedures.Get(ctx, procedure.ID); err != nil {
			return err
		}
		note, err = s.pipeline.ProcedureSaved(ctx, saved, patient, false)
		return err
	})
	if err != nil {
		s.releaseKey(ctx, newKey)
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(msgNotFound)
		}
		return nil, apperrors.Internal("failed to update procedure", err)
	}

	s.releaseKey(ctx, oldKey)
	s.pipeline.Publish(ctx, note)
	s.logger.Info().
		Str("procedure_id", saved.ID.String()).
		Str("updated_by", caller.UserID.String()).
		Msg("Procedure updated")
	return saved, nil
}

// loadPatient maps a missing patient to a field error when the caller named
// it, and to an internal error otherwise.
func (s *Service) loadPatient(ctx context.Context, id uuid.UUID, named bool) (*model.Patient, error) {
	patient, err := s.patients.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) && named {
		return nil, apperrors.Field("patient", fmt.Sprintf("Invalid pk %q - object does not exist.", id.String()))
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load patient", err)
	}
	return patient, nil
}

func (s *Service) GetProcedure(ctx context.Context, id string) (*model.Procedure, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.NotFound(msgNotFound)
	}
	procedure, err := s.procedures.Get(ctx, pid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(msgNotFound)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get procedure", err)
	}
	return procedure, nil
}

// ListProcedures lists every procedure, or those of one patient when
// patientID is set. A malformed patientID is a field error.
func (s *Service) ListProcedures(ctx context.Context, patientID string) ([]*model.Procedure, error) {
	var filter model.ProcedureFilter
	if patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return nil, apperrors.Field("patient_id", msgInvalidPatient)
		}
		filter.PatientID = &pid
	}

	procedures, err := s.procedures.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal("failed to list procedures", err)
	}
	return procedures, nil
}

// DeleteProcedure removes a procedure and releases its report.
func (s *Service) DeleteProcedure(ctx context.Context, caller model.Caller, id string) error {
	procedure, err := s.GetProcedure(ctx, id)
	if err != nil {
		return err
	}

	err = s.procedures.Delete(ctx, procedure.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(msgNotFound)
	}
	if err != nil {
		return apperrors.Internal("failed to delete procedure", err)
	}

	s.releaseKey(ctx, procedure.Report)
	s.logger.Info().
		Str("procedure_id", procedure.ID.String()).
		Str("deleted_by", caller.UserID.String()).
		Msg("Procedure deleted")
	return nil
}

// OpenReport returns the stored report and a download filename.
func (s *Service) OpenReport(ctx context.Context, id string) (io.ReadCloser, string, error) {
	procedure, err := s.GetProcedure(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if procedure.Report == nil || *procedure.Report == "" {
		return nil, "", apperrors.NotFound(msgNoReport)
	}

	rc, err := s.files.Open(ctx, *procedure.Report)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", apperrors.NotFound(msgNoReport)
	}
	if err != nil {
		return nil, "", apperrors.Internal("failed to open report", err)
	}
	return rc, path.Base(*procedure.Report), nil
}

func (s *Service) checkSize(report *model.ReportUpload) error {
	if report == nil || s.maxUploadBytes <= 0 || report.Size <= s.maxUploadBytes {
		return nil
	}
	return apperrors.Field("report", fmt.Sprintf("Report must not exceed %d bytes.", s.maxUploadBytes))
}

func (s *Service) storeReport(ctx context.Context, report *model.ReportUpload) (*string, error) {
	if report == nil {
		return nil, nil
	}
	key := storage.ReportKey(report.Filename)
	if err := s.files.Save(ctx, key, report.Content, report.Size); err != nil {
		return nil, apperrors.Internal("failed to store report", err)
	}
	return &key, nil
}

func (s *Service) releaseKey(ctx context.Context, key *string) {
	if key != nil {
		s.pipeline.ReportReleased(ctx, *key)
	}
}
