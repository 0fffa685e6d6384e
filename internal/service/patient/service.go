package patient

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
	"github.com/jwalitptl/medtrack-api/internal/service/event"
	"github.com/jwalitptl/medtrack-api/internal/validation"
	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
)

const msgNotFound = "Patient not found."

type PatientService interface {
	CreatePatient(ctx context.Context, caller model.Caller, req model.CreatePatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, id string) (*model.Patient, error)
	ListPatients(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, error)
}

type Service struct {
	tx        repository.Transactor
	repo      repository.PatientRepository
	validator *validation.Validator
	pipeline  *event.Pipeline
	logger    zerolog.Logger
}

func NewService(
	tx repository.Transactor,
	repo repository.PatientRepository,
	validator *validation.Validator,
	pipeline *event.Pipeline,
	logger zerolog.Logger,
) *Service {
	return &Service{
		tx:        tx,
		repo:      repo,
		validator: validator,
		pipeline:  pipeline,
		logger:    logger.With().Str("component", "patient").Logger(),
	}
}

// CreatePatient validates and stores a patient, notifying the creator and
// counting the patient in the same transaction.
func (s *Service) CreatePatient(ctx context.Context, caller model.Caller, req model.CreatePatientRequest) (*model.Patient, error) {
	patient, err := s.validator.Patient(req)
	if err != nil {
		return nil, err
	}

	var note *model.Notification
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, patient); err != nil {
			return err
		}
		note, err = s.pipeline.PatientCreated(ctx, patient, caller.UserID)
		return err
	})
	if err != nil {
		return nil, apperrors.Internal("failed to create patient", err)
	}

	s.pipeline.Publish(ctx, note)
	s.logger.Info().
		Str("patient_id", patient.ID.String()).
		Str("created_by", caller.UserID.String()).
		Msg("Patient created")
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id string) (*model.Patient, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.NotFound(msgNotFound)
	}
	patient, err := s.repo.Get(ctx, pid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(msgNotFound)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get patient", err)
	}
	return patient, nil
}

// ListPatients filters by a case-insensitive first-name fragment and an
// exact city.
func (s *Service) ListPatients(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, error) {
	filter.Name = strings.TrimSpace(filter.Name)
	filter.City = strings.TrimSpace(filter.City)

	patients, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal("failed to list patients", err)
	}
	return patients, nil
}
