// Package event runs the side effects that follow a successful write:
// notifications, statistic counters and report file release.
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
	"github.com/jwalitptl/medtrack-api/internal/service/stats"
	"github.com/jwalitptl/medtrack-api/internal/storage"
	"github.com/jwalitptl/medtrack-api/pkg/messaging"
	"github.com/jwalitptl/medtrack-api/pkg/metrics"
)

// NotificationChannel is the broker channel notifications are published on.
const NotificationChannel = "notifications"

const (
	EventRoleAssigned   = "role_assigned"
	EventPatientCreated = "patient_created"
	EventProcedureSaved = "procedure_saved"
	EventReportReleased = "report_released"

	stageNotification = "notification"
	stageCounter      = "counter"
	stageStorage      = "storage"
	stageEnqueue      = "enqueue"
)

const releaseTimeout = 15 * time.Second

// Pipeline is invoked explicitly by services. RoleAssigned, PatientCreated
// and ProcedureSaved must run with the context of the transaction that made
// the primary write; ReportReleased and Publish run after commit.
type Pipeline struct {
	notifications repository.NotificationRepository
	stats         *stats.Service
	cleanup       repository.FileCleanupRepository
	files         storage.Storage
	broker        messaging.Broker
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

func NewPipeline(
	notifications repository.NotificationRepository,
	stats *stats.Service,
	cleanup repository.FileCleanupRepository,
	files storage.Storage,
	broker messaging.Broker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Pipeline {
	if broker == nil {
		broker = messaging.NopBroker{}
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Pipeline{
		notifications: notifications,
		stats:         stats,
		cleanup:       cleanup,
		files:         files,
		broker:        broker,
		metrics:       m,
		logger:        logger.With().Str("component", "pipeline").Logger(),
	}
}

// RoleAssigned counts a newly registered user under their role.
func (p *Pipeline) RoleAssigned(ctx context.Context, user *model.User) error {
	p.metrics.PipelineEvents.WithLabelValues(EventRoleAssigned).Inc()
	if err := p.stats.IncrementRole(ctx, user.Role); err != nil {
		return p.fail(EventRoleAssigned, stageCounter, fmt.Errorf("failed to increment role counter: %w", err))
	}
	return nil
}

// PatientCreated notifies the creator and counts the patient.
func (p *Pipeline) PatientCreated(ctx context.Context, patient *model.Patient, creator uuid.UUID) (*model.Notification, error) {
	p.metrics.PipelineEvents.WithLabelValues(EventPatientCreated).Inc()

	msg := fmt.Sprintf("A new patient record for %s %s has been created.", patient.FirstName, patient.LastName)
	n, err := p.notify(ctx, creator, msg)
	if err != nil {
		return nil, p.fail(EventPatientCreated, stageNotification, err)
	}
	if err := p.stats.Increment(ctx, model.CounterTotalPatients); err != nil {
		return nil, p.fail(EventPatientCreated, stageCounter, fmt.Errorf("failed to increment total_patients: %w", err))
	}
	return n, nil
}

// ProcedureSaved notifies the procedure's creator. Only creation is counted.
func (p *Pipeline) ProcedureSaved(ctx context.Context, procedure *model.Procedure, patient *model.Patient, created bool) (*model.Notification, error) {
	p.metrics.PipelineEvents.WithLabelValues(EventProcedureSaved).Inc()

	verb := "updated"
	if created {
		verb = "created"
	}
	msg := fmt.Sprintf("A procedure %s for patient %s %s has been %s.",
		procedure.ProcedureName, patient.FirstName, patient.LastName, verb)

	n, err := p.notify(ctx, procedure.CreatedByID, msg)
	if err != nil {
		return nil, p.fail(EventProcedureSaved, stageNotification, err)
	}
	if created {
		if err := p.stats.Increment(ctx, model.CounterTotalProcedures); err != nil {
			return nil, p.fail(EventProcedureSaved, stageCounter, fmt.Errorf("failed to increment total_procedures: %w", err))
		}
	}
	return n, nil
}

// ReportReleased deletes a stored report. It never fails the caller: a
// failed delete is logged and queued for the cleanup worker.
func (p *Pipeline) ReportReleased(ctx context.Context, key string) {
	if key == "" {
		return
	}
	p.metrics.PipelineEvents.WithLabelValues(EventReportReleased).Inc()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	err := p.files.Delete(ctx, key)
	if err == nil {
		return
	}

	p.metrics.PipelineFailures.WithLabelValues(EventReportReleased, stageStorage).Inc()
	p.logger.Warn().Err(err).Str("storage_key", key).Msg("Failed to release report, queueing for retry")

	if err := p.cleanup.Enqueue(ctx, key, err.Error()); err != nil {
		p.metrics.PipelineFailures.WithLabelValues(EventReportReleased, stageEnqueue).Inc()
		p.logger.Error().Err(err).Str("storage_key", key).Msg("Failed to queue report release")
		return
	}
	p.metrics.CleanupEnqueued.Inc()
}

// Publish sends committed notifications to the broker. Failures are logged
// and counted only.
func (p *Pipeline) Publish(ctx context.Context, notifications ...*model.Notification) {
	for _, n := range notifications {
		if n == nil {
			continue
		}
		if err := p.broker.Publish(ctx, NotificationChannel, n.Event()); err != nil {
			p.metrics.Publishes.WithLabelValues("error").Inc()
			p.logger.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("Failed to publish notification")
			continue
		}
		p.metrics.Publishes.WithLabelValues("ok").Inc()
	}
}

func (p *Pipeline) notify(ctx context.Context, userID uuid.UUID, message string) (*model.Notification, error) {
	n := &model.Notification{UserID: userID, Message: message}
	if err := p.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

func (p *Pipeline) fail(event, stage string, err error) error {
	p.metrics.PipelineFailures.WithLabelValues(event, stage).Inc()
	p.logger.Error().Err(err).Str("event", event).Str("stage", stage).Msg("Pipeline step failed")
	return err
}
