package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
)

const procedureSelect = `
	SELECT p.id, p.patient_id, p.status, p.category, p.procedure_name,
		p.procedure_datetime, p.clinic_address, p.notes, p.report, p.created_by,
		p.created_date, p.updated_date,
		u.id AS "creator.id", u.username AS "creator.username", u.email AS "creator.email"
	FROM procedures p
	JOIN users u ON u.id = p.created_by`

type procedureRepository struct {
	BaseRepository
}

func NewProcedureRepository(db *sqlx.DB) repository.ProcedureRepository {
	return &procedureRepository{NewBaseRepository(db)}
}

func (r *procedureRepository) Create(ctx context.Context, procedure *model.Procedure) error {
	query := `
		INSERT INTO procedures (
			id, patient_id, status, category, procedure_name, procedure_datetime,
			clinic_address, notes, report, created_by, created_date, updated_date
		) VALUES (
			:id, :patient_id, :status, :category, :procedure_name, :procedure_datetime,
			:clinic_address, :notes, :report, :created_by, :created_date, :updated_date
		)
	`
	now := time.Now().UTC()
	procedure.ID = uuid.New()
	procedure.CreatedDate = now
	procedure.UpdatedDate = now

	if _, err := r.q(ctx).NamedExecContext(ctx, query, procedure); err != nil {
		return fmt.Errorf("failed to create procedure: %w", err)
	}
	return nil
}

func (r *procedureRepository) Get(ctx context.Context, id uuid.UUID) (*model.Procedure, error) {
	var procedure model.Procedure
	if err := r.q(ctx).GetContext(ctx, &procedure, procedureSelect+` WHERE p.id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get procedure: %w", notFound(err))
	}
	return &procedure, nil
}

func (r *procedureRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Procedure, error) {
	var procedure model.Procedure
	query := procedureSelect + ` WHERE p.id = $1 FOR UPDATE OF p`
	if err := r.q(ctx).GetContext(ctx, &procedure, query, id); err != nil {
		return nil, fmt.Errorf("failed to lock procedure: %w", notFound(err))
	}
	return &procedure, nil
}

// Update rewrites every mutable column and refreshes updated_date.
func (r *procedureRepository) Update(ctx context.Context, procedure *model.Procedure) error {
	query := `
		UPDATE procedures SET
			patient_id = :patient_id,
			status = :status,
			category = :category,
			procedure_name = :procedure_name,
			procedure_datetime = :procedure_datetime,
			clinic_address = :clinic_address,
			notes = :notes,
			report = :report,
			created_by = :created_by,
			updated_date = :updated_date
		WHERE id = :id
	`
	procedure.UpdatedDate = time.Now().UTC()

	res, err := r.q(ctx).NamedExecContext(ctx, query, procedure)
	if err != nil {
		return fmt.Errorf("failed to update procedure: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update procedure: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *procedureRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q(ctx).ExecContext(ctx, `DELETE FROM procedures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete procedure: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to delete procedure: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *procedureRepository) List(ctx context.Context, filter model.ProcedureFilter) ([]*model.Procedure, error) {
	query := procedureSelect
	var args []interface{}
	if filter.PatientID != nil {
		query += ` WHERE p.patient_id = $1`
		args = append(args, *filter.PatientID)
	}
	query += ` ORDER BY p.procedure_datetime DESC`

	procedures := []*model.Procedure{}
	if err := r.q(ctx).SelectContext(ctx, &procedures, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list procedures: %w", err)
	}
	return procedures, nil
}
