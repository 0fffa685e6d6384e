package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
)

const patientColumns = `
	id, first_name, last_name, mobile_number, address, gender, birthdate,
	email, city, state, pincode, emergency_contact_name,
	emergency_contact_mobile_number, language, created_date`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES (
			:id, :first_name, :last_name, :mobile_number, :address, :gender, :birthdate,
			:email, :city, :state, :pincode, :emergency_contact_name,
			:emergency_contact_mobile_number, :language, :created_date
		)
	`
	patient.ID = uuid.New()
	patient.CreatedDate = time.Now().UTC()

	if _, err := r.q(ctx).NamedExecContext(ctx, query, patient); err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	var patient model.Patient
	if err := r.q(ctx).GetContext(ctx, &patient, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", notFound(err))
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Name != "" {
		args = append(args, "%"+escapeLike(filter.Name)+"%")
		conds = append(conds, fmt.Sprintf("first_name ILIKE $%d", len(args)))
	}
	if filter.City != "" {
		args = append(args, filter.City)
		conds = append(conds, fmt.Sprintf("city = $%d", len(args)))
	}

	query := `SELECT ` + patientColumns + ` FROM patients`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY last_name, first_name"

	patients := []*model.Patient{}
	if err := r.q(ctx).SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
