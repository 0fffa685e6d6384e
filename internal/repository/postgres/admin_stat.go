package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
)

// counterColumns whitelists the columns Increment may interpolate.
var counterColumns = map[model.StatCounter]string{
	model.CounterTotalPatients:   "total_patients",
	model.CounterTotalProcedures: "total_procedures",
	model.CounterFrontDeskUsers:  "front_desk_users",
	model.CounterDoctorUsers:     "doctor_users",
	model.CounterAdminUsers:      "admin_users",
}

type adminStatRepository struct {
	BaseRepository
}

func NewAdminStatRepository(db *sqlx.DB) repository.AdminStatRepository {
	return &adminStatRepository{NewBaseRepository(db)}
}

func (r *adminStatRepository) Increment(ctx context.Context, counter model.StatCounter) error {
	col, ok := counterColumns[counter]
	if !ok {
		return fmt.Errorf("unknown stat counter %q", counter)
	}

	query := fmt.Sprintf(`
		INSERT INTO admin_stats (id, %[1]s, last_updated)
		VALUES ($1, 1, NOW())
		ON CONFLICT (id) DO UPDATE
		SET %[1]s = admin_stats.%[1]s + 1, last_updated = NOW()
	`, col)

	if _, err := r.q(ctx).ExecContext(ctx, query, model.AdminStatID); err != nil {
		return fmt.Errorf("failed to increment %s: %w", col, err)
	}
	return nil
}

func (r *adminStatRepository) Get(ctx context.Context) (*model.AdminStat, error) {
	query := `
		SELECT total_patients, total_procedures, front_desk_users,
			doctor_users, admin_users, last_updated
		FROM admin_stats
		WHERE id = $1
	`
	var stat model.AdminStat
	if err := r.q(ctx).GetContext(ctx, &stat, query, model.AdminStatID); err != nil {
		return nil, fmt.Errorf("failed to get admin stats: %w", notFound(err))
	}
	return &stat, nil
}
