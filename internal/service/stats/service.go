// Package stats is the only writer of the AdminStat row.
package stats

import (
	"context"
	"errors"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
)

type Service struct {
	repo repository.AdminStatRepository
}

func NewService(repo repository.AdminStatRepository) *Service {
	return &Service{repo: repo}
}

// Increment bumps one counter. The repository performs get-or-create and the
// increment in one statement, so concurrent callers never lose updates.
func (s *Service) Increment(ctx context.Context, counter model.StatCounter) error {
	return s.repo.Increment(ctx, counter)
}

// IncrementRole bumps the counter for role. Unknown roles are ignored.
func (s *Service) IncrementRole(ctx context.Context, role model.Role) error {
	counter, ok := model.RoleCounter(role)
	if !ok {
		return nil
	}
	return s.repo.Increment(ctx, counter)
}

func (s *Service) Get(ctx context.Context) (*model.AdminStat, error) {
	stat, err := s.repo.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("No admin stats available.")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load admin stats", err)
	}
	return stat, nil
}
