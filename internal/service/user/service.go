package user

import (
	"context"
	"errors"

	"github.com/jwalitptl/medtrack-api/internal/access"
	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
)

type UserServicer interface {
	Info(ctx context.Context, caller model.Caller) (*model.UserInfo, error)
	List(ctx context.Context) ([]*model.UserInfo, error)
	Visible(ctx context.Context, caller model.Caller) (interface{}, error)
}

type Service struct {
	repo repository.UserRepository
}

func NewService(repo repository.UserRepository) *Service {
	return &Service{repo: repo}
}

// Info returns the caller's own account.
func (s *Service) Info(ctx context.Context, caller model.Caller) (*model.UserInfo, error) {
	u, err := s.repo.GetByID(ctx, caller.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthenticated("User not found.")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}
	info := u.Info()
	return &info, nil
}

// List returns every user ordered by username.
func (s *Service) List(ctx context.Context) ([]*model.UserInfo, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to list users", err)
	}
	return users, nil
}

// Visible is what the user endpoint shows: admins see every user, everyone
// else sees only themselves.
func (s *Service) Visible(ctx context.Context, caller model.Caller) (interface{}, error) {
	if access.IsAdmin(caller.Role) {
		return s.List(ctx)
	}
	return s.Info(ctx, caller)
}
