package notification

import (
	"context"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
)

type Service interface {
	List(ctx context.Context, caller model.Caller) ([]*model.Notification, error)
}

type service struct {
	repo repository.NotificationRepository
}

func NewService(repo repository.NotificationRepository) Service {
	return &service{repo: repo}
}

// List returns the caller's notifications, newest first. An empty inbox is
// reported as not found.
func (s *service) List(ctx context.Context, caller model.Caller) ([]*model.Notification, error) {
	notifications, err := s.repo.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, apperrors.Internal("failed to list notifications", err)
	}
	if len(notifications) == 0 {
		return nil, apperrors.NotFound("No notifications available.")
	}
	return notifications, nil
}
