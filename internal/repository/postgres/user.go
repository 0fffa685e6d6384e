package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{NewBaseRepository(db)}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, role, date_joined)
		VALUES (:id, :username, :email, :password_hash, :role, :date_joined)
	`
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.DateJoined = time.Now().UTC()

	if _, err := r.q(ctx).NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("failed to create user: %w", userConflict(err))
	}
	return nil
}

// userConflict maps a unique violation on users onto repository.ErrDuplicate.
// The email constraint is users_email_lower_idx; the rest is the username.
func userConflict(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code.Name() != "unique_violation" {
		return err
	}
	field := "username"
	if strings.Contains(pqErr.Constraint, "email") {
		field = "email"
	}
	return &repository.ErrDuplicate{Field: field}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, username, email, password_hash, role, date_joined
		FROM users
		WHERE id = $1
	`
	var user model.User
	if err := r.q(ctx).GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", notFound(err))
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `
		SELECT id, username, email, password_hash, role, date_joined
		FROM users
		WHERE username = $1
	`
	var user model.User
	if err := r.q(ctx).GetContext(ctx, &user, query, username); err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", notFound(err))
	}
	return &user, nil
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`
	if err := r.q(ctx).GetContext(ctx, &exists, query, username); err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`
	if err := r.q(ctx).GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.UserInfo, error) {
	query := `SELECT id, username, email, role FROM users ORDER BY username`
	users := []*model.UserInfo{}
	if err := r.q(ctx).SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

type roleRepository struct {
	BaseRepository
}

func NewRoleRepository(db *sqlx.DB) repository.RoleRepository {
	return &roleRepository{NewBaseRepository(db)}
}

func (r *roleRepository) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM roles WHERE name = $1)`
	if err := r.q(ctx).GetContext(ctx, &exists, query, name); err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return exists, nil
}
