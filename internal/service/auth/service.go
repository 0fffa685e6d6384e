package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/medtrack-api/internal/email"
	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
	"github.com/jwalitptl/medtrack-api/internal/service/event"
	"github.com/jwalitptl/medtrack-api/internal/validation"
	"github.com/jwalitptl/medtrack-api/pkg/auth"
	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
	"github.com/jwalitptl/medtrack-api/pkg/security"
)

const (
	msgHeaderMissing      = "Authorization header missing."
	msgHeaderMalformed    = "Invalid authorization token format."
	msgInvalidCredentials = "Invalid credentials."
	msgInvalidToken       = "Token is invalid or expired."
	msgRefreshRequired    = "Refresh token is required."
)

type Service struct {
	tx        repository.Transactor
	users     repository.UserRepository
	roles     repository.RoleRepository
	validator *validation.Validator
	hasher    security.PasswordHasher
	jwt       auth.JWTService
	denylist  auth.Denylist
	pipeline  *event.Pipeline
	mailer    email.Service
	logger    zerolog.Logger
}

func NewService(
	tx repository.Transactor,
	users repository.UserRepository,
	roles repository.RoleRepository,
	validator *validation.Validator,
	hasher security.PasswordHasher,
	jwtSvc auth.JWTService,
	denylist auth.Denylist,
	pipeline *event.Pipeline,
	mailer email.Service,
	logger zerolog.Logger,
) *Service {
	if mailer == nil {
		mailer = email.NoopService{}
	}
	return &Service{
		tx:        tx,
		users:     users,
		roles:     roles,
		validator: validator,
		hasher:    hasher,
		jwt:       jwtSvc,
		denylist:  denylist,
		pipeline:  pipeline,
		mailer:    mailer,
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

// Register creates a user and counts them under their role in one
// transaction. The welcome mail is sent after commit and never fails the call.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	role, err := s.validator.Registration(ctx, req, registrationLookup{s.users, s.roles})
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.Internal("failed to validate registration", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		return s.pipeline.RoleAssigned(ctx, user)
	})
	var dup *repository.ErrDuplicate
	if errors.As(err, &dup) {
		// Lost a race with a concurrent registration after validation passed.
		return nil, validation.Taken(dup.Field)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to register user", err)
	}

	if err := s.mailer.SendWelcome(ctx, user.Email, user.Username); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to send welcome email")
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("role", role.String()).Msg("User registered")
	return user, nil
}

// Login accepts an Authorization header carrying base64(username:password),
// with or without a "Basic " prefix.
func (s *Service) Login(ctx context.Context, header string) (*model.LoginResponse, error) {
	username, password, err := parseBasic(header)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthenticated(msgInvalidCredentials)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.logger.Info().Str("username", username).Msg("Failed login attempt")
		return nil, apperrors.Unauthenticated(msgInvalidCredentials)
	}

	pair, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		Access:   pair.Access,
		Refresh:  pair.Refresh,
	}, nil
}

// Refresh exchanges a live refresh token for a new pair. The presented
// token is revoked, so each refresh token works once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.Field("refresh_token", "This field is required.")
	}

	claims, err := s.liveRefreshClaims(ctx, refreshToken)
	if err != nil {
		return nil, apperrors.Unauthenticated(msgInvalidToken)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthenticated(msgInvalidToken)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}

	if err := s.revoke(ctx, claims); err != nil {
		return nil, apperrors.Internal("failed to rotate refresh token", err)
	}
	return s.issue(user)
}

// Logout denylists the caller's refresh token until it expires.
func (s *Service) Logout(ctx context.Context, caller model.Caller, refreshToken string) error {
	if refreshToken == "" {
		return apperrors.BadRequest(msgRefreshRequired, nil)
	}

	claims, err := s.liveRefreshClaims(ctx, refreshToken)
	if err != nil || claims.UserID != caller.UserID {
		return apperrors.BadRequest(msgInvalidToken, err)
	}

	if err := s.revoke(ctx, claims); err != nil {
		return apperrors.Internal("failed to revoke refresh token", err)
	}
	s.logger.Info().Str("user_id", caller.UserID.String()).Msg("User logged out")
	return nil
}

// Authenticate resolves a bearer access token into the calling user.
func (s *Service) Authenticate(_ context.Context, token string) (*model.Caller, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, apperrors.Unauthenticated(msgInvalidToken)
	}
	return &model.Caller{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     model.Role(claims.Role),
	}, nil
}

func (s *Service) liveRefreshClaims(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.jwt.ValidateRefreshToken(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) revoke(ctx context.Context, claims *auth.Claims) error {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	return s.denylist.Revoke(ctx, claims.ID, ttl)
}

func (s *Service) issue(user *model.User) (*model.TokenPair, error) {
	sub := auth.Subject{UserID: user.ID, Username: user.Username, Role: user.Role.String()}

	access, err := s.jwt.GenerateAccessToken(sub)
	if err != nil {
		return nil, apperrors.Internal("failed to generate access token", err)
	}
	refresh, _, err := s.jwt.GenerateRefreshToken(sub)
	if err != nil {
		return nil, apperrors.Internal("failed to generate refresh token", err)
	}
	return &model.TokenPair{Access: access, Refresh: refresh}, nil
}

func parseBasic(header string) (string, string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "", apperrors.Unauthenticated(msgHeaderMissing)
	}
	if len(header) > 6 && strings.EqualFold(header[:6], "basic ") {
		header = strings.TrimSpace(header[6:])
	}

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return "", "", apperrors.Unauthenticated(msgHeaderMalformed)
	}
	username, password, ok := strings.Cut(string(raw), ":")
	if !ok || username == "" {
		return "", "", apperrors.Unauthenticated(msgHeaderMalformed)
	}
	return username, password, nil
}

type registrationLookup struct {
	users repository.UserRepository
	roles repository.RoleRepository
}

func (l registrationLookup) UsernameExists(ctx context.Context, username string) (bool, error) {
	return l.users.UsernameExists(ctx, username)
}

func (l registrationLookup) EmailExists(ctx context.Context, email string) (bool, error) {
	return l.users.EmailExists(ctx, email)
}

func (l registrationLookup) RoleExists(ctx context.Context, role string) (bool, error) {
	return l.roles.Exists(ctx, role)
}
