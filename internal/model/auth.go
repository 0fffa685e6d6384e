package model

import (
	"github.com/google/uuid"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Email    string `json:"email" validate:"required,simple_email"`
	Password string `json:"password" validate:"required,password"`
	Role     string `json:"role" validate:"required"`
}

type RegisterResponse struct {
	Message string `json:"message"`
}

type LoginResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	Access   string    `json:"access"`
	Refresh  string    `json:"refresh"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Caller is the authenticated user behind a request.
type Caller struct {
	UserID   uuid.UUID
	Username string
	Role     Role
}
