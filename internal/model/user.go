package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the single, immutable role a user holds.
type Role string

const (
	RoleFrontDesk Role = "Front_Desk"
	RoleDoctor    Role = "Doctor"
	RoleAdmin     Role = "Admin"
)

// Roles lists every role seeded into the roles table.
var Roles = []Role{RoleFrontDesk, RoleDoctor, RoleAdmin}

func (r Role) String() string {
	return string(r)
}

// User represents a system user
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	DateJoined   time.Time `json:"date_joined" db:"date_joined"`
}

// UserSummary is the nested user shape embedded in procedures and notifications.
type UserSummary struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Username string    `json:"username" db:"username"`
	Email    string    `json:"email" db:"email"`
}

// UserInfo is returned by the user info endpoint.
type UserInfo struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Username string    `json:"username" db:"username"`
	Email    string    `json:"email" db:"email"`
	Role     Role      `json:"role" db:"role"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Email: u.Email}
}

func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}
