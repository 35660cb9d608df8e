package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
)

// ParseRole maps a request-supplied role onto the closed enum. An empty
// value defaults to student; anything else is rejected at the boundary.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case "":
		return RoleStudent, true
	case RoleStudent:
		return RoleStudent, true
	case RoleTeacher:
		return RoleTeacher, true
	default:
		return "", false
	}
}

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

type User struct {
	ID                     string
	Email                  string
	PasswordHash           string
	FirstName              string
	LastName               string
	Role                   Role
	Status                 Status
	EmailVerified          bool
	EmailVerifiedAt        *time.Time
	EmailVerificationToken *string
	PasswordResetToken     *string
	PasswordResetExpiresAt *time.Time
	FailedLoginAttempts    int
	LockedUntil            *time.Time
	LastLoginAt            *time.Time
	LoginCount             int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Session pairs a user with a refresh token's validity window. The access
// token is stateless and never persisted; only its sha256-hashed refresh
// counterpart is kept server-side.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	IsActive         bool
	RevokedAt        *time.Time
	UserAgent        *string
	IPAddress        *string
	LastAccessedAt   time.Time
	CreatedAt        time.Time
}

type ActivityLog struct {
	ID          string
	UserID      string
	Action      string
	Description string
	IPAddress   *string
	UserAgent   *string
	CreatedAt   time.Time
}
