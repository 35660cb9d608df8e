package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillforge/user-service/internal/model"
)

// ErrNotFound is returned for any lookup that matches no row, so callers
// never depend on pgx directly.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `
	id, email, password_hash, first_name, last_name, role, status,
	email_verified, email_verified_at, email_verification_token,
	password_reset_token, password_reset_expires_at,
	failed_login_attempts, locked_until, last_login_at, login_count,
	created_at, updated_at
`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.Status,
		&user.EmailVerified,
		&user.EmailVerifiedAt,
		&user.EmailVerificationToken,
		&user.PasswordResetToken,
		&user.PasswordResetExpiresAt,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.LastLoginAt,
		&user.LoginCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return user, ErrNotFound
	}
	return user, err
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, role, status,
			email_verified, email_verification_token, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.Role, user.Status, user.EmailVerified, user.EmailVerificationToken,
		user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *Store) UserByID(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (s *Store) UserByResetToken(ctx context.Context, token string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE password_reset_token = $1`, token)
	return scanUser(row)
}

func (s *Store) UserByVerificationToken(ctx context.Context, token string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email_verification_token = $1`, token)
	return scanUser(row)
}

// RecordLoginFailure bumps the consecutive-failure counter atomically and
// returns the new count, so concurrent failures are never undercounted by a
// read-modify-write race.
func (s *Store) RecordLoginFailure(ctx context.Context, userID string) (int, error) {
	var count int
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_login_attempts
	`, userID)
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return count, nil
}

func (s *Store) LockUser(ctx context.Context, userID string, until time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET locked_until = $1, updated_at = now() WHERE id = $2
	`, until, userID)
	return err
}

func (s *Store) ClearLockout(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1
	`, userID)
	return err
}

func (s *Store) RecordLoginSuccess(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    last_login_at = $1,
		    login_count = login_count + 1,
		    updated_at = now()
		WHERE id = $2
	`, at, userID)
	return err
}

// SetPasswordReset replaces any previous reset token; token and expiry are
// always written together.
func (s *Store) SetPasswordReset(ctx context.Context, userID, token string, expires time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET password_reset_token = $1, password_reset_expires_at = $2, updated_at = now()
		WHERE id = $3
	`, token, expires, userID)
	return err
}

// UpdatePassword stores the new hash and clears both reset fields and the
// lockout counters in one statement.
func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $1,
		    password_reset_token = NULL,
		    password_reset_expires_at = NULL,
		    failed_login_attempts = 0,
		    locked_until = NULL,
		    updated_at = now()
		WHERE id = $2
	`, passwordHash, userID)
	return err
}

func (s *Store) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET email_verified = true,
		    email_verified_at = $1,
		    email_verification_token = NULL,
		    status = $2,
		    updated_at = now()
		WHERE id = $3
	`, at, model.StatusActive, userID)
	return err
}

func (s *Store) CreateSession(ctx context.Context, session model.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (
			id, user_id, refresh_token_hash, expires_at, refresh_expires_at,
			is_active, revoked_at, user_agent, ip_address, last_accessed_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, session.ID, session.UserID, session.RefreshTokenHash, session.ExpiresAt,
		session.RefreshExpiresAt, session.IsActive, session.RevokedAt,
		session.UserAgent, session.IPAddress, session.LastAccessedAt, session.CreatedAt)
	return err
}

func (s *Store) Session(ctx context.Context, sessionID string) (model.Session, error) {
	var session model.Session
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, refresh_token_hash, expires_at, refresh_expires_at,
		       is_active, revoked_at, user_agent, ip_address, last_accessed_at, created_at
		FROM sessions
		WHERE id = $1
	`, sessionID)
	err := row.Scan(&session.ID, &session.UserID, &session.RefreshTokenHash,
		&session.ExpiresAt, &session.RefreshExpiresAt, &session.IsActive,
		&session.RevokedAt, &session.UserAgent, &session.IPAddress,
		&session.LastAccessedAt, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return session, ErrNotFound
	}
	return session, err
}

func (s *Store) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET last_accessed_at = $1 WHERE id = $2
	`, at, sessionID)
	return err
}

// RevokeSession is idempotent: revoking an already-inactive session leaves
// the original revoked_at in place and still succeeds.
func (s *Store) RevokeSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET is_active = false, revoked_at = COALESCE(revoked_at, $1)
		WHERE id = $2
	`, at, sessionID)
	return err
}

// RevokeAllForUser is the bulk invalidation used when credentials are
// recovered: every session the user holds goes inactive in one statement.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET is_active = false, revoked_at = COALESCE(revoked_at, $1)
		WHERE user_id = $2 AND is_active = true
	`, at, userID)
	return err
}

func (s *Store) RecordActivity(ctx context.Context, entry model.ActivityLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO activity_log (id, user_id, action, description, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.UserID, entry.Action, entry.Description, entry.IPAddress,
		entry.UserAgent, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}
