package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillforge/user-service/internal/auth"
	"skillforge/user-service/internal/crypto"
	"skillforge/user-service/internal/model"
	"skillforge/user-service/internal/repository"
)

type UserStore interface {
	CreateUser(ctx context.Context, user model.User) error
	UserByEmail(ctx context.Context, email string) (model.User, error)
	UserByID(ctx context.Context, userID string) (model.User, error)
	UserByResetToken(ctx context.Context, token string) (model.User, error)
	UserByVerificationToken(ctx context.Context, token string) (model.User, error)
	RecordLoginFailure(ctx context.Context, userID string) (int, error)
	LockUser(ctx context.Context, userID string, until time.Time) error
	ClearLockout(ctx context.Context, userID string) error
	RecordLoginSuccess(ctx context.Context, userID string, at time.Time) error
	SetPasswordReset(ctx context.Context, userID, token string, expires time.Time) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) error
}

type SessionStore interface {
	CreateSession(ctx context.Context, session model.Session) error
	Session(ctx context.Context, sessionID string) (model.Session, error)
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	RevokeSession(ctx context.Context, sessionID string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
}

type ActivityStore interface {
	RecordActivity(ctx context.Context, entry model.ActivityLog) error
}

// SessionCache is the non-authoritative redis mirror plus the access-token
// deny-list. Every method failure is survivable; the persisted session
// record decides refresh validity.
type SessionCache interface {
	MirrorSession(ctx context.Context, userID, sessionID string, ttl time.Duration) error
	DropSession(ctx context.Context, userID string) error
	DenyToken(ctx context.Context, token string, ttl time.Duration) error
	IsTokenDenied(ctx context.Context, token string) (bool, error)
}

type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token, displayName string) error
	SendPasswordResetEmail(ctx context.Context, email, token, displayName string) error
}

type Config struct {
	RefreshTTL         time.Duration
	RefreshTTLRemember time.Duration
	ResetTokenTTL      time.Duration
	SessionCacheTTL    time.Duration
	Lockout            LockoutPolicy
}

// AuthService sequences the credential store, lockout policy, token issuer,
// session store and cache for each auth operation.
type AuthService struct {
	logger   *zap.Logger
	users    UserStore
	sessions SessionStore
	activity ActivityStore
	cache    SessionCache
	mailer   Mailer
	tokens   *auth.Issuer
	cfg      Config

	// dummyHash keeps the unknown-email login path doing one bcrypt compare,
	// like the wrong-password path.
	dummyHash string
	now       func() time.Time
}

func New(
	logger *zap.Logger,
	users UserStore,
	sessions SessionStore,
	activity ActivityStore,
	sessionCache SessionCache,
	mailer Mailer,
	tokens *auth.Issuer,
	cfg Config,
) *AuthService {
	dummy, err := crypto.HashPassword(uuid.NewString())
	if err != nil {
		logger.Warn("dummy hash generation failed", zap.Error(err))
	}
	return &AuthService{
		logger:    logger,
		users:     users,
		sessions:  sessions,
		activity:  activity,
		cache:     sessionCache,
		mailer:    mailer,
		tokens:    tokens,
		cfg:       cfg,
		dummyHash: dummy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	IP        string
	UserAgent string
}

type RegisterResult struct {
	UserID string
	Email  string
}

type LoginParams struct {
	Email      string
	Password   string
	RememberMe bool
	IP         string
	UserAgent  string
}

type PublicUser struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Role          string    `json:"role"`
	Status        string    `json:"status"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         PublicUser
}

type LogoutParams struct {
	UserID         string
	SessionID      string
	AccessToken    string
	TokenExpiresAt time.Time
	IP             string
	UserAgent      string
}

// Register creates an INACTIVE credential record and dispatches a
// verification email. A failed dispatch is logged but never fails the
// registration; the account exists regardless.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (RegisterResult, error) {
	role, err := validateRegistration(params)
	if err != nil {
		return RegisterResult{}, err
	}

	email := normalizeEmail(params.Email)

	_, err = s.users.UserByEmail(ctx, email)
	if err == nil {
		return RegisterResult{}, ErrEmailTaken
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return RegisterResult{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := crypto.HashPassword(params.Password)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}
	verificationToken, err := crypto.NewToken()
	if err != nil {
		return RegisterResult{}, fmt.Errorf("verification token: %w", err)
	}

	now := s.now()
	user := model.User{
		ID:                     uuid.NewString(),
		Email:                  email,
		PasswordHash:           hash,
		FirstName:              params.FirstName,
		LastName:               params.LastName,
		Role:                   role,
		Status:                 model.StatusInactive,
		EmailVerificationToken: &verificationToken,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return RegisterResult{}, fmt.Errorf("create user: %w", err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, email, verificationToken, params.FirstName); err != nil {
		s.logger.Warn("verification email dispatch failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	s.logActivity(user.ID, "user.registered", "account created, verification pending", params.IP, params.UserAgent)

	return RegisterResult{UserID: user.ID, Email: email}, nil
}

// Login authenticates a credential pair and opens a new session. The lockout
// check runs before anything that could reveal password correctness.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (LoginResult, error) {
	verr := &ValidationError{}
	if params.Email == "" {
		verr.add("email", "must not be empty")
	}
	if params.Password == "" {
		verr.add("password", "must not be empty")
	}
	if err := verr.orNil(); err != nil {
		return LoginResult{}, err
	}

	now := s.now()
	user, err := s.users.UserByEmail(ctx, normalizeEmail(params.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn a compare so this path costs the same as a wrong password.
			_ = crypto.CheckPassword(s.dummyHash, params.Password)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("lookup email: %w", err)
	}

	if s.cfg.Lockout.Locked(user.LockedUntil, now) {
		return LoginResult{}, ErrAccountLocked
	}
	if user.LockedUntil != nil {
		// A lockout that has elapsed resets the counter to zero.
		if err := s.users.ClearLockout(ctx, user.ID); err != nil {
			return LoginResult{}, fmt.Errorf("clear lockout: %w", err)
		}
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}

	if err := crypto.CheckPassword(user.PasswordHash, params.Password); err != nil {
		count, err := s.users.RecordLoginFailure(ctx, user.ID)
		if err != nil {
			return LoginResult{}, fmt.Errorf("record failure: %w", err)
		}
		if s.cfg.Lockout.LockAfter(count) {
			if err := s.users.LockUser(ctx, user.ID, now.Add(s.cfg.Lockout.Duration)); err != nil {
				return LoginResult{}, fmt.Errorf("lock account: %w", err)
			}
			s.logActivity(user.ID, "account.locked", "too many failed login attempts", params.IP, params.UserAgent)
		}
		s.logActivity(user.ID, "login.failed", "wrong password", params.IP, params.UserAgent)
		return LoginResult{}, ErrInvalidCredentials
	}

	switch user.Status {
	case model.StatusSuspended:
		return LoginResult{}, ErrAccountSuspended
	case model.StatusInactive:
		return LoginResult{}, ErrEmailNotVerified
	}

	refreshTTL := s.cfg.RefreshTTL
	if params.RememberMe {
		refreshTTL = s.cfg.RefreshTTLRemember
	}

	sessionID := uuid.NewString()
	accessToken, err := s.tokens.IssueAccess(user.ID, user.Email, string(user.Role), sessionID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := s.tokens.IssueRefresh(user.ID, sessionID, refreshTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue refresh token: %w", err)
	}

	session := model.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: crypto.HashToken(refreshToken),
		ExpiresAt:        now.Add(refreshTTL),
		RefreshExpiresAt: now.Add(refreshTTL),
		IsActive:         true,
		LastAccessedAt:   now,
		CreatedAt:        now,
	}
	if params.UserAgent != "" {
		session.UserAgent = &params.UserAgent
	}
	if params.IP != "" {
		session.IPAddress = &params.IP
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	if err := s.cache.MirrorSession(ctx, user.ID, sessionID, s.cfg.SessionCacheTTL); err != nil {
		s.logger.Warn("session cache mirror failed", zap.Error(err))
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return LoginResult{}, fmt.Errorf("record success: %w", err)
	}

	s.logActivity(user.ID, "login.success", "session opened", params.IP, params.UserAgent)

	return LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         publicUser(user),
	}, nil
}

// Refresh mints a fresh access token against a still-valid session. The
// refresh token itself is not rotated; it stays usable until logout or
// natural expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		verr := &ValidationError{}
		verr.add("refreshToken", "must not be empty")
		return "", verr
	}

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return "", ErrInvalidToken
	}

	session, err := s.sessions.Session(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("lookup session: %w", err)
	}

	now := s.now()
	if session.UserID != claims.UserID ||
		session.RefreshTokenHash != crypto.HashToken(refreshToken) ||
		!session.IsActive ||
		!session.RefreshExpiresAt.After(now) {
		return "", ErrInvalidToken
	}

	user, err := s.users.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	accessToken, err := s.tokens.IssueAccess(user.ID, user.Email, string(user.Role), session.ID)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}

	if err := s.sessions.TouchSession(ctx, session.ID, now); err != nil {
		s.logger.Warn("session touch failed", zap.Error(err))
	}
	if err := s.cache.MirrorSession(ctx, user.ID, session.ID, s.cfg.SessionCacheTTL); err != nil {
		s.logger.Warn("session cache mirror failed", zap.Error(err))
	}

	return accessToken, nil
}

// Logout revokes the session, drops the cache mirror and deny-lists the
// presented access token for its remaining lifetime. Logging out an
// already-inactive session still succeeds.
func (s *AuthService) Logout(ctx context.Context, params LogoutParams) error {
	now := s.now()
	if err := s.sessions.RevokeSession(ctx, params.SessionID, now); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if err := s.cache.DropSession(ctx, params.UserID); err != nil {
		s.logger.Warn("session cache drop failed", zap.Error(err))
	}
	if err := s.cache.DenyToken(ctx, params.AccessToken, params.TokenExpiresAt.Sub(now)); err != nil {
		s.logger.Warn("token deny-list failed", zap.Error(err))
	}

	s.logActivity(params.UserID, "logout", "session revoked", params.IP, params.UserAgent)
	return nil
}

// ForgotPassword always reports success for well-formed input, whether or
// not the account exists. Mail dispatch failure is the one fatal email path:
// a reset request with no delivered email is useless.
func (s *AuthService) ForgotPassword(ctx context.Context, email, ip, userAgent string) error {
	email = normalizeEmail(email)
	if !validEmail(email) {
		verr := &ValidationError{}
		verr.add("email", "must be a valid email address")
		return verr
	}

	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup email: %w", err)
	}

	token, err := crypto.NewToken()
	if err != nil {
		return fmt.Errorf("reset token: %w", err)
	}
	if err := s.users.SetPasswordReset(ctx, user.ID, token, s.now().Add(s.cfg.ResetTokenTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, email, token, user.FirstName); err != nil {
		return fmt.Errorf("%w: %v", ErrMailDispatch, err)
	}

	s.logActivity(user.ID, "password.reset_requested", "reset email sent", ip, userAgent)
	return nil
}

// ResetPassword consumes a reset token, stores the new hash and kills every
// session the user holds.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword, ip, userAgent string) error {
	verr := &ValidationError{}
	if token == "" {
		verr.add("token", "must not be empty")
	}
	checkPasswordPolicy(verr, newPassword)
	if err := verr.orNil(); err != nil {
		return err
	}

	user, err := s.users.UserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	now := s.now()
	if user.PasswordResetExpiresAt == nil || !user.PasswordResetExpiresAt.After(now) {
		return ErrInvalidToken
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// Both writes are attempted even if the first fails partway; a recovered
	// credential must not leave stale sessions alive.
	updateErr := s.users.UpdatePassword(ctx, user.ID, hash)
	revokeErr := s.sessions.RevokeAllForUser(ctx, user.ID, now)
	if err := s.cache.DropSession(ctx, user.ID); err != nil {
		s.logger.Warn("session cache drop failed", zap.Error(err))
	}
	if updateErr != nil {
		return fmt.Errorf("update password: %w", updateErr)
	}
	if revokeErr != nil {
		return fmt.Errorf("revoke sessions: %w", revokeErr)
	}

	s.logActivity(user.ID, "password.reset", "password changed, all sessions revoked", ip, userAgent)
	return nil
}

// VerifyEmail flips an INACTIVE account to ACTIVE. The token is single-use:
// it is cleared on success, so a second call finds nothing.
func (s *AuthService) VerifyEmail(ctx context.Context, token, ip, userAgent string) error {
	if token == "" {
		verr := &ValidationError{}
		verr.add("token", "must not be empty")
		return verr
	}

	user, err := s.users.UserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup verification token: %w", err)
	}
	if user.EmailVerified {
		return ErrInvalidToken
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID, s.now()); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	s.logActivity(user.ID, "email.verified", "account activated", ip, userAgent)
	return nil
}

// Profile returns the public projection of a user record.
func (s *AuthService) Profile(ctx context.Context, userID string) (PublicUser, error) {
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return PublicUser{}, ErrInvalidToken
		}
		return PublicUser{}, fmt.Errorf("lookup user: %w", err)
	}
	return publicUser(user), nil
}

// TokenDenied reports whether an access token was revoked at logout.
func (s *AuthService) TokenDenied(ctx context.Context, token string) (bool, error) {
	return s.cache.IsTokenDenied(ctx, token)
}

func publicUser(user model.User) PublicUser {
	return PublicUser{
		ID:            user.ID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Role:          string(user.Role),
		Status:        string(user.Status),
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}
}

// logActivity appends an audit entry without blocking or failing the caller.
func (s *AuthService) logActivity(userID, action, description, ip, userAgent string) {
	entry := model.ActivityLog{
		ID:          uuid.NewString(),
		UserID:      userID,
		Action:      action,
		Description: description,
		CreatedAt:   s.now(),
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	if userAgent != "" {
		entry.UserAgent = &userAgent
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.activity.RecordActivity(ctx, entry); err != nil {
			s.logger.Error("activity log write failed",
				zap.String("action", action),
				zap.Error(err),
			)
		}
	}()
}
