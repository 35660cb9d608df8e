package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"skillforge/user-service/internal/auth"
	"skillforge/user-service/internal/cache"
	"skillforge/user-service/internal/service"
)

var authRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_requests_total",
	Help: "Auth operations by outcome.",
}, []string{"operation", "result"})

type Server struct {
	svc            *service.AuthService
	tokens         *auth.Issuer
	logger         *zap.Logger
	authLimiter    *cache.Limiter
	generalLimiter *cache.Limiter
}

// NewServer wires the router. Limiters may be nil, in which case the
// corresponding routes are not rate limited (used by tests).
func NewServer(svc *service.AuthService, tokens *auth.Issuer, logger *zap.Logger, authLimiter, generalLimiter *cache.Limiter) *Server {
	return &Server{
		svc:            svc,
		tokens:         tokens,
		logger:         logger,
		authLimiter:    authLimiter,
		generalLimiter: generalLimiter,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		// Credential endpoints get the strict window; everything else the
		// general one.
		r.With(s.rateLimit(s.authLimiter)).Post("/register", s.handleRegister)
		r.With(s.rateLimit(s.authLimiter)).Post("/login", s.handleLogin)
		r.With(s.rateLimit(s.authLimiter)).Post("/forgot-password", s.handleForgotPassword)
		r.With(s.rateLimit(s.authLimiter)).Post("/reset-password", s.handleResetPassword)

		r.With(s.rateLimit(s.generalLimiter)).Post("/refresh", s.handleRefresh)
		r.With(s.rateLimit(s.generalLimiter)).Post("/verify-email", s.handleVerifyEmail)

		r.With(s.authMiddleware).Post("/logout", s.handleLogout)
		r.With(s.authMiddleware).Get("/me", s.handleGetMe)
	})

	return r
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	result, err := s.svc.Register(r.Context(), service.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		s.writeServiceError(w, "register", err)
		return
	}

	authRequests.WithLabelValues("register", "success").Inc()
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"userId":                    result.UserID,
		"email":                     result.Email,
		"emailVerificationRequired": true,
	})
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	result, err := s.svc.Login(r.Context(), service.LoginParams{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		IP:         clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		s.writeServiceError(w, "login", err)
		return
	}

	authRequests.WithLabelValues("login", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"user":         result.User,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	accessToken, err := s.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		// A bad refresh token is an authentication failure, unlike the
		// single-use reset/verification tokens which map to 400.
		if errors.Is(err, service.ErrInvalidToken) {
			authRequests.WithLabelValues("refresh", "rejected").Inc()
			writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
			return
		}
		s.writeServiceError(w, "refresh", err)
		return
	}

	authRequests.WithLabelValues("refresh", "success").Inc()
	// The refresh token is echoed back unchanged; there is no rotation.
	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  accessToken,
		"refreshToken": req.RefreshToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "authentication required")
		return
	}

	err := s.svc.Logout(r.Context(), service.LogoutParams{
		UserID:         claims.UserID,
		SessionID:      claims.SessionID,
		AccessToken:    bearerToken(r.Header.Get("Authorization")),
		TokenExpiresAt: claims.ExpiresAt.Time,
		IP:             clientIP(r),
		UserAgent:      r.UserAgent(),
	})
	if err != nil {
		s.writeServiceError(w, "logout", err)
		return
	}

	authRequests.WithLabelValues("logout", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if err := s.svc.ForgotPassword(r.Context(), req.Email, clientIP(r), r.UserAgent()); err != nil {
		s.writeServiceError(w, "forgot_password", err)
		return
	}

	authRequests.WithLabelValues("forgot_password", "success").Inc()
	// Identical response whether or not the account exists.
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists for that email, a reset link has been sent.",
	})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if err := s.svc.ResetPassword(r.Context(), req.Token, req.Password, clientIP(r), r.UserAgent()); err != nil {
		s.writeServiceError(w, "reset_password", err)
		return
	}

	authRequests.WithLabelValues("reset_password", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"message": "password has been reset"})
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if err := s.svc.VerifyEmail(r.Context(), req.Token, clientIP(r), r.UserAgent()); err != nil {
		s.writeServiceError(w, "verify_email", err)
		return
	}

	authRequests.WithLabelValues("verify_email", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "authentication required")
		return
	}

	profile, err := s.svc.Profile(r.Context(), claims.UserID)
	if err != nil {
		s.writeServiceError(w, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) writeServiceError(w http.ResponseWriter, operation string, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		authRequests.WithLabelValues(operation, "rejected").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "validation_error",
			"message": "request validation failed",
			"fields":  verr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrEmailTaken):
		authRequests.WithLabelValues(operation, "rejected").Inc()
		writeError(w, http.StatusConflict, "email_taken", "an account with that email already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		authRequests.WithLabelValues(operation, "rejected").Inc()
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, service.ErrAccountLocked):
		authRequests.WithLabelValues(operation, "rejected").Inc()
		writeError(w, http.StatusLocked, "account_locked", "account temporarily locked, try again later")
	case errors.Is(err, service.ErrAccountSuspended):
		authRequests.WithLabelValues(operation, "rejected").Inc()
		writeError(w, http.StatusForbidden, "account_suspended", "account is suspended")
	case errors.Is(err, service.ErrEmailNotVerified):
		authRequests.WithLabelValues(operation, "rejected").Inc()
		writeError(w, http.StatusForbidden, "email_not_verified", "verify your email before logging in")
	case errors.Is(err, service.ErrInvalidToken):
		authRequests.WithLabelValues(operation, "rejected").Inc()
		writeError(w, http.StatusBadRequest, "invalid_token", "Invalid or expired token")
	default:
		authRequests.WithLabelValues(operation, "error").Inc()
		s.logger.Error("request failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.AccessClaims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.AccessClaims)
	return claims
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
