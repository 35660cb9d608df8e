package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"skillforge/user-service/internal/cache"
)

// authMiddleware verifies the bearer token's signature, then checks the
// deny-list so a token revoked at logout is rejected even while its
// signature is still valid.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "authentication required")
			return
		}

		claims, err := s.tokens.ParseAccess(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "invalid or expired token")
			return
		}

		denied, err := s.svc.TokenDenied(r.Context(), token)
		if err != nil {
			s.logger.Error("deny-list check failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
			return
		}
		if denied {
			writeError(w, http.StatusUnauthorized, "invalid_token", "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit enforces a fixed window per client IP. A limiter outage opens
// the gate; the limiter is an accelerator, not an authority.
func (s *Server) rateLimit(limiter *cache.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				s.logger.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
