package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"prohori/internal/api/respond"
	"prohori/internal/domain"
	"prohori/pkg/e"
)

//go:generate mockgen -source=auth.go -destination=mocks/mock.go
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
}

type sessionKey struct{}

// SessionFrom returns the session attached by Session or RequireRole.
func SessionFrom(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*domain.Session)
	return s, ok
}

func WithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Session attaches the caller's session when a valid bearer token is sent.
// Anonymous requests pass through unchanged.
func Session(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, e.ErrUnauthorized) {
					respond.Error(w, r, logger, err)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// RequireRole admits a bearer session with the given role. A request carrying
// the configured X-API-Key is admitted as well; an empty apiKey disables that.
func RequireRole(auth Authenticator, apiKey string, role domain.Role, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("X-API-Key"); apiKey != "" && key != "" {
				if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
				respond.Error(w, r, logger, fmt.Errorf("bad api key: %w", e.ErrUnauthorized))
				return
			}

			sess, err := auth.Authenticate(r.Context(), bearer(r))
			if err != nil {
				respond.Error(w, r, logger, err)
				return
			}
			if sess.Role != role {
				respond.Error(w, r, logger, fmt.Errorf("role %q, need %q: %w", sess.Role, role, e.ErrForbidden))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}
