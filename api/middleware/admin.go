package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/movingops/jobreport-backend/api/responses"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

// AdminToken marks requests whose bearer token matches the configured admin token.
// It never rejects; RequireAdmin does that for admin-only routes.
func AdminToken(token string) func(http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && bearerMatches(r, token) {
				r = r.WithContext(WithAdmin(r.Context()))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests that were not marked by AdminToken.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsAdmin(r.Context()) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerMatches(r *http.Request, token string) bool {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(raw), []byte(token)) == 1
}
