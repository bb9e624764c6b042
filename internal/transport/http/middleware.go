package http

import (
	"context"
	"net/http"
	"strings"

	"codearena-service/internal/app"
)

type contextKey string

const claimsKey contextKey = "claims"

// requireRole parses the bearer token and rejects requests whose token is
// missing, invalid or scoped to a different role.
func (h *Handler) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := h.auth.ParseToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if claims.Role != role {
				writeError(w, http.StatusForbidden, "insufficient privileges")
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// teamID extracts the authenticated team id placed by requireRole("team").
func teamID(r *http.Request) string {
	claims, ok := r.Context().Value(claimsKey).(app.Claims)
	if !ok {
		return ""
	}
	return claims.Subject
}
