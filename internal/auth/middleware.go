package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or overwrite the
// values this package puts in a request context.
type contextKey string

const subjectKey contextKey = "adminSubject"

// RequireAdmin rejects requests without a valid admin bearer token.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns one that wraps it:
//
//	req → RequireAdmin → handler → RequireAdmin → resp
//
// On failure the chain stops here with 401 and the handler never runs.
func RequireAdmin(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := subjectFromRequest(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"status":  "unauthorized",
					"message": "A valid admin token is required.",
				})
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the admin subject RequireAdmin stored.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok && s != ""
}

var errNoBearer = errors.New("auth: missing bearer token")

// subjectFromRequest reads "Authorization: Bearer <jwt>" and validates it.
func subjectFromRequest(r *http.Request, tokens *TokenService) (string, error) {
	if tokens == nil {
		return "", errNoBearer
	}
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errNoBearer
	}
	return tokens.Validate(strings.TrimSpace(token))
}
