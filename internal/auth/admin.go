package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/account-gate/internal/apperror"
)

// AdminSubject is the subject of every admin token. There is a single
// shared admin identity.
const AdminSubject = "admin"

// AdminToken is the result of a successful key exchange.
type AdminToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminAuthenticator exchanges the admin key for a token.
type AdminAuthenticator struct {
	keyHash string
	hasher  *Hasher
	tokens  *TokenService
	logger  *slog.Logger
}

// NewAdminAuthenticator returns an authenticator. An empty keyHash disables
// admin login entirely.
func NewAdminAuthenticator(keyHash string, hasher *Hasher, tokens *TokenService, logger *slog.Logger) *AdminAuthenticator {
	return &AdminAuthenticator{keyHash: keyHash, hasher: hasher, tokens: tokens, logger: logger}
}

// Enabled reports whether an admin key is configured.
func (a *AdminAuthenticator) Enabled() bool {
	return a.keyHash != "" && a.tokens != nil
}

// Login verifies adminKey and issues a token.
func (a *AdminAuthenticator) Login(_ context.Context, adminKey string) (*AdminToken, error) {
	if !a.Enabled() {
		return nil, apperror.Forbidden("Admin access is not configured.")
	}
	if adminKey == "" {
		return nil, apperror.ValidationFailed("adminKey", "Admin key is required.")
	}

	if err := a.hasher.Verify(a.keyHash, adminKey); err != nil {
		if !errors.Is(err, ErrMismatch) {
			// A malformed hash is an operator mistake, not a bad guess.
			a.logger.Error("admin key hash is invalid", slog.String("error", err.Error()))
		} else {
			a.logger.Warn("admin login rejected")
		}
		return nil, apperror.Unauthorized("Invalid admin key.")
	}

	token, expiresAt, err := a.tokens.Issue(AdminSubject)
	if err != nil {
		return nil, err
	}
	a.logger.Info("admin token issued", slog.Time("expires_at", expiresAt))
	return &AdminToken{Token: token, ExpiresAt: expiresAt}, nil
}
