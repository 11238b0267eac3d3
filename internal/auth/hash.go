package auth

// KEY HASHING:
// Admin keys and moderator API keys are secrets the service must be able to
// check but never needs to read back, so only a bcrypt hash is stored.
// bcrypt salts every hash and embeds the salt and cost in the output:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 rounds)
//	 version

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost takes roughly 250ms per hash on current hardware: negligible
// for an admin login, expensive for anyone guessing.
const defaultCost = 12

// maxSecretBytes is bcrypt's input limit. Longer secrets would be silently
// truncated, so they are rejected instead.
const maxSecretBytes = 72

// ErrMismatch is returned by Verify when the secret does not match.
var ErrMismatch = errors.New("auth: secret does not match")

// Hasher hashes and verifies secrets with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the production cost.
func NewHasher() *Hasher {
	return &Hasher{cost: defaultCost}
}

// NewHasherWithCost lets tests use bcrypt.MinCost (4) so they don't spend a
// quarter second per hash. Never use a low cost in production.
func NewHasherWithCost(cost int) *Hasher {
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of secret.
func (h *Hasher) Hash(secret string) (string, error) {
	if len(secret) > maxSecretBytes {
		return "", fmt.Errorf("auth: secret must be %d bytes or fewer", maxSecretBytes)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks secret against a stored hash in constant time. It returns
// ErrMismatch for a wrong secret and a different error for a malformed hash.
func (h *Hasher) Verify(hash, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return fmt.Errorf("auth: comparing hash: %w", err)
	}
	return nil
}
