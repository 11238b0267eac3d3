// Package auth protects the administrator endpoints.
//
// ADMIN AUTHENTICATION FLOW:
//  1. The operator stores a bcrypt hash of the admin key in the config
//     (generate one with `account-gate hash-key`).
//  2. POST /api/admin/token with {"adminKey": "..."}: the key is checked
//     against the hash and, if it matches, a short-lived JWT is returned.
//  3. Admin requests send "Authorization: Bearer <jwt>". RequireAdmin
//     validates the token and lets the request through.
//
// WHY EXCHANGE THE KEY FOR A TOKEN?
// bcrypt is deliberately slow. Verifying it on every admin request would
// make the review queue sluggish and turn every request into a brute-force
// oracle. Checking a signed JWT costs one HMAC.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"admin","role":"admin","iss":"account-gate","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer    = "account-gate"
	roleAdmin = "admin"

	// DefaultTokenTTL is how long an admin token stays valid.
	DefaultTokenTTL = 30 * time.Minute
)

// TokenService signs and validates admin JWTs with an HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. A ttl of zero selects
// DefaultTokenTTL. The secret should be at least 32 random bytes in
// production, e.g. $(openssl rand -hex 32).
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// claims is the JWT payload: the registered claims plus a role, so a token
// minted for some other purpose with the same secret is not an admin token.
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs a new admin token for subject and reports when it expires.
func (s *TokenService) Issue(subject string) (string, time.Time, error) {
	return s.issue(subject, s.ttl)
}

func (s *TokenService) issue(subject string, d time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(d)

	c := claims{
		Role: roleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies a token and returns its subject.
//
// VALIDATION CHECKS:
//   - signature made with our secret, algorithm HS256 only (rejects "none"
//     and algorithm-confusion tricks)
//   - not expired, and an expiry is present at all
//   - issuer is "account-gate" and role is "admin"
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Role != roleAdmin {
		return "", fmt.Errorf("auth: token is not an admin token")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}
