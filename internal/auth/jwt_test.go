package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// newTestTokenService returns a TokenService with a fixed secret and a
// controllable clock.
func newTestTokenService(t *testing.T) (*TokenService, *time.Time) {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", 10*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return now }
	return ts, &now
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short", time.Minute); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	ts, err := NewTokenService("this-is-16-chars", 0)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	if ts.ttl != DefaultTokenTTL {
		t.Errorf("ttl = %v, want %v", ts.ttl, DefaultTokenTTL)
	}
}

// =========================================================================
// ISSUE / VALIDATE
// =========================================================================

func TestIssue_RoundTrip(t *testing.T) {
	ts, now := newTestTokenService(t)

	token, expiresAt, err := ts.Issue(AdminSubject)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q doesn't look like a JWT", token)
	}
	if !expiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Errorf("expiresAt = %v, want %v", expiresAt, now.Add(10*time.Minute))
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != AdminSubject {
		t.Errorf("Validate() subject = %q, want %q", got, AdminSubject)
	}
}

func TestValidate_Expired(t *testing.T) {
	ts, now := newTestTokenService(t)

	token, _, err := ts.Issue(AdminSubject)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	*now = now.Add(11 * time.Minute)
	if _, err := ts.Validate(token); err == nil {
		t.Fatal("Validate() should reject an expired token")
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts, _ := newTestTokenService(t)
	good, _, _ := ts.Issue(AdminSubject)

	other, _ := NewTokenService("a-completely-different-secret!!!", time.Minute)
	foreign, _, _ := other.Issue(AdminSubject)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"tampered signature", good[:len(good)-3] + "xxx"},
		{"wrong secret", foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token); err == nil {
				t.Errorf("Validate(%q) should fail", tt.name)
			}
		})
	}
}

func TestValidate_RejectsNonAdminRole(t *testing.T) {
	ts, _ := newTestTokenService(t)

	// Same secret and issuer, but minted without the admin role.
	c := claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   AdminSubject,
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(ts.now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(ts.secret)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	if _, err := ts.Validate(token); err == nil {
		t.Fatal("Validate() should reject tokens without the admin role")
	}
}
