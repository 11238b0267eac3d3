package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestHasher() *Hasher {
	return NewHasherWithCost(bcrypt.MinCost)
}

func TestHash_LooksBcrypt(t *testing.T) {
	h := newTestHasher()

	hash, err := h.Hash("admin-key-123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("Hash() = %q, want a $2a$ bcrypt hash", hash)
	}
}

func TestHash_Salted(t *testing.T) {
	h := newTestHasher()

	a, _ := h.Hash("same-secret")
	b, _ := h.Hash("same-secret")
	if a == b {
		t.Error("hashing the same secret twice should produce different hashes")
	}
}

func TestHash_LengthLimit(t *testing.T) {
	h := newTestHasher()

	if _, err := h.Hash(strings.Repeat("a", 72)); err != nil {
		t.Errorf("Hash(72 bytes) error = %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", 73)); err == nil {
		t.Error("Hash(73 bytes) should fail")
	}
}

func TestVerify(t *testing.T) {
	h := newTestHasher()
	hash, err := h.Hash("correct-key")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name         string
		hash         string
		secret       string
		wantErr      bool
		wantMismatch bool
	}{
		{"correct", hash, "correct-key", false, false},
		{"wrong", hash, "wrong-key", true, true},
		{"empty", hash, "", true, true},
		{"garbage hash", "not-a-hash", "correct-key", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Verify(tt.hash, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrMismatch) != tt.wantMismatch {
				t.Errorf("errors.Is(err, ErrMismatch) = %v, want %v", errors.Is(err, ErrMismatch), tt.wantMismatch)
			}
		})
	}
}
