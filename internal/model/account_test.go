package model

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestStatus_Classification(t *testing.T) {
	tests := []struct {
		status    Status
		known     bool
		banned    bool
		temporary bool
	}{
		{StatusPendingApproval, true, false, false},
		{StatusApproved, true, false, false},
		{StatusBannedPermanent, true, true, false},
		{StatusBanned24h, true, true, true},
		{StatusBanned7d, true, true, true},
		{StatusDeactivated, true, false, false},
		{Status(0), false, false, false},
		{Status(42), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.Known(); got != tt.known {
				t.Errorf("Known() = %v, want %v", got, tt.known)
			}
			if got := tt.status.IsBanned(); got != tt.banned {
				t.Errorf("IsBanned() = %v, want %v", got, tt.banned)
			}
			if got := tt.status.IsTemporaryBan(); got != tt.temporary {
				t.Errorf("IsTemporaryBan() = %v, want %v", got, tt.temporary)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"approved", StatusApproved, false},
		{"  Banned_7d ", StatusBanned7d, false},
		{"9", StatusDeactivated, false},
		{"10", 0, true},
		{"active", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeUsername(t *testing.T) {
	if got := NormalizeUsername("  Alice "); got != "alice" {
		t.Errorf("NormalizeUsername() = %q, want %q", got, "alice")
	}
}

func TestEmailMatches(t *testing.T) {
	a := &Account{Email: "Alice@Example.com"}

	if !a.EmailMatches(" alice@example.COM ") {
		t.Error("EmailMatches should ignore case and surrounding whitespace")
	}
	if a.EmailMatches("bob@example.com") {
		t.Error("EmailMatches matched a different address")
	}
}

func TestApply_ImposeThenLiftBan(t *testing.T) {
	a := &Account{Username: "bob", Status: StatusApproved, CreatedAt: t0}

	a.Apply(ImposeBan(TwentyFour, "spam", t0))
	if a.Status != StatusBanned24h || a.BanReason != "spam" || a.BanDuration != Label24Hours {
		t.Fatalf("after ImposeBan: %+v", a)
	}
	if a.UnbanAt == nil || !a.UnbanAt.Equal(t0.Add(Ban24hDuration)) {
		t.Fatalf("UnbanAt = %v, want %v", a.UnbanAt, t0.Add(Ban24hDuration))
	}

	a.UnbanRequest = true
	a.Apply(LiftBan())
	once := *a

	a.Apply(LiftBan())
	if a.Status != StatusApproved || a.BanReason != "" || a.BannedAt != nil || a.UnbanAt != nil || a.UnbanRequest {
		t.Errorf("after LiftBan: %+v", a)
	}
	if a.Status != once.Status || a.UnbanRequest != once.UnbanRequest {
		t.Error("LiftBan applied twice should equal applying it once")
	}
}

func TestApply_PermanentBanHasNoUnbanAt(t *testing.T) {
	stale := t0.Add(time.Hour)
	a := &Account{Status: StatusBanned24h, UnbanAt: &stale}

	a.Apply(ImposeBan(Permanent, "fraud", t0))
	if a.Status != StatusBannedPermanent {
		t.Errorf("Status = %v, want banned_permanent", a.Status)
	}
	if a.UnbanAt != nil {
		t.Errorf("UnbanAt = %v, want nil", a.UnbanAt)
	}
}

func TestApply_DeactivateLeavesBanFieldsAlone(t *testing.T) {
	a := &Account{Status: StatusApproved, BanReason: "old", ReactivationRequest: true}

	a.Apply(Deactivate())
	if a.Status != StatusDeactivated {
		t.Errorf("Status = %v, want deactivated", a.Status)
	}
	if a.BanReason != "old" {
		t.Error("Deactivate should not touch ban fields")
	}
	if a.ReactivationRequest {
		t.Error("Deactivate should clear any stale reactivation request")
	}
}

func TestClone_IsIndependent(t *testing.T) {
	login := t0
	a := &Account{Username: "x", LastLoginAt: &login}

	c := a.Clone()
	*c.LastLoginAt = t0.Add(time.Hour)

	if !a.LastLoginAt.Equal(t0) {
		t.Error("mutating the clone changed the original")
	}
}
