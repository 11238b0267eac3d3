package model

import (
	"strings"
	"time"
)

// Account is the single record kept per username.
//
// Ban fields are only meaningful while Status is one of the ban tiers and
// reactivation fields only while Status is StatusDeactivated. Optional
// timestamps are pointers so "absent" and "zero" stay distinguishable; the
// stores translate nil to a missing field (or NULL) and back.
type Account struct {
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`

	BanReason   string     `json:"banReason,omitempty"`
	BanDuration string     `json:"banDuration,omitempty"`
	BannedAt    *time.Time `json:"bannedAt,omitempty"`
	UnbanAt     *time.Time `json:"unbanAt,omitempty"` // nil for permanent bans

	UnbanRequest   bool       `json:"unbanRequest,omitempty"`
	UnbanRequestAt *time.Time `json:"unbanRequestAt,omitempty"`

	ReactivationRequest     bool       `json:"reactivationRequest,omitempty"`
	ReactivationReason      string     `json:"reactivationReason,omitempty"`
	ReactivationRequestedAt *time.Time `json:"reactivationRequestedAt,omitempty"`
	ReactivationEligibleAt  *time.Time `json:"reactivationEligibleAt,omitempty"`
}

// NormalizeUsername returns the store key for a username: trimmed and
// lowercased, so "Alice " and "alice" address the same record.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// EmailMatches compares the stored email against a login-supplied one,
// ignoring case and surrounding whitespace.
func (a *Account) EmailMatches(email string) bool {
	return strings.EqualFold(strings.TrimSpace(a.Email), strings.TrimSpace(email))
}

// Clone returns a deep copy so callers can apply a Patch without touching
// the original.
func (a *Account) Clone() *Account {
	c := *a
	c.LastLoginAt = cloneTime(a.LastLoginAt)
	c.BannedAt = cloneTime(a.BannedAt)
	c.UnbanAt = cloneTime(a.UnbanAt)
	c.UnbanRequestAt = cloneTime(a.UnbanRequestAt)
	c.ReactivationRequestedAt = cloneTime(a.ReactivationRequestedAt)
	c.ReactivationEligibleAt = cloneTime(a.ReactivationEligibleAt)
	return &c
}

// Apply merges p into a. A nil value resets the field to its zero value,
// mirroring how the stores delete the field.
func (a *Account) Apply(p Patch) {
	for field, v := range p {
		switch field {
		case FieldEmail:
			a.Email, _ = v.(string)
		case FieldStatus:
			a.Status, _ = v.(Status)
		case FieldCreatedAt:
			a.CreatedAt, _ = v.(time.Time)
		case FieldLastLoginAt:
			a.LastLoginAt = timePtr(v)
		case FieldBanReason:
			a.BanReason, _ = v.(string)
		case FieldBanDuration:
			a.BanDuration, _ = v.(string)
		case FieldBannedAt:
			a.BannedAt = timePtr(v)
		case FieldUnbanAt:
			a.UnbanAt = timePtr(v)
		case FieldUnbanRequest:
			a.UnbanRequest, _ = v.(bool)
		case FieldUnbanRequestAt:
			a.UnbanRequestAt = timePtr(v)
		case FieldReactivationRequest:
			a.ReactivationRequest, _ = v.(bool)
		case FieldReactivationReason:
			a.ReactivationReason, _ = v.(string)
		case FieldReactivationRequestedAt:
			a.ReactivationRequestedAt = timePtr(v)
		case FieldReactivationEligibleAt:
			a.ReactivationEligibleAt = timePtr(v)
		}
	}
}

func timePtr(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return cloneTime(t)
	default:
		return nil
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
