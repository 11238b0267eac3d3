package model

import "time"

// Field names a single attribute of an Account record. The string values are
// the attribute names used by the key-value store and the JSON API.
type Field string

const (
	FieldEmail                   Field = "email"
	FieldStatus                  Field = "status"
	FieldCreatedAt               Field = "createdAt"
	FieldLastLoginAt             Field = "lastLoginAt"
	FieldBanReason               Field = "banReason"
	FieldBanDuration             Field = "banDuration"
	FieldBannedAt                Field = "bannedAt"
	FieldUnbanAt                 Field = "unbanAt"
	FieldUnbanRequest            Field = "unbanRequest"
	FieldUnbanRequestAt          Field = "unbanRequestAt"
	FieldReactivationRequest     Field = "reactivationRequest"
	FieldReactivationReason      Field = "reactivationReason"
	FieldReactivationRequestedAt Field = "reactivationRequestedAt"
	FieldReactivationEligibleAt  Field = "reactivationEligibleAt"
)

// Patch is a field-level update. Values are Status, string, bool or
// time.Time; a nil value deletes the field.
type Patch map[Field]any

// Set adds a field to the patch and returns it for chaining.
func (p Patch) Set(field Field, value any) Patch {
	p[field] = value
	return p
}

// Clear marks each field for deletion.
func (p Patch) Clear(fields ...Field) Patch {
	for _, f := range fields {
		p[f] = nil
	}
	return p
}

var banFields = []Field{FieldBanReason, FieldBanDuration, FieldBannedAt, FieldUnbanAt}

var unbanRequestFields = []Field{FieldUnbanRequest, FieldUnbanRequestAt}

var reactivationFields = []Field{
	FieldReactivationRequest,
	FieldReactivationReason,
	FieldReactivationRequestedAt,
	FieldReactivationEligibleAt,
}

// LiftBan returns the patch that restores an account to Approved and removes
// every trace of a ban, including any outstanding unban request. Applying it
// twice yields the same record.
func LiftBan() Patch {
	return Patch{FieldStatus: StatusApproved}.Clear(banFields...).Clear(unbanRequestFields...)
}

// ImposeBan returns the patch that puts an account under the given ban. Any
// outstanding unban or reactivation request belongs to the previous state and
// is dropped.
func ImposeBan(term BanTerm, reason string, at time.Time) Patch {
	term = term.Bounded()
	p := Patch{
		FieldStatus:      term.Status(),
		FieldBanReason:   reason,
		FieldBanDuration: term.Label(),
		FieldBannedAt:    at,
	}
	p.Clear(unbanRequestFields...).Clear(reactivationFields...)
	if until, ok := term.Until(at); ok {
		p[FieldUnbanAt] = until
	} else {
		p[FieldUnbanAt] = nil
	}
	return p
}

// Deactivate returns the patch for an inactivity deactivation. Ban fields
// are not touched.
func Deactivate() Patch {
	return Patch{FieldStatus: StatusDeactivated}.Clear(reactivationFields...)
}

// Reactivate returns the patch that restores a deactivated account.
func Reactivate() Patch {
	return Patch{FieldStatus: StatusApproved}.Clear(reactivationFields...)
}

// ClearUnbanRequest drops an outstanding unban request without changing status.
func ClearUnbanRequest() Patch {
	return Patch{}.Clear(unbanRequestFields...)
}

// ClearReactivationRequest drops an outstanding reactivation request.
func ClearReactivationRequest() Patch {
	return Patch{}.Clear(reactivationFields...)
}

// Reassign returns the patch for an administrative move to a status outside
// the ban tiers. Ban and unban-request fields are dropped; reactivation fields
// survive only when the target is StatusDeactivated.
func Reassign(s Status) Patch {
	p := Patch{FieldStatus: s}.Clear(banFields...).Clear(unbanRequestFields...)
	if s != StatusDeactivated {
		p.Clear(reactivationFields...)
	}
	return p
}
