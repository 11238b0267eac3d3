package service

import (
	"time"

	"github.com/sakif/account-gate/internal/model"
)

// =========================================================================
// STATUS ENGINE
// =========================================================================
//
// The engine is pure: given a record, the current time and the policy it
// decides (a) which time-based transition, if any, is due and (b) what the
// caller should be told about the record. It never touches the store; the
// services persist whatever patch it returns.
//
// At most one transition fires per evaluation. After it is persisted the
// record is re-read and evaluated as-is, so an expired ban lets the same
// login through as Approved instead of cascading into the inactivity rule.

type transitionKind int

const (
	noTransition transitionKind = iota
	transitionAutoUnban
	transitionDeactivate
	transitionAutoReactivate
)

func (k transitionKind) String() string {
	switch k {
	case transitionAutoUnban:
		return "auto_unban"
	case transitionDeactivate:
		return "deactivate"
	case transitionAutoReactivate:
		return "auto_reactivate"
	default:
		return "none"
	}
}

func (k transitionKind) eventType() string {
	switch k {
	case transitionAutoUnban:
		return model.EventAutoUnban
	case transitionDeactivate:
		return model.EventDeactivated
	case transitionAutoReactivate:
		return model.EventAutoReactivated
	default:
		return ""
	}
}

type transition struct {
	kind  transitionKind
	patch model.Patch
}

// pendingTransition returns the time-based transition due for a at now.
func pendingTransition(a *model.Account, now time.Time, p Policy) transition {
	if tier, ok := temporaryBanTier(a); ok {
		if until, ok := banExpiry(a, tier); ok && now.After(until) {
			return transition{kind: transitionAutoUnban, patch: restoreActivity(model.LiftBan(), now)}
		}
		return transition{}
	}

	switch a.Status {
	case model.StatusApproved:
		if inactive(a, now, p) {
			return transition{kind: transitionDeactivate, patch: model.Deactivate()}
		}
	case model.StatusDeactivated:
		if a.ReactivationEligibleAt != nil && now.After(*a.ReactivationEligibleAt) {
			return transition{kind: transitionAutoReactivate, patch: restoreActivity(model.Reactivate(), now)}
		}
	}
	return transition{}
}

// inactive applies the inactivity rule. An account that has never logged in
// has no inactivity clock yet and is left alone.
func inactive(a *model.Account, now time.Time, p Policy) bool {
	if !p.EnableDeactivation || p.InactivityThreshold <= 0 || a.LastLoginAt == nil {
		return false
	}
	return now.Sub(*a.LastLoginAt) > p.InactivityThreshold
}

// restoreActivity stamps lastLoginAt on a patch that returns an account to
// Approved. Without it the stale login time from before the ban or the
// deactivation would trip the inactivity rule on the very next check.
func restoreActivity(p model.Patch, now time.Time) model.Patch {
	return p.Set(model.FieldLastLoginAt, now)
}

// temporaryBanTier reports whether a should be treated as a temporary ban
// and under which tier.
//
// Besides the two real tiers this recognises legacy records written before
// the status codes were fixed: an unknown status carrying bannedAt, a
// concrete unbanAt and one of the two canonical duration labels.
func temporaryBanTier(a *model.Account) (model.Status, bool) {
	if a.Status.IsTemporaryBan() {
		return a.Status, true
	}
	if a.Status.Known() || a.BannedAt == nil || a.UnbanAt == nil {
		return 0, false
	}
	switch a.BanDuration {
	case model.Label24Hours:
		return model.StatusBanned24h, true
	case model.Label7Days:
		return model.StatusBanned7d, true
	default:
		return 0, false
	}
}

// banExpiry returns when a temporary ban ends. An explicit unbanAt wins;
// otherwise the tier's fixed length is added to bannedAt. ok is false when
// the record carries neither, which is an inconsistent ban.
func banExpiry(a *model.Account, tier model.Status) (time.Time, bool) {
	if a.UnbanAt != nil {
		return *a.UnbanAt, true
	}
	if a.BannedAt != nil {
		return a.BannedAt.Add(model.TermForTier(tier).Duration()), true
	}
	return time.Time{}, false
}

// evaluateStatus maps a record, with transitions already applied, to what
// the caller sees. Unknown codes are never treated as approval.
func evaluateStatus(a *model.Account) Outcome {
	switch a.Status {
	case model.StatusPendingApproval:
		return outcome(OutcomePending, msgPending)
	case model.StatusBannedPermanent:
		return banned(a.Username, &BanDetails{
			Reason:   reasonOr(a.BanReason, DefaultPermanentReason),
			Duration: model.LabelPermanent,
		})
	case model.StatusBanned24h, model.StatusBanned7d:
		return temporaryBanOutcome(a, a.Status)
	case model.StatusDeleted:
		return outcome(OutcomeDeleted, msgDeleted)
	case model.StatusServerError, model.StatusCrashed:
		return outcome(OutcomeAccountError, msgAccountError)
	case model.StatusDeactivated:
		return outcome(OutcomeDeactivated, msgDeactivated)
	case model.StatusApproved:
		return approved(a)
	}

	if tier, ok := temporaryBanTier(a); ok {
		return temporaryBanOutcome(a, tier)
	}
	return outcome(OutcomeUnknownStatus, msgUnknownStatus)
}

func temporaryBanOutcome(a *model.Account, tier model.Status) Outcome {
	until, ok := banExpiry(a, tier)
	if !ok {
		return outcome(OutcomeAccountError, msgAccountError)
	}
	duration := a.BanDuration
	if duration == "" {
		duration = model.TermForTier(tier).Label()
	}
	return banned(a.Username, &BanDetails{
		Reason:   reasonOr(a.BanReason, defaultReason(tier)),
		Duration: duration,
		UnbanAt:  &until,
	})
}

func reasonOr(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}
