package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/sakif/account-gate/internal/model"
)

// OutcomeKind tags the result of a login evaluation. The set is closed:
// every evaluation ends in exactly one of these.
type OutcomeKind string

const (
	OutcomeNotFound            OutcomeKind = "not_found"
	OutcomeInvalidCredentials  OutcomeKind = "invalid_credentials"
	OutcomePending             OutcomeKind = "pending"
	OutcomeApproved            OutcomeKind = "approved"
	OutcomeBanned              OutcomeKind = "banned"
	OutcomeDeleted             OutcomeKind = "deleted"
	OutcomeAccountError        OutcomeKind = "error"
	OutcomeDeactivated         OutcomeKind = "deactivated"
	OutcomeUnknownStatus       OutcomeKind = "unknown_status"
	OutcomeSecurityCheckFailed OutcomeKind = "security_check_failed"
	OutcomeStoreError          OutcomeKind = "store_error"
)

// Client-facing messages. Existing clients match on some of these strings,
// so they are kept verbatim.
const (
	msgInvalidCredentials = "Invalid username or email."
	msgPending            = "This account is pending for approval."
	msgApproved           = "Credentials verified."
	msgPermanentBan       = "Your account is permanently banned."
	msgDeleted            = "This account has been deleted."
	msgAccountError       = "A server error occurred with your account. Please contact support."
	msgDeactivated        = "Your account has been deactivated due to prolonged inactivity."
	msgUnknownStatus      = "Unknown account status. Please contact support."
	msgSecurityCheck      = "A critical error occurred during the security scan."
	msgStoreError         = "Server error. Please try again later."
)

// Default ban reasons for records that carry none.
const (
	DefaultPermanentReason  = "Violation of terms"
	Default24hReason        = "Temporary suspension"
	Default7dReason         = "Extended suspension"
	DefaultClassifierReason = "No reason specified."
)

// BanDetails is what a banned caller is told about the ban. UnbanAt is nil
// for permanent bans.
type BanDetails struct {
	Reason   string     `json:"banReason"`
	Duration string     `json:"banDuration"`
	UnbanAt  *time.Time `json:"unbanAt,omitempty"`
}

// Outcome is the tagged result of EvaluateLogin and Login.
//
// Ban is set only for OutcomeBanned. Err carries the underlying cause for
// OutcomeStoreError and OutcomeSecurityCheckFailed; it is for logs only and
// never shown to clients.
type Outcome struct {
	Kind     OutcomeKind
	Message  string
	Username string
	Email    string
	Ban      *BanDetails
	Err      error
}

// Allowed reports whether the caller may be let in.
func (o Outcome) Allowed() bool {
	return o.Kind == OutcomeApproved
}

func outcome(kind OutcomeKind, msg string) Outcome {
	return Outcome{Kind: kind, Message: msg}
}

func notFound() Outcome           { return outcome(OutcomeNotFound, msgInvalidCredentials) }
func invalidCredentials() Outcome { return outcome(OutcomeInvalidCredentials, msgInvalidCredentials) }

func storeError(err error) Outcome {
	return Outcome{Kind: OutcomeStoreError, Message: msgStoreError, Err: err}
}

func securityCheckFailed(err error) Outcome {
	return Outcome{Kind: OutcomeSecurityCheckFailed, Message: msgSecurityCheck, Err: err}
}

func approved(a *model.Account) Outcome {
	return Outcome{Kind: OutcomeApproved, Message: msgApproved, Username: a.Username, Email: a.Email}
}

func banned(username string, ban *BanDetails) Outcome {
	return Outcome{
		Kind:     OutcomeBanned,
		Message:  banMessage(ban),
		Username: username,
		Ban:      ban,
	}
}

// banMessage renders "Your account is banned for 24 hours." from the label
// so classifier-issued terms ("12 Hours") read naturally too.
func banMessage(ban *BanDetails) string {
	if ban.UnbanAt == nil {
		return msgPermanentBan
	}
	return fmt.Sprintf("Your account is banned for %s.", strings.ToLower(ban.Duration))
}

func defaultReason(s model.Status) string {
	switch s {
	case model.StatusBanned24h:
		return Default24hReason
	case model.StatusBanned7d:
		return Default7dReason
	default:
		return DefaultPermanentReason
	}
}
