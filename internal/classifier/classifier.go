// Package classifier talks to the external suspicious-activity classifier.
//
// The classifier is a black box: it receives a username, an email and a
// free-text activity log, and answers whether the account should be banned.
// Everything the service layer needs from it is the Classifier interface
// below, which keeps the veto logic testable with a plain function.
package classifier

import (
	"context"

	"github.com/sakif/account-gate/internal/model"
)

// Request is what the classifier is asked to judge.
type Request struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	ActivityLog string `json:"activityLog"`
}

// Verdict is the classifier's answer.
//
// BanDuration is the loosely formatted string older classifiers emit
// ("24 Hours", "7 Days", or empty for permanent). Newer classifiers may fill
// Term instead; when Term is set it wins and BanDuration is only a label.
type Verdict struct {
	IsBanned    bool           `json:"isBanned"`
	BanReason   string         `json:"banReason,omitempty"`
	BanDuration string         `json:"banDuration,omitempty"`
	Term        *model.BanTerm `json:"banTerm,omitempty"`
}

// ResolveTerm returns the ban term the verdict asks for. The structured Term
// is preferred; the free-text duration is parsed only as a fallback.
func (v *Verdict) ResolveTerm() model.BanTerm {
	if v.Term != nil {
		switch v.Term.Unit {
		case model.BanHours, model.BanDays:
			if v.Term.Magnitude > 0 {
				return v.Term.Bounded()
			}
		case model.BanPermanent:
			return model.Permanent
		}
	}
	return model.ParseBanDuration(v.BanDuration)
}

// Classifier judges a login's activity log. An error means no verdict was
// reached; callers must not read it as either "clear" or "banned".
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Verdict, error)
}

// Func adapts an ordinary function to the Classifier interface, the same way
// http.HandlerFunc adapts a function to http.Handler.
type Func func(ctx context.Context, req Request) (*Verdict, error)

func (f Func) Classify(ctx context.Context, req Request) (*Verdict, error) {
	return f(ctx, req)
}

// AllowAll never bans anyone. It is what the server wires in when no
// classifier URL is configured.
var AllowAll Classifier = Func(func(context.Context, Request) (*Verdict, error) {
	return &Verdict{IsBanned: false}, nil
})
