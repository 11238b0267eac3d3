package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/classifier"
	"github.com/sakif/account-gate/internal/model"
	"github.com/sakif/account-gate/internal/repository"
)

// AccountService owns the end-user operations: signup, login evaluation,
// the security veto and the unban and reactivation requests.
type AccountService struct {
	base
	classifier classifier.Classifier
	lister     repository.AccountLister // optional, only Sweep needs it
	pick       func(n int) int
}

// NewAccountService wires an AccountService. audit and lister may be nil; a
// nil classifier means every veto comes back clear.
func NewAccountService(
	store repository.AccountStore,
	lister repository.AccountLister,
	audit repository.AuditRepository,
	clf classifier.Classifier,
	policy Policy,
	logger *slog.Logger,
) *AccountService {
	if clf == nil {
		clf = classifier.AllowAll
	}
	return &AccountService{
		base:       newBase(store, audit, policy, logger),
		classifier: clf,
		lister:     lister,
		pick:       rand.IntN,
	}
}

// =========================================================================
// LOGIN EVALUATION
// =========================================================================

// EvaluateLogin decides what a login attempt for (username, email) at now
// should see.
//
// ORDER MATTERS:
//  1. Missing record → NotFound.
//  2. Email mismatch → InvalidCredentials. This runs before the status is
//     looked at, so a wrong email never learns whether the account is banned.
//  3. A due time-based transition (ban expiry, inactivity, reactivation) is
//     persisted and the record re-read.
//  4. The resulting status is mapped to an Outcome. Approved logins stamp
//     lastLoginAt.
//
// Store failures come back as OutcomeStoreError; nothing here returns an
// error value.
func (s *AccountService) EvaluateLogin(ctx context.Context, username, email string, now time.Time) Outcome {
	result := s.evaluate(ctx, username, email, now)
	if result.Kind == OutcomeApproved {
		return s.stampLogin(ctx, result, now)
	}
	return result
}

// evaluate is EvaluateLogin without the lastLoginAt stamp.
func (s *AccountService) evaluate(ctx context.Context, username, email string, now time.Time) Outcome {
	key := model.NormalizeUsername(username)
	if key == "" {
		return notFound()
	}

	a, err := s.get(ctx, key)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return notFound()
		}
		s.logger.Error("login: store read failed", slog.String("username", key), slog.String("error", err.Error()))
		return storeError(err)
	}

	if !a.EmailMatches(email) {
		s.logger.Info("login: email mismatch", slog.String("username", key))
		return invalidCredentials()
	}

	a, err = s.applyTransition(ctx, a, now)
	if err != nil {
		return storeError(err)
	}

	result := evaluateStatus(a)
	switch result.Kind {
	case OutcomeUnknownStatus:
		s.logger.Warn("login: unknown account status",
			slog.String("username", key),
			slog.Int("status", int(a.Status)),
		)
	case OutcomeAccountError:
		if a.Status.IsBanned() || !a.Status.Known() {
			s.logger.Warn("login: inconsistent ban fields",
				slog.String("username", key),
				slog.String("status", a.Status.String()),
			)
		}
	}

	s.logger.Debug("login evaluated",
		slog.String("username", key),
		slog.String("outcome", string(result.Kind)),
	)
	return result
}

// stampLogin records a successful login: lastLoginAt = now plus an audit
// event. It runs only once the login is definitely let through.
func (s *AccountService) stampLogin(ctx context.Context, result Outcome, now time.Time) Outcome {
	key := model.NormalizeUsername(result.Username)
	if err := s.merge(ctx, key, model.Patch{model.FieldLastLoginAt: now}); err != nil {
		s.logger.Error("login: failed to record login time", slog.String("username", key), slog.String("error", err.Error()))
		return storeError(err)
	}
	s.record(ctx, key, model.EventLoginApproved, "", now)
	return result
}

// applyTransition persists the transition due for a, if any, and returns
// the re-read record.
func (s *AccountService) applyTransition(ctx context.Context, a *model.Account, now time.Time) (*model.Account, error) {
	t := pendingTransition(a, now, s.policy)
	if t.kind == noTransition {
		return a, nil
	}

	key := a.Username
	if err := s.merge(ctx, key, t.patch); err != nil {
		s.logger.Error("failed to apply transition",
			slog.String("username", key),
			slog.String("transition", t.kind.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("account transitioned",
		slog.String("username", key),
		slog.String("transition", t.kind.String()),
		slog.String("from", a.Status.String()),
	)
	s.record(ctx, key, t.kind.eventType(), "from "+a.Status.String(), now)

	fresh, err := s.get(ctx, key)
	if err != nil {
		s.logger.Error("failed to re-read account after transition", slog.String("username", key), slog.String("error", err.Error()))
		return nil, err
	}
	return fresh, nil
}

// =========================================================================
// LOGIN WITH SECURITY VETO
// =========================================================================

// activityLines are the canned activity descriptions used when a client
// does not send its own activity log.
var activityLines = []string{
	"Logged in from a new device.",
	"Network connection established via residential IP.",
	"Accessed standard application routes.",
	"Attempted to access admin-only endpoint '/api/admin/users' without permissions.",
	"File upload detected: 'profile_pic.jpg'. Scan clean.",
	"Multiple rapid requests to '/api/data' endpoint observed.",
	"Using a known VPN provider for connection.",
}

func (s *AccountService) generateActivity(username string) string {
	return fmt.Sprintf("User %s %s", username, activityLines[s.pick(len(activityLines))])
}

// Login is EvaluateLogin followed, for Approved accounts only, by the
// security veto. An empty activity log is replaced by a generated one.
//
// lastLoginAt is stamped only after the veto comes back clear; a login
// refused by the veto leaves the record as it was.
func (s *AccountService) Login(ctx context.Context, username, email, activity string, now time.Time) Outcome {
	result := s.evaluate(ctx, username, email, now)
	if result.Kind != OutcomeApproved {
		return result
	}

	if activity == "" {
		activity = s.generateActivity(result.Username)
	}

	veto := s.ApplySecurityVeto(ctx, result.Username, result.Email, activity, now)
	switch veto.Verdict {
	case VetoClear:
		return s.stampLogin(ctx, result, now)
	case VetoBanned:
		return banned(result.Username, veto.Ban)
	case VetoStoreFailed:
		return storeError(veto.Err)
	default:
		return securityCheckFailed(veto.Err)
	}
}

// VetoVerdict is the result class of ApplySecurityVeto.
type VetoVerdict int

const (
	// VetoClear: the classifier found nothing; login may proceed.
	VetoClear VetoVerdict = iota
	// VetoBanned: the classifier banned the account and the ban is stored.
	VetoBanned
	// VetoCheckFailed: the classifier could not be reached or timed out.
	VetoCheckFailed
	// VetoStoreFailed: the classifier banned the account but the ban could
	// not be written. Access must still be refused.
	VetoStoreFailed
)

// VetoResult is what ApplySecurityVeto returns. Ban is set for VetoBanned.
type VetoResult struct {
	Verdict VetoVerdict
	Ban     *BanDetails
	Err     error
}

// ApplySecurityVeto asks the classifier about a login and, when it says
// "ban", persists the ban in the same shape the status engine reads.
//
// A classifier failure is VetoCheckFailed and leaves the record untouched;
// it is never read as clear, nor as banned.
func (s *AccountService) ApplySecurityVeto(ctx context.Context, username, email, activity string, now time.Time) VetoResult {
	key := model.NormalizeUsername(username)

	cctx, cancel := s.classifierCtx(ctx)
	verdict, err := s.classifier.Classify(cctx, classifier.Request{
		Username:    key,
		Email:       email,
		ActivityLog: activity,
	})
	cancel()
	if err == nil && verdict == nil {
		err = errors.New("classifier returned no verdict")
	}
	if err != nil {
		s.logger.Error("security check failed", slog.String("username", key), slog.String("error", err.Error()))
		return VetoResult{Verdict: VetoCheckFailed, Err: err}
	}

	if !verdict.IsBanned {
		return VetoResult{Verdict: VetoClear}
	}

	term := verdict.ResolveTerm()
	reason := reasonOr(verdict.BanReason, DefaultClassifierReason)

	if err := s.merge(ctx, key, model.ImposeBan(term, reason, now)); err != nil {
		s.logger.Error("failed to persist security ban",
			slog.String("username", key),
			slog.String("error", err.Error()),
		)
		return VetoResult{Verdict: VetoStoreFailed, Err: err}
	}

	ban := &BanDetails{Reason: reason, Duration: term.Label()}
	if until, ok := term.Until(now); ok {
		ban.UnbanAt = &until
	}

	s.logger.Warn("account banned by security check",
		slog.String("username", key),
		slog.String("reason", reason),
		slog.String("duration", ban.Duration),
	)
	s.record(ctx, key, model.EventSecurityBan, reason+" ("+ban.Duration+")", now)

	return VetoResult{Verdict: VetoBanned, Ban: ban}
}

func (s *AccountService) classifierCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.policy.ClassifierTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.policy.ClassifierTimeout)
}
