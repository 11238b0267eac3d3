// Package service contains the account-gate business logic.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → status engine, ban and reactivation workflows
//	Repository (data layer)  → key-value account records
//
// Everything time-dependent takes `now` as a parameter instead of calling
// time.Now() itself. Transition decisions therefore use one authoritative
// instant per operation, and tests can walk an account through days of
// bans and inactivity without sleeping.
//
// STORE CONTRACT:
// None of the operations assume the store is transactional. Each one is
// "read record → decide → merge a patch", and every patch is idempotent:
// two concurrent logins that both see an expired ban both write the same
// cleared record, so the race is harmless.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/model"
	"github.com/sakif/account-gate/internal/repository"
)

// Policy holds the tunable parameters of the lifecycle.
type Policy struct {
	// InactivityThreshold is how long an Approved account may go without a
	// login before it is deactivated.
	InactivityThreshold time.Duration
	// ReactivationWindow is the delay between a reactivation request and the
	// moment the account reactivates itself.
	ReactivationWindow time.Duration
	// EnableDeactivation turns the inactivity rule on. Deployments that never
	// had deactivation keep it off.
	EnableDeactivation bool

	// Upper bounds on the only two suspension points. Zero means "no bound
	// beyond the caller's context".
	StoreTimeout      time.Duration
	ClassifierTimeout time.Duration
}

// DefaultPolicy returns the policy the service ships with.
func DefaultPolicy() Policy {
	return Policy{
		InactivityThreshold: 7 * 24 * time.Hour,
		ReactivationWindow:  12 * time.Hour,
		EnableDeactivation:  true,
		StoreTimeout:        5 * time.Second,
		ClassifierTimeout:   10 * time.Second,
	}
}

// base is the plumbing shared by every service in this package: the account
// store, the audit log and the policy.
type base struct {
	store  repository.AccountStore
	audit  repository.AuditRepository // optional
	policy Policy
	logger *slog.Logger
}

func newBase(store repository.AccountStore, audit repository.AuditRepository, policy Policy, logger *slog.Logger) base {
	return base{store: store, audit: audit, policy: policy, logger: logger}
}

// storeCtx bounds a single store call by the configured timeout.
func (b *base) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.policy.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.policy.StoreTimeout)
}

func (b *base) get(ctx context.Context, key string) (*model.Account, error) {
	ctx, cancel := b.storeCtx(ctx)
	defer cancel()
	return b.store.Get(ctx, key)
}

func (b *base) merge(ctx context.Context, key string, patch model.Patch) error {
	ctx, cancel := b.storeCtx(ctx)
	defer cancel()
	return b.store.Merge(ctx, key, patch)
}

// loadAccount fetches a record for an (result, error) style operation:
// missing records become a NotFound AppError carrying notFoundMsg and any
// other failure becomes an Unavailable AppError.
func (b *base) loadAccount(ctx context.Context, key, notFoundMsg string) (*model.Account, error) {
	a, err := b.get(ctx, key)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("account", key).WithMessage(notFoundMsg)
		}
		b.logger.Error("account store read failed",
			slog.String("username", key),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Unavailable("account store", err)
	}
	return a, nil
}

// write merges a patch for an (result, error) style operation.
func (b *base) write(ctx context.Context, key string, patch model.Patch) error {
	if err := b.merge(ctx, key, patch); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		b.logger.Error("account store write failed",
			slog.String("username", key),
			slog.String("error", err.Error()),
		)
		return apperror.Unavailable("account store", err)
	}
	return nil
}

// record appends an audit event. Audit failures are logged and swallowed:
// the state change they describe has already happened.
func (b *base) record(ctx context.Context, username, eventType, detail string, now time.Time) {
	if b.audit == nil {
		return
	}
	ctx, cancel := b.storeCtx(ctx)
	defer cancel()

	err := b.audit.RecordEvent(ctx, &model.AuditEvent{
		Username:  username,
		Type:      eventType,
		Detail:    detail,
		CreatedAt: now,
	})
	if err != nil {
		b.logger.Warn("failed to record audit event",
			slog.String("username", username),
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
	}
}
