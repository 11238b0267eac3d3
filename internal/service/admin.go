package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/model"
	"github.com/sakif/account-gate/internal/repository"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// AdminService implements the administrator overrides: reviewing unban and
// reactivation requests, setting a status directly and imposing bans.
// Callers are expected to have authenticated the administrator already.
type AdminService struct {
	base
	lister repository.AccountLister
}

func NewAdminService(
	store repository.AccountStore,
	lister repository.AccountLister,
	audit repository.AuditRepository,
	policy Policy,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		base:   newBase(store, audit, policy, logger),
		lister: lister,
	}
}

// ListUnbanRequests returns accounts with an outstanding unban request,
// oldest first.
func (s *AdminService) ListUnbanRequests(ctx context.Context, limit, offset int) ([]model.Account, error) {
	return s.list(ctx, repository.AccountFilter{UnbanRequest: true}, limit, offset)
}

// ListReactivationRequests returns accounts with an outstanding
// reactivation request, oldest first.
func (s *AdminService) ListReactivationRequests(ctx context.Context, limit, offset int) ([]model.Account, error) {
	return s.list(ctx, repository.AccountFilter{ReactivationRequest: true}, limit, offset)
}

func (s *AdminService) list(ctx context.Context, filter repository.AccountFilter, limit, offset int) ([]model.Account, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	filter.Limit, filter.Offset = limit, offset

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	accounts, err := s.lister.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list accounts", slog.String("error", err.Error()))
		return nil, apperror.Unavailable("account store", err)
	}
	return accounts, nil
}

// ReviewUnban resolves an outstanding unban request. Approval lifts the ban;
// denial only drops the request, leaving the ban in place.
func (s *AdminService) ReviewUnban(ctx context.Context, username string, approve bool, now time.Time) (*model.Account, error) {
	key := model.NormalizeUsername(username)
	a, err := s.loadAccount(ctx, key, "User not found.")
	if err != nil {
		return nil, err
	}
	if !a.UnbanRequest {
		return nil, apperror.Policy("No unban request is pending for this account.")
	}

	// Requests filed from a non-ban state are just dropped either way.
	patch := model.ClearUnbanRequest()
	detail := "denied"
	if approve {
		detail = "approved"
		if a.Status.IsBanned() || !a.Status.Known() {
			patch = restoreActivity(model.LiftBan(), now)
		}
	}

	return s.apply(ctx, key, patch, model.EventAdminUnbanReview, detail, now)
}

// ReviewReactivation resolves an outstanding reactivation request ahead of
// its eligibility time.
func (s *AdminService) ReviewReactivation(ctx context.Context, username string, approve bool, now time.Time) (*model.Account, error) {
	key := model.NormalizeUsername(username)
	a, err := s.loadAccount(ctx, key, "User not found.")
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusDeactivated || !a.ReactivationRequest {
		return nil, apperror.Policy("No reactivation request is pending for this account.")
	}

	patch := model.ClearReactivationRequest()
	detail := "denied"
	if approve {
		patch = restoreActivity(model.Reactivate(), now)
		detail = "approved"
	}

	return s.apply(ctx, key, patch, model.EventAdminReactivation, detail, now)
}

// SetStatus moves an account to any status outside the ban tiers. Bans go
// through Ban so their fields stay consistent.
func (s *AdminService) SetStatus(ctx context.Context, username string, status model.Status, now time.Time) (*model.Account, error) {
	if !status.Known() {
		return nil, apperror.ValidationFailed("status", "Unknown status.")
	}
	if status.IsBanned() {
		return nil, apperror.ValidationFailed("status", "Use the ban endpoint to ban an account.")
	}

	key := model.NormalizeUsername(username)
	a, err := s.loadAccount(ctx, key, "User not found.")
	if err != nil {
		return nil, err
	}

	patch := model.Reassign(status)
	if status == model.StatusApproved && a.Status != model.StatusApproved {
		patch = restoreActivity(patch, now)
	}

	return s.apply(ctx, key, patch, model.EventAdminStatus, a.Status.String()+" -> "+status.String(), now)
}

// Ban imposes a ban. duration uses the same loose vocabulary as the
// classifier: "24 Hours", "7 Days", "3 days", empty for permanent.
func (s *AdminService) Ban(ctx context.Context, username, reason, duration string, now time.Time) (*model.Account, error) {
	key := model.NormalizeUsername(username)
	if _, err := s.loadAccount(ctx, key, "User not found."); err != nil {
		return nil, err
	}

	term := model.ParseBanDuration(duration)
	reason = reasonOr(strings.TrimSpace(reason), defaultReason(term.Status()))

	return s.apply(ctx, key, model.ImposeBan(term, reason, now), model.EventAdminBan, reason+" ("+term.Label()+")", now)
}

// Events returns the audit trail of one account, newest first.
func (s *AdminService) Events(ctx context.Context, username string, limit int) ([]model.AuditEvent, error) {
	if s.audit == nil {
		return []model.AuditEvent{}, nil
	}
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	events, err := s.audit.ListEvents(ctx, model.NormalizeUsername(username), limit)
	if err != nil {
		return nil, apperror.Unavailable("audit log", err)
	}
	return events, nil
}

// apply writes patch, records the admin event and returns the fresh record.
func (s *AdminService) apply(ctx context.Context, key string, patch model.Patch, eventType, detail string, now time.Time) (*model.Account, error) {
	if err := s.write(ctx, key, patch); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("account", key).WithMessage("User not found.")
		}
		return nil, err
	}

	s.logger.Info("admin action applied",
		slog.String("username", key),
		slog.String("action", eventType),
		slog.String("detail", detail),
	)
	s.record(ctx, key, eventType, detail, now)

	return s.loadAccount(ctx, key, "User not found.")
}
