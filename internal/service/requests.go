package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/model"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MaxReasonLength   = 1000

	// DefaultReactivationReason is recorded when a reactivation request
	// comes without one.
	DefaultReactivationReason = "Sorry, Now i am Regular"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// =========================================================================
// SIGNUP
// =========================================================================

// Signup creates a PendingApproval record. The username is trimmed and
// lowercased into the store key, so "Alice" and "alice" collide.
func (s *AccountService) Signup(ctx context.Context, username, email string, now time.Time) (*model.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperror.ValidationFailed("email", "Invalid email address. The @ symbol is mandatory.")
	}

	key := model.NormalizeUsername(username)
	a := &model.Account{
		Email:     email,
		Status:    model.StatusPendingApproval,
		CreatedAt: now,
	}

	ctx2, cancel := s.storeCtx(ctx)
	err := s.store.Create(ctx2, key, a)
	cancel()
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("account", key).WithMessage("Username already exists. Please choose another one.")
		}
		s.logger.Error("signup: store write failed", slog.String("username", key), slog.String("error", err.Error()))
		return nil, apperror.Unavailable("account store", err)
	}

	a.Username = key
	s.logger.Info("account requested", slog.String("username", key))
	s.record(ctx, key, model.EventSignup, "", now)
	return a, nil
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return apperror.ValidationFailed("username", "Username is required.")
	case len(username) < MinUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("Username must be at least %d characters", MinUsernameLength))
	case len(username) > MaxUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("Username must be %d characters or less", MaxUsernameLength))
	case !usernamePattern.MatchString(username):
		return apperror.ValidationFailed("username", "Username can only contain letters, numbers, and underscores.")
	}
	return nil
}

// =========================================================================
// UNBAN REQUESTS
// =========================================================================

// UnbanResult reports how an unban request was handled.
type UnbanResult struct {
	AutoUnbanned bool   `json:"autoUnbanned"`
	Message      string `json:"message"`
}

// RequestUnban files an unban request, or lifts the ban on the spot when
// it is a temporary ban that has already run out.
//
// Any account may file; only admins resolve requests, and permanent bans
// never resolve on their own. Filing again just refreshes unbanRequestAt.
func (s *AccountService) RequestUnban(ctx context.Context, username string, now time.Time) (*UnbanResult, error) {
	key := model.NormalizeUsername(username)
	if key == "" {
		return nil, apperror.ValidationFailed("username", "Username is required.")
	}

	a, err := s.loadAccount(ctx, key, "User not found.")
	if err != nil {
		return nil, err
	}

	if t := pendingTransition(a, now, s.policy); t.kind == transitionAutoUnban {
		if err := s.write(ctx, key, t.patch); err != nil {
			return nil, asAppError(err).WithMessage("Server error. Could not automatically unban your account.")
		}
		s.logger.Info("ban expired on unban request", slog.String("username", key))
		s.record(ctx, key, model.EventAutoUnban, "via unban request", now)
		return &UnbanResult{
			AutoUnbanned: true,
			Message:      "Your account has been automatically unbanned. You can now log in.",
		}, nil
	}

	patch := model.Patch{
		model.FieldUnbanRequest:   true,
		model.FieldUnbanRequestAt: now,
	}
	if err := s.write(ctx, key, patch); err != nil {
		return nil, asAppError(err).WithMessage("Server error. Could not submit unban request.")
	}

	s.logger.Info("unban requested", slog.String("username", key), slog.String("status", a.Status.String()))
	s.record(ctx, key, model.EventUnbanRequested, a.Status.String(), now)
	return &UnbanResult{Message: "Your unban request has been submitted to the administrators."}, nil
}

// =========================================================================
// REACTIVATION REQUESTS
// =========================================================================

// ReactivationResult is returned on a successful reactivation request.
type ReactivationResult struct {
	Message     string    `json:"message"`
	RequestedAt time.Time `json:"requestedAt"`
	EligibleAt  time.Time `json:"eligibleAt"`
}

// RequestReactivation queues a deactivated account for reactivation. The
// account reactivates itself on the first check after EligibleAt.
//
// Policy errors: the account is not deactivated, or a request is already
// outstanding (one per account).
func (s *AccountService) RequestReactivation(ctx context.Context, username, email, reason string, now time.Time) (*ReactivationResult, error) {
	key := model.NormalizeUsername(username)
	if key == "" {
		return nil, apperror.ValidationFailed("username", "Username is required.")
	}
	if strings.TrimSpace(email) == "" {
		return nil, apperror.ValidationFailed("email", "Email is required.")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReactivationReason
	}
	if len(reason) > MaxReasonLength {
		return nil, apperror.ValidationFailed("reason",
			fmt.Sprintf("reason must be %d characters or less", MaxReasonLength))
	}

	a, err := s.loadAccount(ctx, key, msgInvalidCredentials)
	if err != nil {
		return nil, err
	}
	// Same message as a missing account so the endpoint cannot be used to
	// probe which usernames exist.
	if !a.EmailMatches(email) {
		return nil, apperror.NotFound("account", key).WithMessage(msgInvalidCredentials)
	}

	if a.Status != model.StatusDeactivated {
		return nil, apperror.Policy("This account is not deactivated.")
	}
	if a.ReactivationRequest {
		return nil, apperror.Policy("A reactivation request has already been submitted for this account.")
	}

	eligibleAt := now.Add(s.policy.ReactivationWindow)
	patch := model.Patch{
		model.FieldReactivationRequest:     true,
		model.FieldReactivationReason:      reason,
		model.FieldReactivationRequestedAt: now,
		model.FieldReactivationEligibleAt:  eligibleAt,
	}
	if err := s.write(ctx, key, patch); err != nil {
		return nil, err
	}

	s.logger.Info("reactivation requested",
		slog.String("username", key),
		slog.Time("eligible_at", eligibleAt),
	)
	s.record(ctx, key, model.EventReactivationRequested, reason, now)

	return &ReactivationResult{
		Message:     "Your reactivation request has been submitted. Your account will be reactivated automatically once the review window has passed.",
		RequestedAt: now,
		EligibleAt:  eligibleAt,
	}, nil
}

// asAppError returns err as an *AppError, wrapping foreign errors as
// store unavailability.
func asAppError(err error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.Unavailable("account store", err)
}
