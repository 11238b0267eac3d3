package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/model"
)

// =========================================================================
// SIGNUP
// =========================================================================

func TestSignup_RoundTrip(t *testing.T) {
	store := newMemStore()
	svc := newTestAccountService(store, nil)

	a, err := svc.Signup(context.Background(), " Alice ", " alice@example.com ", T)
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Username)

	got, err := store.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingApproval, got.Status)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.True(t, got.CreatedAt.Equal(T))
	assert.Nil(t, got.LastLoginAt)
	assert.Equal(t, []string{model.EventSignup}, store.eventTypes("alice"))
}

func TestSignup_DuplicateIsCaseInsensitive(t *testing.T) {
	store := newMemStore()
	svc := newTestAccountService(store, nil)

	_, err := svc.Signup(context.Background(), "alice", "a@example.com", T)
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), "ALICE", "other@example.com", T)
	require.True(t, errors.Is(err, apperror.ErrConflict))

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Username already exists. Please choose another one.", appErr.Message)
	assert.Equal(t, "a@example.com", store.record(t, "alice").Email)
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		email     string
		wantField string
	}{
		{"empty username", "", "a@example.com", "username"},
		{"short username", "ab", "a@example.com", "username"},
		{"long username", "abcdefghijklmnopqrstu", "a@example.com", "username"},
		{"bad characters", "al ice", "a@example.com", "username"},
		{"dash", "al-ice", "a@example.com", "username"},
		{"missing at", "alice", "alice.example.com", "email"},
		{"display name form", "alice", "Alice <alice@example.com>", "email"},
		{"empty email", "alice", "", "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAccountService(newMemStore(), nil)

			_, err := svc.Signup(context.Background(), tt.username, tt.email, T)
			require.True(t, errors.Is(err, apperror.ErrValidation), "err = %v", err)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}
}

// =========================================================================
// UNBAN REQUESTS
// =========================================================================

func TestRequestUnban(t *testing.T) {
	t.Run("missing username", func(t *testing.T) {
		svc := newTestAccountService(newMemStore(), nil)
		_, err := svc.RequestUnban(context.Background(), " ", T)
		assert.True(t, errors.Is(err, apperror.ErrValidation))
	})

	t.Run("not found", func(t *testing.T) {
		svc := newTestAccountService(newMemStore(), nil)
		_, err := svc.RequestUnban(context.Background(), "ghost", T)
		require.True(t, errors.Is(err, apperror.ErrNotFound))
		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "User not found.", appErr.Message)
	})

	t.Run("expired temporary ban is lifted", func(t *testing.T) {
		store := newMemStore()
		a := account("bob", model.StatusBanned24h)
		a.BannedAt = timePtr(T)
		a.BanReason = "spam"
		store.put(a)
		svc := newTestAccountService(store, nil)

		res, err := svc.RequestUnban(context.Background(), "bob", T.Add(25*time.Hour))
		require.NoError(t, err)
		assert.True(t, res.AutoUnbanned)

		rec := store.record(t, "bob")
		assert.Equal(t, model.StatusApproved, rec.Status)
		assert.Empty(t, rec.BanReason)
		assert.Nil(t, rec.BannedAt)
		assert.False(t, rec.UnbanRequest)
	})

	t.Run("active temporary ban files a request", func(t *testing.T) {
		store := newMemStore()
		a := account("bob", model.StatusBanned7d)
		a.BannedAt = timePtr(T)
		store.put(a)
		svc := newTestAccountService(store, nil)

		res, err := svc.RequestUnban(context.Background(), "bob", T.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, res.AutoUnbanned)
		assert.Equal(t, "Your unban request has been submitted to the administrators.", res.Message)

		rec := store.record(t, "bob")
		assert.Equal(t, model.StatusBanned7d, rec.Status)
		assert.True(t, rec.UnbanRequest)
		assert.True(t, rec.UnbanRequestAt.Equal(T.Add(time.Hour)))
	})

	t.Run("permanent ban files a request and never auto-resolves", func(t *testing.T) {
		store := newMemStore()
		a := account("carol", model.StatusBannedPermanent)
		a.BannedAt = timePtr(T)
		store.put(a)
		svc := newTestAccountService(store, nil)

		res, err := svc.RequestUnban(context.Background(), "carol", T.Add(3650*24*time.Hour))
		require.NoError(t, err)
		assert.False(t, res.AutoUnbanned)
		assert.Equal(t, model.StatusBannedPermanent, store.record(t, "carol").Status)
	})

	t.Run("repeat request refreshes the timestamp", func(t *testing.T) {
		store := newMemStore()
		store.put(account("carol", model.StatusBannedPermanent))
		svc := newTestAccountService(store, nil)

		_, err := svc.RequestUnban(context.Background(), "carol", T)
		require.NoError(t, err)
		_, err = svc.RequestUnban(context.Background(), "carol", T.Add(time.Hour))
		require.NoError(t, err)

		rec := store.record(t, "carol")
		assert.True(t, rec.UnbanRequest)
		assert.True(t, rec.UnbanRequestAt.Equal(T.Add(time.Hour)))
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMemStore()
		store.put(account("carol", model.StatusBannedPermanent))
		store.mergeErr = errors.New("timeout")
		svc := newTestAccountService(store, nil)

		_, err := svc.RequestUnban(context.Background(), "carol", T)
		require.True(t, errors.Is(err, apperror.ErrUnavailable))
		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "Server error. Could not submit unban request.", appErr.Message)
	})
}

// =========================================================================
// REACTIVATION REQUESTS
// =========================================================================

func TestRequestReactivation_OnApprovedAccountIsPolicyError(t *testing.T) {
	store := newMemStore()
	store.put(account("alice", model.StatusApproved))
	svc := newTestAccountService(store, nil)

	_, err := svc.RequestReactivation(context.Background(), "alice", "alice@example.com", "please", T)
	require.True(t, errors.Is(err, apperror.ErrPolicy))
	assert.Equal(t, 0, store.merges)
}

func TestRequestReactivation_Success(t *testing.T) {
	store := newMemStore()
	store.put(account("dave", model.StatusDeactivated))
	svc := newTestAccountService(store, nil)

	res, err := svc.RequestReactivation(context.Background(), "Dave", "DAVE@example.com", "I'm back", T)
	require.NoError(t, err)
	assert.True(t, res.EligibleAt.Equal(T.Add(12*time.Hour)))

	rec := store.record(t, "dave")
	assert.True(t, rec.ReactivationRequest)
	assert.Equal(t, "I'm back", rec.ReactivationReason)
	require.NotNil(t, rec.ReactivationRequestedAt)
	require.NotNil(t, rec.ReactivationEligibleAt)
	assert.Equal(t, 12*time.Hour, rec.ReactivationEligibleAt.Sub(*rec.ReactivationRequestedAt))
	assert.Equal(t, model.StatusDeactivated, rec.Status)
}

func TestRequestReactivation_DefaultReason(t *testing.T) {
	store := newMemStore()
	store.put(account("dave", model.StatusDeactivated))
	svc := newTestAccountService(store, nil)

	_, err := svc.RequestReactivation(context.Background(), "dave", "dave@example.com", "  ", T)
	require.NoError(t, err)
	assert.Equal(t, DefaultReactivationReason, store.record(t, "dave").ReactivationReason)
}

func TestRequestReactivation_SecondRequestRejected(t *testing.T) {
	store := newMemStore()
	store.put(account("dave", model.StatusDeactivated))
	svc := newTestAccountService(store, nil)
	ctx := context.Background()

	_, err := svc.RequestReactivation(ctx, "dave", "dave@example.com", "first", T)
	require.NoError(t, err)

	_, err = svc.RequestReactivation(ctx, "dave", "dave@example.com", "second", T.Add(time.Hour))
	require.True(t, errors.Is(err, apperror.ErrPolicy))

	rec := store.record(t, "dave")
	assert.Equal(t, "first", rec.ReactivationReason)
	assert.True(t, rec.ReactivationEligibleAt.Equal(T.Add(12*time.Hour)))
}

func TestRequestReactivation_CredentialErrors(t *testing.T) {
	store := newMemStore()
	store.put(account("dave", model.StatusDeactivated))
	svc := newTestAccountService(store, nil)
	ctx := context.Background()

	_, missing := svc.RequestReactivation(ctx, "nobody", "dave@example.com", "r", T)
	_, mismatch := svc.RequestReactivation(ctx, "dave", "eve@example.com", "r", T)

	for _, err := range []error{missing, mismatch} {
		require.True(t, errors.Is(err, apperror.ErrNotFound), "err = %v", err)
		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "Invalid username or email.", appErr.Message)
	}
	assert.Equal(t, 0, store.merges)
}

func TestRequestReactivation_CustomWindow(t *testing.T) {
	store := newMemStore()
	store.put(account("dave", model.StatusDeactivated))
	svc := newTestAccountService(store, nil)
	svc.policy.ReactivationWindow = time.Hour

	res, err := svc.RequestReactivation(context.Background(), "dave", "dave@example.com", "r", T)
	require.NoError(t, err)
	assert.True(t, res.EligibleAt.Equal(T.Add(time.Hour)))

	// One hour and a minute later the next login reactivates the account.
	got := svc.EvaluateLogin(context.Background(), "dave", "dave@example.com", T.Add(61*time.Minute))
	assert.Equal(t, OutcomeApproved, got.Kind)
}
