package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/model"
)

// prefixHasher is a KeyHasher that is fast and easy to assert on. The real
// bcrypt hasher is covered in the auth package.
type prefixHasher struct{}

func (prefixHasher) Hash(plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

func validApplication() ModeratorApplication {
	return ModeratorApplication{
		ModeratorID:       "mod-42",
		ModeratorUsername: "watcher",
		ServerID:          "srv-1",
		GitHubLink:        "https://github.com/watcher",
		APIKey:            "0123456789abcdef",
	}
}

func TestRequestModeratorAccount_Success(t *testing.T) {
	store := newMemStore()
	svc := NewModeratorService(store, store, prefixHasher{}, discardLogger())

	req, err := svc.RequestModeratorAccount(context.Background(), validApplication(), T)
	require.NoError(t, err)
	assert.Equal(t, model.ModeratorRequestPending, req.Status)
	assert.True(t, req.RequestedAt.Equal(T))

	stored, err := store.GetModeratorRequest(context.Background(), "mod-42")
	require.NoError(t, err)
	assert.Equal(t, "hashed:0123456789abcdef", stored.APIKeyHash)
	assert.Equal(t, []string{model.EventModeratorRequested}, store.eventTypes("watcher"))
}

func TestRequestModeratorAccount_Duplicate(t *testing.T) {
	store := newMemStore()
	svc := NewModeratorService(store, nil, prefixHasher{}, discardLogger())
	ctx := context.Background()

	_, err := svc.RequestModeratorAccount(ctx, validApplication(), T)
	require.NoError(t, err)

	_, err = svc.RequestModeratorAccount(ctx, validApplication(), T)
	require.True(t, errors.Is(err, apperror.ErrConflict))
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "A request with this Moderator ID already exists.", appErr.Message)
}

func TestRequestModeratorAccount_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*ModeratorApplication)
		wantField string
	}{
		{"missing id", func(a *ModeratorApplication) { a.ModeratorID = " " }, "moderatorId"},
		{"missing username", func(a *ModeratorApplication) { a.ModeratorUsername = "" }, "moderatorUsername"},
		{"missing server", func(a *ModeratorApplication) { a.ServerID = "" }, "serverId"},
		{"short key", func(a *ModeratorApplication) { a.APIKey = "123456789" }, "uraApiKey"},
		{"bad link", func(a *ModeratorApplication) { a.GitHubLink = "github.com/watcher" }, "githubLink"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewModeratorService(newMemStore(), nil, prefixHasher{}, discardLogger())
			app := validApplication()
			tt.mutate(&app)

			_, err := svc.RequestModeratorAccount(context.Background(), app, T)
			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr), "err = %v", err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}
}
