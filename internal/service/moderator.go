package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/model"
	"github.com/sakif/account-gate/internal/repository"
)

const MinModeratorAPIKeyLength = 10

// KeyHasher turns a secret into a one-way hash. *auth.Hasher
// satisfies it.
type KeyHasher interface {
	Hash(plaintext string) (string, error)
}

// ModeratorApplication is the input of RequestModeratorAccount.
type ModeratorApplication struct {
	ModeratorID       string
	ModeratorUsername string
	ServerID          string
	GitHubLink        string
	APIKey            string
}

// ModeratorService accepts moderator account applications. Reviewing them
// happens elsewhere.
type ModeratorService struct {
	repo   repository.ModeratorRequestRepository
	audit  repository.AuditRepository
	hasher KeyHasher
	logger *slog.Logger
}

func NewModeratorService(repo repository.ModeratorRequestRepository, audit repository.AuditRepository, hasher KeyHasher, logger *slog.Logger) *ModeratorService {
	return &ModeratorService{repo: repo, audit: audit, hasher: hasher, logger: logger}
}

// RequestModeratorAccount validates and stores an application in
// pending_review. The API key is hashed before it reaches the store.
func (s *ModeratorService) RequestModeratorAccount(ctx context.Context, app ModeratorApplication, now time.Time) (*model.ModeratorRequest, error) {
	app.ModeratorID = strings.TrimSpace(app.ModeratorID)
	app.ModeratorUsername = strings.TrimSpace(app.ModeratorUsername)
	app.ServerID = strings.TrimSpace(app.ServerID)
	app.GitHubLink = strings.TrimSpace(app.GitHubLink)

	switch {
	case app.ModeratorID == "":
		return nil, apperror.ValidationFailed("moderatorId", "Moderator ID is required.")
	case app.ModeratorUsername == "":
		return nil, apperror.ValidationFailed("moderatorUsername", "Moderator username is required.")
	case app.ServerID == "":
		return nil, apperror.ValidationFailed("serverId", "Server ID is required.")
	case len(app.APIKey) < MinModeratorAPIKeyLength:
		return nil, apperror.ValidationFailed("uraApiKey",
			fmt.Sprintf("API key must be at least %d characters.", MinModeratorAPIKeyLength))
	}
	if app.GitHubLink != "" {
		u, err := url.Parse(app.GitHubLink)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, apperror.ValidationFailed("githubLink", "GitHub link must be a valid URL.")
		}
	}

	hash, err := s.hasher.Hash(app.APIKey)
	if err != nil {
		return nil, apperror.ValidationFailed("uraApiKey", "API key could not be accepted.")
	}

	req := &model.ModeratorRequest{
		ModeratorID:       app.ModeratorID,
		ModeratorUsername: app.ModeratorUsername,
		ServerID:          app.ServerID,
		GitHubLink:        app.GitHubLink,
		APIKeyHash:        hash,
		Status:            model.ModeratorRequestPending,
		RequestedAt:       now,
	}

	if err := s.repo.CreateModeratorRequest(ctx, req); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("moderator request", app.ModeratorID).
				WithMessage("A request with this Moderator ID already exists.")
		}
		s.logger.Error("failed to store moderator request",
			slog.String("moderator_id", app.ModeratorID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Unavailable("request store", err)
	}

	s.logger.Info("moderator account requested",
		slog.String("moderator_id", req.ModeratorID),
		slog.String("moderator_username", req.ModeratorUsername),
	)
	if s.audit != nil {
		event := &model.AuditEvent{
			Username:  req.ModeratorUsername,
			Type:      model.EventModeratorRequested,
			Detail:    req.ModeratorID,
			CreatedAt: now,
		}
		if err := s.audit.RecordEvent(ctx, event); err != nil {
			s.logger.Warn("failed to record audit event", slog.String("error", err.Error()))
		}
	}
	return req, nil
}
