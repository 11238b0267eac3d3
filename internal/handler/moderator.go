package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/account-gate/internal/model"
	"github.com/sakif/account-gate/internal/service"
)

type ModeratorService interface {
	RequestModeratorAccount(ctx context.Context, app service.ModeratorApplication, now time.Time) (*model.ModeratorRequest, error)
}

// ModeratorHandler accepts moderator account applications.
type ModeratorHandler struct {
	moderators ModeratorService
	logger     *slog.Logger
}

func NewModeratorHandler(moderators ModeratorService, logger *slog.Logger) *ModeratorHandler {
	return &ModeratorHandler{moderators: moderators, logger: logger}
}

// Field rules beyond presence (API key length, URL shape) live in the
// service so every caller gets them.
type moderatorRequest struct {
	ModeratorID       string `json:"moderatorId" validate:"required,max=64"`
	ModeratorUsername string `json:"moderatorUsername" validate:"required,max=64"`
	ServerID          string `json:"serverId" validate:"required,max=64"`
	GitHubLink        string `json:"githubLink" validate:"max=512"`
	APIKey            string `json:"uraApiKey" validate:"required,max=72"`
}

// HandleCreate stores a moderator application for review.
//
// HTTP: POST /api/moderator-requests
func (h *ModeratorHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req moderatorRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	created, err := h.moderators.RequestModeratorAccount(r.Context(), service.ModeratorApplication{
		ModeratorID:       req.ModeratorID,
		ModeratorUsername: req.ModeratorUsername,
		ServerID:          req.ServerID,
		GitHubLink:        req.GitHubLink,
		APIKey:            req.APIKey,
	}, time.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeOK(w, http.StatusCreated, created.Status,
		"Your moderator account request has been submitted for review.", created)
}
