package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/account-gate/internal/model"
	"github.com/sakif/account-gate/internal/service"
)

// AccountService is the slice of *service.AccountService the public
// endpoints use. Tests substitute a fake.
type AccountService interface {
	Signup(ctx context.Context, username, email string, now time.Time) (*model.Account, error)
	EvaluateLogin(ctx context.Context, username, email string, now time.Time) service.Outcome
	Login(ctx context.Context, username, email, activity string, now time.Time) service.Outcome
	RequestUnban(ctx context.Context, username string, now time.Time) (*service.UnbanResult, error)
	RequestReactivation(ctx context.Context, username, email, reason string, now time.Time) (*service.ReactivationResult, error)
}

// AccountHandler serves the unauthenticated account endpoints: signup,
// login and the two self-service request forms.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type signupRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,max=254"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,max=254"`
	Activity string `json:"activity" validate:"max=2000"`
}

type unbanRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

type reactivationRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,max=254"`
	Reason   string `json:"reason"`
}

// HandleSignup creates a pending account.
//
// HTTP: POST /api/signup
// REQUEST BODY: {"username": "alice", "email": "alice@example.com"}
func (h *AccountHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	account, err := h.accounts.Signup(r.Context(), req.Username, req.Email, time.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeOK(w, http.StatusCreated, string(service.OutcomePending),
		"Signup request submitted. Your account is pending for approval.", account)
}

// HandleLogin evaluates the account and, when it is approved, runs the
// security check on the reported activity.
//
// HTTP: POST /api/login
// REQUEST BODY: {"username": "alice", "email": "alice@example.com", "activity": "..."}
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	o := h.accounts.Login(r.Context(), req.Username, req.Email, req.Activity, time.Now())
	writeOutcome(w, h.logger, o)
}

// HandleEvaluate is HandleLogin without the security check.
//
// HTTP: POST /api/login/evaluate
func (h *AccountHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	o := h.accounts.EvaluateLogin(r.Context(), req.Username, req.Email, time.Now())
	writeOutcome(w, h.logger, o)
}

// HandleUnbanRequest files an unban request, or lifts an already expired
// temporary ban on the spot.
//
// HTTP: POST /api/unban-requests
func (h *AccountHandler) HandleUnbanRequest(w http.ResponseWriter, r *http.Request) {
	var req unbanRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.accounts.RequestUnban(r.Context(), req.Username, time.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := "unban_requested"
	if res.AutoUnbanned {
		status = "auto_unbanned"
	}
	writeOK(w, http.StatusOK, status, res.Message, res)
}

// HandleReactivationRequest starts the reactivation window for a
// deactivated account.
//
// HTTP: POST /api/reactivation-requests
func (h *AccountHandler) HandleReactivationRequest(w http.ResponseWriter, r *http.Request) {
	var req reactivationRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.accounts.RequestReactivation(r.Context(), req.Username, req.Email, req.Reason, time.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeOK(w, http.StatusAccepted, "reactivation_requested", res.Message, res)
}
