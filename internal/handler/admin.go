package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/auth"
	"github.com/sakif/account-gate/internal/model"
)

type AdminService interface {
	ListUnbanRequests(ctx context.Context, limit, offset int) ([]model.Account, error)
	ListReactivationRequests(ctx context.Context, limit, offset int) ([]model.Account, error)
	ReviewUnban(ctx context.Context, username string, approve bool, now time.Time) (*model.Account, error)
	ReviewReactivation(ctx context.Context, username string, approve bool, now time.Time) (*model.Account, error)
	SetStatus(ctx context.Context, username string, status model.Status, now time.Time) (*model.Account, error)
	Ban(ctx context.Context, username, reason, duration string, now time.Time) (*model.Account, error)
	Events(ctx context.Context, username string, limit int) ([]model.AuditEvent, error)
}

// AdminAuthenticator exchanges the admin key for a token.
type AdminAuthenticator interface {
	Login(ctx context.Context, adminKey string) (*auth.AdminToken, error)
}

// AdminHandler serves /api/admin. Everything except HandleToken sits behind
// auth.RequireAdmin in the router.
type AdminHandler struct {
	admin  AdminService
	authn  AdminAuthenticator
	logger *slog.Logger
}

func NewAdminHandler(admin AdminService, authn AdminAuthenticator, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, authn: authn, logger: logger}
}

type tokenRequest struct {
	AdminKey string `json:"adminKey" validate:"required,max=72"`
}

// reviewRequest uses a pointer so a missing "approve" is an error rather
// than a silent deny.
type reviewRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type banRequest struct {
	Reason   string `json:"reason" validate:"max=1000"`
	Duration string `json:"duration" validate:"max=32"`
}

// listResponse wraps list results so pagination can be added without
// changing the shape.
type listResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// HandleToken issues an admin JWT.
//
// HTTP: POST /api/admin/token
// REQUEST BODY: {"adminKey": "..."}
func (h *AdminHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	tok, err := h.authn.Login(r.Context(), req.AdminKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "token_issued", "Admin token issued.", tok)
}

// HandleListUnbanRequests lists accounts waiting on an unban review.
//
// HTTP: GET /api/admin/unban-requests?limit=50&offset=0
func (h *AdminHandler) HandleListUnbanRequests(w http.ResponseWriter, r *http.Request) {
	h.handleList(w, r, h.admin.ListUnbanRequests)
}

// HandleListReactivationRequests lists deactivated accounts that asked to
// come back.
//
// HTTP: GET /api/admin/reactivation-requests?limit=50&offset=0
func (h *AdminHandler) HandleListReactivationRequests(w http.ResponseWriter, r *http.Request) {
	h.handleList(w, r, h.admin.ListReactivationRequests)
}

func (h *AdminHandler) handleList(w http.ResponseWriter, r *http.Request, list func(context.Context, int, int) ([]model.Account, error)) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	accounts, err := list(r.Context(), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	writeOK(w, http.StatusOK, "ok", "", listResponse[model.Account]{Items: accounts, Limit: limit, Offset: offset})
}

// HandleUnbanReview approves or denies a pending unban request.
//
// HTTP: POST /api/admin/accounts/{username}/unban-review
// REQUEST BODY: {"approve": true}
func (h *AdminHandler) HandleUnbanReview(w http.ResponseWriter, r *http.Request) {
	h.handleReview(w, r, h.admin.ReviewUnban, "Unban request")
}

// HandleReactivationReview approves or denies a pending reactivation.
//
// HTTP: POST /api/admin/accounts/{username}/reactivation-review
func (h *AdminHandler) HandleReactivationReview(w http.ResponseWriter, r *http.Request) {
	h.handleReview(w, r, h.admin.ReviewReactivation, "Reactivation request")
}

func (h *AdminHandler) handleReview(
	w http.ResponseWriter,
	r *http.Request,
	review func(context.Context, string, bool, time.Time) (*model.Account, error),
	what string,
) {
	username := r.PathValue("username")
	var req reviewRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	account, err := review(r.Context(), username, *req.Approve, time.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	verdict := "denied"
	if *req.Approve {
		verdict = "approved"
	}
	writeOK(w, http.StatusOK, verdict, what+" "+verdict+".", account)
}

// HandleSetStatus sets a non-ban status directly.
//
// HTTP: POST /api/admin/accounts/{username}/status
// REQUEST BODY: {"status": "approved"}  (name or numeric code)
func (h *AdminHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	var req statusRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	status, err := model.ParseStatus(req.Status)
	if err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("status", "Unknown status."))
		return
	}

	account, err := h.admin.SetStatus(r.Context(), username, status, time.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, status.String(), "Status updated.", account)
}

// HandleBan bans an account. An empty duration bans permanently.
//
// HTTP: POST /api/admin/accounts/{username}/ban
// REQUEST BODY: {"reason": "spam", "duration": "7 Days"}
func (h *AdminHandler) HandleBan(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	var req banRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	account, err := h.admin.Ban(r.Context(), username, req.Reason, req.Duration, time.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, account.Status.String(), "Account banned.", account)
}

// HandleEvents returns an account's audit trail, newest first.
//
// HTTP: GET /api/admin/accounts/{username}/events?limit=50
func (h *AdminHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	events, err := h.admin.Events(r.Context(), username, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	writeOK(w, http.StatusOK, "ok", "", listResponse[model.AuditEvent]{Items: events, Limit: limit})
}
