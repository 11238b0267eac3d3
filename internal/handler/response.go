package handler

// RESPONSE HELPERS:
// Every endpoint answers with the same envelope:
//
//	{"success": true,  "status": "approved", "message": "...", "data": {...}}
//	{"success": false, "status": "not_found", "message": "..."}
//
// "status" is machine-readable; "message" is safe to show to a user.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/service"
)

// Response is the envelope returned by all API endpoints.
type Response struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set before the body is written; once
// Encode starts writing, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeOK(w http.ResponseWriter, status int, statusText, message string, data any) {
	writeJSON(w, status, Response{Success: true, Status: statusText, Message: message, Data: data})
}

// writeError maps a service error to an HTTP status and sends it.
//
// errors.Is walks the whole chain, so a wrapped *AppError still matches:
//
//	fmt.Errorf("x: %w", AppError{Err: ErrPolicy}) → errors.Is(err, ErrPolicy) ✓
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// Never expose raw errors: they may carry SQL or addresses.
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, Response{
			Status:  "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, errorType = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		status, errorType = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, errorType = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status, errorType = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		status, errorType = http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrPolicy):
		status, errorType = http.StatusConflict, "policy_violation"
	case errors.Is(err, apperror.ErrUnavailable):
		status, errorType = http.StatusServiceUnavailable, "unavailable"
		logger.Error("dependency unavailable", slog.String("error", err.Error()))
	}

	writeJSON(w, status, Response{
		Status:  errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// outcomeHTTPStatus maps a login outcome to a status code. The outcome kind
// itself goes into the envelope's "status" field.
func outcomeHTTPStatus(kind service.OutcomeKind) int {
	switch kind {
	case service.OutcomeApproved:
		return http.StatusOK
	case service.OutcomePending, service.OutcomeBanned, service.OutcomeDeleted, service.OutcomeDeactivated:
		return http.StatusForbidden
	case service.OutcomeNotFound, service.OutcomeInvalidCredentials:
		return http.StatusUnauthorized
	case service.OutcomeAccountError, service.OutcomeUnknownStatus:
		return http.StatusConflict
	case service.OutcomeSecurityCheckFailed, service.OutcomeStoreError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// outcomeData is the "data" payload of a login response.
type outcomeData struct {
	Username string              `json:"username,omitempty"`
	Email    string              `json:"email,omitempty"`
	Ban      *service.BanDetails `json:"ban,omitempty"`
}

func writeOutcome(w http.ResponseWriter, logger *slog.Logger, o service.Outcome) {
	if o.Err != nil {
		logger.Error("login evaluation failed",
			slog.String("outcome", string(o.Kind)),
			slog.String("error", o.Err.Error()),
		)
	}

	resp := Response{
		Success: o.Allowed(),
		Status:  string(o.Kind),
		Message: o.Message,
	}
	if o.Username != "" || o.Ban != nil {
		resp.Data = outcomeData{Username: o.Username, Email: o.Email, Ban: o.Ban}
	}
	writeJSON(w, outcomeHTTPStatus(o.Kind), resp)
}
