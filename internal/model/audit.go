package model

import "time"

// Audit event types. One is recorded per state-changing operation.
const (
	EventSignup                = "signup"
	EventLoginApproved         = "login_approved"
	EventAutoUnban             = "auto_unban"
	EventDeactivated           = "deactivated"
	EventAutoReactivated       = "auto_reactivated"
	EventSecurityBan           = "security_ban"
	EventUnbanRequested        = "unban_requested"
	EventReactivationRequested = "reactivation_requested"
	EventAdminUnbanReview      = "admin_unban_review"
	EventAdminReactivation     = "admin_reactivation_review"
	EventAdminStatus           = "admin_status"
	EventAdminBan              = "admin_ban"
	EventModeratorRequested    = "moderator_requested"
)

// AuditEvent is an append-only record of something that happened to an account.
type AuditEvent struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Type      string    `json:"type"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
