package model

import "time"

// ModeratorRequestPending is the only state a moderator request is created in;
// review happens outside this service.
const ModeratorRequestPending = "pending_review"

// ModeratorRequest is an application for a moderator account, keyed by the
// applicant's moderator ID. The API key is never stored in clear text.
type ModeratorRequest struct {
	ModeratorID       string    `json:"moderatorId"`
	ModeratorUsername string    `json:"moderatorUsername"`
	ServerID          string    `json:"serverId"`
	GitHubLink        string    `json:"githubLink"`
	APIKeyHash        string    `json:"-"`
	Status            string    `json:"status"`
	RequestedAt       time.Time `json:"requestedAt"`
}
