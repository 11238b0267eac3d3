package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/model"
	"github.com/sakif/account-gate/internal/repository"
)

var _ repository.ModeratorRequestRepository = (*DB)(nil)

// CreateModeratorRequest inserts a moderator application. A second request
// for the same moderator ID is rejected with apperror.ErrConflict.
func (db *DB) CreateModeratorRequest(ctx context.Context, req *model.ModeratorRequest) error {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO moderator_requests
		   (moderator_id, moderator_username, server_id, github_link, api_key_hash, status, requested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(moderator_id) DO NOTHING`,
		req.ModeratorID,
		req.ModeratorUsername,
		req.ServerID,
		req.GitHubLink,
		req.APIKeyHash,
		req.Status,
		req.RequestedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating moderator request %s: %w", req.ModeratorID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: creating moderator request %s: %w", req.ModeratorID, err)
	}
	if n == 0 {
		return apperror.Conflict("moderator request", req.ModeratorID)
	}
	return nil
}

// GetModeratorRequest returns the application for moderatorID.
func (db *DB) GetModeratorRequest(ctx context.Context, moderatorID string) (*model.ModeratorRequest, error) {
	var req model.ModeratorRequest
	err := db.conn.QueryRowContext(ctx,
		`SELECT moderator_id, moderator_username, server_id, github_link, api_key_hash, status, requested_at
		 FROM moderator_requests WHERE moderator_id = ?`,
		moderatorID,
	).Scan(
		&req.ModeratorID,
		&req.ModeratorUsername,
		&req.ServerID,
		&req.GitHubLink,
		&req.APIKeyHash,
		&req.Status,
		&req.RequestedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("moderator request", moderatorID)
		}
		return nil, fmt.Errorf("sqlite: getting moderator request %s: %w", moderatorID, err)
	}
	return &req, nil
}
