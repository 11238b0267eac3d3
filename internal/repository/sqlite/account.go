package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/model"
	"github.com/sakif/account-gate/internal/repository"
)

// compile-time checks that *DB implements the repository interfaces
var (
	_ repository.AccountStore  = (*DB)(nil)
	_ repository.AccountLister = (*DB)(nil)
	_ repository.Backend       = (*DB)(nil)
)

// columns maps each patchable field to its column. Merge refuses fields not
// listed here rather than silently dropping them.
var columns = map[model.Field]string{
	model.FieldEmail:                   "email",
	model.FieldStatus:                  "status",
	model.FieldCreatedAt:               "created_at",
	model.FieldLastLoginAt:             "last_login_at",
	model.FieldBanReason:               "ban_reason",
	model.FieldBanDuration:             "ban_duration",
	model.FieldBannedAt:                "banned_at",
	model.FieldUnbanAt:                 "unban_at",
	model.FieldUnbanRequest:            "unban_request",
	model.FieldUnbanRequestAt:          "unban_request_at",
	model.FieldReactivationRequest:     "reactivation_request",
	model.FieldReactivationReason:      "reactivation_reason",
	model.FieldReactivationRequestedAt: "reactivation_requested_at",
	model.FieldReactivationEligibleAt:  "reactivation_eligible_at",
}

const accountColumns = `username, email, status, created_at, last_login_at,
	ban_reason, ban_duration, banned_at, unban_at,
	unban_request, unban_request_at,
	reactivation_request, reactivation_reason, reactivation_requested_at, reactivation_eligible_at`

// Get returns the account stored under key, or apperror.ErrNotFound.
func (db *DB) Get(ctx context.Context, key string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`, key)

	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", key)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", key, err)
	}
	return acct, nil
}

// Create inserts a new account. ON CONFLICT DO NOTHING turns a duplicate key
// into zero affected rows, which we report as apperror.ErrConflict.
func (db *DB) Create(ctx context.Context, key string, a *model.Account) error {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		key,
		a.Email,
		int(a.Status),
		a.CreatedAt.UTC(),
		nullTime(a.LastLoginAt),
		nullString(a.BanReason),
		nullString(a.BanDuration),
		nullTime(a.BannedAt),
		nullTime(a.UnbanAt),
		nullBool(a.UnbanRequest),
		nullTime(a.UnbanRequestAt),
		nullBool(a.ReactivationRequest),
		nullString(a.ReactivationReason),
		nullTime(a.ReactivationRequestedAt),
		nullTime(a.ReactivationEligibleAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating account %s: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: creating account %s: %w", key, err)
	}
	if n == 0 {
		return apperror.Conflict("account", key)
	}

	a.Username = key
	return nil
}

// Merge applies a field-level update in a single UPDATE statement.
func (db *DB) Merge(ctx context.Context, key string, patch model.Patch) error {
	if len(patch) == 0 {
		return nil
	}

	// Sort for a stable statement text (and stable test output).
	fields := make([]model.Field, 0, len(patch))
	for f := range patch {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		col, ok := columns[f]
		if !ok {
			return fmt.Errorf("sqlite: merging account %s: unknown field %q", key, f)
		}
		sets = append(sets, col+" = ?")
		args = append(args, columnValue(patch[f]))
	}
	args = append(args, key)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE username = ?`, args...)
	if err != nil {
		return fmt.Errorf("sqlite: merging account %s: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: merging account %s: %w", key, err)
	}
	if n == 0 {
		return apperror.NotFound("account", key)
	}
	return nil
}

// List returns accounts matching the filter, oldest first.
func (db *DB) List(ctx context.Context, filter repository.AccountFilter) ([]model.Account, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != 0 {
		where = append(where, "status = ?")
		args = append(args, int(filter.Status))
	}
	if filter.UnbanRequest {
		where = append(where, "unban_request = 1")
	}
	if filter.ReactivationRequest {
		where = append(where, "reactivation_request = 1")
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at ASC, username ASC`

	// SQLite requires a LIMIT before OFFSET; -1 means "no limit".
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing accounts: %w", err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning account row: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating account rows: %w", err)
	}
	return accounts, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*model.Account, error) {
	var (
		a                                           model.Account
		status                                      int
		banReason, banDuration, reactivationReason  sql.NullString
		unbanRequest, reactivationRequest           sql.NullBool
		lastLogin, bannedAt, unbanAt, unbanReqAt    sql.NullTime
		reactivationRequestedAt, reactivationEligAt sql.NullTime
	)
	err := s.Scan(
		&a.Username,
		&a.Email,
		&status,
		&a.CreatedAt,
		&lastLogin,
		&banReason,
		&banDuration,
		&bannedAt,
		&unbanAt,
		&unbanRequest,
		&unbanReqAt,
		&reactivationRequest,
		&reactivationReason,
		&reactivationRequestedAt,
		&reactivationEligAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = model.Status(status)
	a.LastLoginAt = timeFromNull(lastLogin)
	a.BanReason = banReason.String
	a.BanDuration = banDuration.String
	a.BannedAt = timeFromNull(bannedAt)
	a.UnbanAt = timeFromNull(unbanAt)
	a.UnbanRequest = unbanRequest.Bool
	a.UnbanRequestAt = timeFromNull(unbanReqAt)
	a.ReactivationRequest = reactivationRequest.Bool
	a.ReactivationReason = reactivationReason.String
	a.ReactivationRequestedAt = timeFromNull(reactivationRequestedAt)
	a.ReactivationEligibleAt = timeFromNull(reactivationEligAt)
	return &a, nil
}

// columnValue converts a Patch value to something database/sql can bind.
func columnValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case model.Status:
		return int(t)
	case time.Time:
		return t.UTC()
	case *time.Time:
		return nullTime(t)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return t
	}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBool(b bool) any {
	if !b {
		return nil
	}
	return 1
}

func timeFromNull(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
