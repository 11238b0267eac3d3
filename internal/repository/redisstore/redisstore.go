// Package redisstore keeps account records in Redis, one hash per username.
//
// Field-level merges map directly onto HSET/HDEL, which makes Redis a
// natural fit for the "key-value record store with partial updates" the
// services expect. Writes that must not clobber a concurrent writer (create,
// merge into an existing key) run inside WATCH/MULTI.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/model"
	"github.com/sakif/account-gate/internal/repository"
)

const (
	accountPrefix   = "users:"
	moderatorPrefix = "ura_requests:"
	auditPrefix     = "audit:"

	// permanentMarker is written to unbanAt for permanent bans so records
	// stay readable by clients that expect the field to be present.
	permanentMarker = "Permanent"

	maxAuditEvents = 1000
	scanBatch      = 200
)

var _ repository.Backend = (*Store)(nil)

// Store implements repository.Backend on top of a redis.UniversalClient.
type Store struct {
	rdb redis.UniversalClient
}

// New wraps an existing client.
func New(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

// Open parses a redis:// URL, connects and pings.
func Open(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parsing url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redisstore: pinging: %w", err)
	}
	return New(rdb), nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Get loads the hash stored under key.
func (s *Store) Get(ctx context.Context, key string) (*model.Account, error) {
	vals, err := s.rdb.HGetAll(ctx, accountPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: getting account %s: %w", key, err)
	}
	if len(vals) == 0 {
		return nil, apperror.NotFound("account", key)
	}
	return decodeAccount(key, vals)
}

// Create writes a new hash unless the key already exists.
func (s *Store) Create(ctx context.Context, key string, a *model.Account) error {
	redisKey := accountPrefix + key
	fields := encodeAccount(a)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, redisKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return apperror.Conflict("account", key)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisKey, fields)
			return nil
		})
		return err
	}, redisKey)

	switch {
	case err == nil:
		a.Username = key
		return nil
	case errors.Is(err, redis.TxFailedErr):
		// Someone else created the key between WATCH and EXEC.
		return apperror.Conflict("account", key)
	case errors.Is(err, apperror.ErrConflict):
		return err
	default:
		return fmt.Errorf("redisstore: creating account %s: %w", key, err)
	}
}

// Merge applies patch with HSET for values and HDEL for nils.
func (s *Store) Merge(ctx context.Context, key string, patch model.Patch) error {
	if len(patch) == 0 {
		return nil
	}
	redisKey := accountPrefix + key
	set, del := encodePatch(patch)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, redisKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("account", key)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(set) > 0 {
				pipe.HSet(ctx, redisKey, set)
			}
			if len(del) > 0 {
				pipe.HDel(ctx, redisKey, del...)
			}
			return nil
		})
		return err
	}, redisKey)

	if err == nil || errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	return fmt.Errorf("redisstore: merging account %s: %w", key, err)
}

// List scans every account hash and filters in memory. Fine for the admin
// queues and the sweeper; not meant for large directories.
func (s *Store) List(ctx context.Context, filter repository.AccountFilter) ([]model.Account, error) {
	accounts := []model.Account{}

	iter := s.rdb.Scan(ctx, 0, accountPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()
		vals, err := s.rdb.HGetAll(ctx, redisKey).Result()
		if err != nil {
			return nil, fmt.Errorf("redisstore: reading %s: %w", redisKey, err)
		}
		if len(vals) == 0 {
			continue // deleted since the scan saw it
		}
		a, err := decodeAccount(strings.TrimPrefix(redisKey, accountPrefix), vals)
		if err != nil {
			return nil, err
		}
		if matches(a, filter) {
			accounts = append(accounts, *a)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redisstore: scanning accounts: %w", err)
	}

	sort.Slice(accounts, func(i, j int) bool {
		if !accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
		}
		return accounts[i].Username < accounts[j].Username
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(accounts) {
			return []model.Account{}, nil
		}
		accounts = accounts[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(accounts) {
		accounts = accounts[:filter.Limit]
	}
	return accounts, nil
}

func matches(a *model.Account, f repository.AccountFilter) bool {
	if f.Status != 0 && a.Status != f.Status {
		return false
	}
	if f.UnbanRequest && !a.UnbanRequest {
		return false
	}
	if f.ReactivationRequest && !a.ReactivationRequest {
		return false
	}
	return true
}

// CreateModeratorRequest stores a moderator application unless one exists.
func (s *Store) CreateModeratorRequest(ctx context.Context, req *model.ModeratorRequest) error {
	redisKey := moderatorPrefix + req.ModeratorID
	fields := map[string]any{
		"moderatorId":       req.ModeratorID,
		"moderatorUsername": req.ModeratorUsername,
		"serverId":          req.ServerID,
		"githubLink":        req.GitHubLink,
		"apiKeyHash":        req.APIKeyHash,
		"status":            req.Status,
		"requestedAt":       formatTime(req.RequestedAt),
	}

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, redisKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return apperror.Conflict("moderator request", req.ModeratorID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisKey, fields)
			return nil
		})
		return err
	}, redisKey)

	switch {
	case err == nil, errors.Is(err, apperror.ErrConflict):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return apperror.Conflict("moderator request", req.ModeratorID)
	default:
		return fmt.Errorf("redisstore: creating moderator request %s: %w", req.ModeratorID, err)
	}
}

// GetModeratorRequest loads a moderator application.
func (s *Store) GetModeratorRequest(ctx context.Context, moderatorID string) (*model.ModeratorRequest, error) {
	vals, err := s.rdb.HGetAll(ctx, moderatorPrefix+moderatorID).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: getting moderator request %s: %w", moderatorID, err)
	}
	if len(vals) == 0 {
		return nil, apperror.NotFound("moderator request", moderatorID)
	}

	requestedAt, err := parseTime(vals["requestedAt"])
	if err != nil {
		return nil, fmt.Errorf("redisstore: moderator request %s: %w", moderatorID, err)
	}
	return &model.ModeratorRequest{
		ModeratorID:       moderatorID,
		ModeratorUsername: vals["moderatorUsername"],
		ServerID:          vals["serverId"],
		GitHubLink:        vals["githubLink"],
		APIKeyHash:        vals["apiKeyHash"],
		Status:            vals["status"],
		RequestedAt:       requestedAt,
	}, nil
}

// RecordEvent pushes a JSON-encoded event onto the user's audit list and
// trims the list to the newest maxAuditEvents entries.
func (s *Store) RecordEvent(ctx context.Context, event *model.AuditEvent) error {
	if event.ID == "" {
		event.ID = xid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redisstore: encoding event: %w", err)
	}

	redisKey := auditPrefix + event.Username
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, redisKey, data)
		pipe.LTrim(ctx, redisKey, 0, maxAuditEvents-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: recording %s event for %s: %w", event.Type, event.Username, err)
	}
	return nil
}

// ListEvents returns up to limit events for username, newest first.
func (s *Store) ListEvents(ctx context.Context, username string, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := s.rdb.LRange(ctx, auditPrefix+username, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: listing events for %s: %w", username, err)
	}

	events := make([]model.AuditEvent, 0, len(raw))
	for _, r := range raw {
		var e model.AuditEvent
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("redisstore: decoding event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// =========================================================================
// ENCODING
// =========================================================================

func encodeAccount(a *model.Account) map[string]any {
	p := model.Patch{
		model.FieldEmail:     a.Email,
		model.FieldStatus:    a.Status,
		model.FieldCreatedAt: a.CreatedAt,
	}
	optionalTime := func(f model.Field, t *time.Time) {
		if t != nil {
			p[f] = *t
		}
	}
	optionalString := func(f model.Field, s string) {
		if s != "" {
			p[f] = s
		}
	}
	optionalTime(model.FieldLastLoginAt, a.LastLoginAt)
	optionalString(model.FieldBanReason, a.BanReason)
	optionalString(model.FieldBanDuration, a.BanDuration)
	optionalTime(model.FieldBannedAt, a.BannedAt)
	optionalTime(model.FieldUnbanAt, a.UnbanAt)
	optionalTime(model.FieldUnbanRequestAt, a.UnbanRequestAt)
	optionalString(model.FieldReactivationReason, a.ReactivationReason)
	optionalTime(model.FieldReactivationRequestedAt, a.ReactivationRequestedAt)
	optionalTime(model.FieldReactivationEligibleAt, a.ReactivationEligibleAt)
	if a.UnbanRequest {
		p[model.FieldUnbanRequest] = true
	}
	if a.ReactivationRequest {
		p[model.FieldReactivationRequest] = true
	}
	if a.Status == model.StatusBannedPermanent && a.UnbanAt == nil {
		p[model.FieldUnbanAt] = permanentMarker
	}

	fields := make(map[string]any, len(p))
	for f, v := range p {
		if encoded, ok := encodeValue(f, v); ok {
			fields[string(f)] = encoded
		}
	}
	return fields
}

// encodePatch splits patch into fields to HSET and fields to HDEL. A patch
// that moves the account to a permanent ban and clears unbanAt writes
// permanentMarker there instead, the same as encodeAccount.
func encodePatch(patch model.Patch) (set map[string]any, del []string) {
	set = map[string]any{}
	for f, v := range patch {
		if encoded, ok := encodeValue(f, v); ok {
			set[string(f)] = encoded
		} else {
			del = append(del, string(f))
		}
	}

	if st, ok := patch[model.FieldStatus].(model.Status); ok && st == model.StatusBannedPermanent {
		v, present := patch[model.FieldUnbanAt]
		if _, ok := encodeValue(model.FieldUnbanAt, v); present && !ok {
			set[string(model.FieldUnbanAt)] = permanentMarker
			del = slices.DeleteFunc(del, func(f string) bool { return f == string(model.FieldUnbanAt) })
		}
	}
	return set, del
}

// encodeValue renders a patch value as a hash field. ok is false for nil,
// meaning the field should be deleted.
func encodeValue(f model.Field, v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case model.Status:
		return strconv.Itoa(int(t)), true
	case time.Time:
		return formatTime(t), true
	case *time.Time:
		if t == nil {
			return "", false
		}
		return formatTime(*t), true
	case bool:
		if t {
			return "1", true
		}
		return "0", true
	case string:
		return t, true
	default:
		return fmt.Sprint(t), true
	}
}

func decodeAccount(key string, vals map[string]string) (*model.Account, error) {
	a := &model.Account{
		Username:           key,
		Email:              vals[string(model.FieldEmail)],
		BanReason:          vals[string(model.FieldBanReason)],
		BanDuration:        vals[string(model.FieldBanDuration)],
		ReactivationReason: vals[string(model.FieldReactivationReason)],
		UnbanRequest:       parseBool(vals[string(model.FieldUnbanRequest)]),
	}
	a.ReactivationRequest = parseBool(vals[string(model.FieldReactivationRequest)])

	status, err := strconv.Atoi(vals[string(model.FieldStatus)])
	if err != nil {
		return nil, fmt.Errorf("redisstore: account %s: invalid status %q", key, vals[string(model.FieldStatus)])
	}
	a.Status = model.Status(status)

	if a.CreatedAt, err = parseTime(vals[string(model.FieldCreatedAt)]); err != nil {
		return nil, fmt.Errorf("redisstore: account %s: createdAt: %w", key, err)
	}

	optional := []struct {
		field model.Field
		dst   **time.Time
	}{
		{model.FieldLastLoginAt, &a.LastLoginAt},
		{model.FieldBannedAt, &a.BannedAt},
		{model.FieldUnbanAt, &a.UnbanAt},
		{model.FieldUnbanRequestAt, &a.UnbanRequestAt},
		{model.FieldReactivationRequestedAt, &a.ReactivationRequestedAt},
		{model.FieldReactivationEligibleAt, &a.ReactivationEligibleAt},
	}
	for _, o := range optional {
		raw, ok := vals[string(o.field)]
		if !ok || raw == "" || raw == permanentMarker {
			continue
		}
		t, err := parseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("redisstore: account %s: %s: %w", key, o.field, err)
		}
		*o.dst = &t
	}
	return a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
