// Package repository declares the storage contracts the services depend on.
//
// Implementations live in sub-packages (sqlite, redisstore). Services only
// ever see these interfaces, which is what lets the tests swap in an
// in-memory fake.
package repository

import (
	"context"

	"github.com/sakif/account-gate/internal/model"
)

// AccountStore is the key-value view of account records, addressed by the
// normalized username.
//
//   - Get returns apperror.ErrNotFound when no record exists.
//   - Create fails with apperror.ErrConflict when the key is taken.
//   - Merge applies a field-level update; nil values delete the field.
//     Merging into a missing key returns apperror.ErrNotFound.
//
// None of these calls are assumed to be atomic with respect to each other.
type AccountStore interface {
	Get(ctx context.Context, key string) (*model.Account, error)
	Create(ctx context.Context, key string, account *model.Account) error
	Merge(ctx context.Context, key string, patch model.Patch) error
}

// AccountFilter narrows a List call. Zero values mean "any".
type AccountFilter struct {
	Status              model.Status
	UnbanRequest        bool
	ReactivationRequest bool
	Limit               int
	Offset              int
}

// AccountLister is implemented by stores that can enumerate records. It is
// only needed by admin review and the background sweeper.
type AccountLister interface {
	List(ctx context.Context, filter AccountFilter) ([]model.Account, error)
}

// ModeratorRequestRepository stores moderator account applications.
type ModeratorRequestRepository interface {
	CreateModeratorRequest(ctx context.Context, req *model.ModeratorRequest) error
	GetModeratorRequest(ctx context.Context, moderatorID string) (*model.ModeratorRequest, error)
}

// AuditRepository appends audit events.
type AuditRepository interface {
	RecordEvent(ctx context.Context, event *model.AuditEvent) error
	ListEvents(ctx context.Context, username string, limit int) ([]model.AuditEvent, error)
}

// Backend bundles everything a storage backend provides.
type Backend interface {
	AccountStore
	AccountLister
	ModeratorRequestRepository
	AuditRepository
	Ping(ctx context.Context) error
	Close() error
}
