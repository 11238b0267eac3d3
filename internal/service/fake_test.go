package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sakif/account-gate/internal/apperror"
	"github.com/sakif/account-gate/internal/classifier"
	"github.com/sakif/account-gate/internal/model"
	"github.com/sakif/account-gate/internal/repository"
)

// =========================================================================
// IN-MEMORY BACKEND
// =========================================================================
//
// memStore implements every repository interface with maps. It stores
// clones so tests can't accidentally share pointers with the service, and
// it counts merges so tests can assert that nothing was written.
//
// getErr / mergeErr simulate an unreachable store.

type memStore struct {
	mu         sync.Mutex
	accounts   map[string]*model.Account
	moderators map[string]*model.ModeratorRequest
	events     []model.AuditEvent

	getErr   error
	mergeErr error
	merges   int
}

var _ repository.Backend = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		accounts:   make(map[string]*model.Account),
		moderators: make(map[string]*model.ModeratorRequest),
	}
}

func (m *memStore) Get(_ context.Context, key string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.accounts[key]
	if !ok {
		return nil, apperror.NotFound("account", key)
	}
	return a.Clone(), nil
}

func (m *memStore) Create(_ context.Context, key string, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[key]; ok {
		return apperror.Conflict("account", key)
	}
	c := a.Clone()
	c.Username = key
	m.accounts[key] = c
	return nil
}

func (m *memStore) Merge(_ context.Context, key string, p model.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mergeErr != nil {
		return m.mergeErr
	}
	a, ok := m.accounts[key]
	if !ok {
		return apperror.NotFound("account", key)
	}
	m.merges++
	a.Apply(p)
	return nil
}

func (m *memStore) List(_ context.Context, f repository.AccountFilter) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}

	out := []model.Account{}
	for _, a := range m.accounts {
		if f.Status != 0 && a.Status != f.Status {
			continue
		}
		if f.UnbanRequest && !a.UnbanRequest {
			continue
		}
		if f.ReactivationRequest && !a.ReactivationRequest {
			continue
		}
		out = append(out, *a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })

	if f.Offset >= len(out) {
		return []model.Account{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) CreateModeratorRequest(_ context.Context, req *model.ModeratorRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.moderators[req.ModeratorID]; ok {
		return apperror.Conflict("moderator request", req.ModeratorID)
	}
	c := *req
	m.moderators[req.ModeratorID] = &c
	return nil
}

func (m *memStore) GetModeratorRequest(_ context.Context, id string) (*model.ModeratorRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.moderators[id]
	if !ok {
		return nil, apperror.NotFound("moderator request", id)
	}
	c := *req
	return &c, nil
}

func (m *memStore) RecordEvent(_ context.Context, e *model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *memStore) ListEvents(_ context.Context, username string, limit int) ([]model.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.AuditEvent{}
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].Username == username {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error { return nil }

// put stores a record directly, bypassing Create's conflict check.
func (m *memStore) put(a *model.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.Username] = a.Clone()
}

// record returns the stored record for assertions.
func (m *memStore) record(t *testing.T, key string) *model.Account {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[key]
	if !ok {
		t.Fatalf("no record for %q", key)
	}
	return a.Clone()
}

func (m *memStore) eventTypes(username string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		if e.Username == username {
			out = append(out, e.Type)
		}
	}
	return out
}

// =========================================================================
// CLASSIFIER FAKES
// =========================================================================

// recordingClassifier returns a fixed verdict and remembers what it was asked.
type recordingClassifier struct {
	verdict *classifier.Verdict
	err     error
	calls   []classifier.Request
}

func (c *recordingClassifier) Classify(_ context.Context, req classifier.Request) (*classifier.Verdict, error) {
	c.calls = append(c.calls, req)
	return c.verdict, c.err
}

var errClassifierDown = errors.New("classifier: connection refused")

// =========================================================================
// HELPERS
// =========================================================================

// T is the reference instant every test measures from.
var T = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.StoreTimeout = time.Second
	p.ClassifierTimeout = time.Second
	return p
}

func newTestAccountService(store *memStore, clf classifier.Classifier) *AccountService {
	svc := NewAccountService(store, store, store, clf, testPolicy(), discardLogger())
	svc.pick = func(int) int { return 0 }
	return svc
}

func timePtr(t time.Time) *time.Time { return &t }

func account(username string, status model.Status) *model.Account {
	return &model.Account{
		Username:  username,
		Email:     username + "@example.com",
		Status:    status,
		CreatedAt: T.Add(-30 * 24 * time.Hour),
	}
}
