package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/account-gate/internal/model"
)

func TestSweep_AppliesDueTransitions(t *testing.T) {
	store := newMemStore()

	expired := account("expired", model.StatusBanned24h)
	expired.BannedAt = timePtr(T.Add(-48 * time.Hour))
	store.put(expired)

	active := account("active", model.StatusBanned7d)
	active.BannedAt = timePtr(T.Add(-time.Hour))
	store.put(active)

	idle := account("idle", model.StatusApproved)
	idle.LastLoginAt = timePtr(T.Add(-10 * 24 * time.Hour))
	store.put(idle)

	ready := account("ready", model.StatusDeactivated)
	ready.ReactivationRequest = true
	ready.ReactivationEligibleAt = timePtr(T.Add(-time.Minute))
	store.put(ready)

	store.put(account("pending", model.StatusPendingApproval))

	svc := newTestAccountService(store, nil)

	report, err := svc.Sweep(context.Background(), T)
	require.NoError(t, err)

	assert.Equal(t, SweepReport{Scanned: 5, Unbanned: 1, Deactivated: 1, Reactivated: 1}, report)
	assert.Equal(t, model.StatusApproved, store.record(t, "expired").Status)
	assert.Equal(t, model.StatusBanned7d, store.record(t, "active").Status)
	assert.Equal(t, model.StatusDeactivated, store.record(t, "idle").Status)
	assert.Equal(t, model.StatusApproved, store.record(t, "ready").Status)

	// A second sweep at the same instant has nothing to do.
	report, err = svc.Sweep(context.Background(), T)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 5}, report)
}

func TestSweep_Pages(t *testing.T) {
	store := newMemStore()
	for i := 0; i < sweepPageSize+5; i++ {
		a := account(fmt.Sprintf("user%03d", i), model.StatusBanned24h)
		a.BannedAt = timePtr(T.Add(-48 * time.Hour))
		store.put(a)
	}
	svc := newTestAccountService(store, nil)

	report, err := svc.Sweep(context.Background(), T)
	require.NoError(t, err)
	assert.Equal(t, sweepPageSize+5, report.Scanned)
	assert.Equal(t, sweepPageSize+5, report.Unbanned)
}

func TestSweep_CountsWriteFailures(t *testing.T) {
	store := newMemStore()
	a := account("expired", model.StatusBanned24h)
	a.BannedAt = timePtr(T.Add(-48 * time.Hour))
	store.put(a)
	store.mergeErr = errors.New("read-only")
	svc := newTestAccountService(store, nil)

	report, err := svc.Sweep(context.Background(), T)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
}

func TestSweep_ListFailure(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("down")
	svc := newTestAccountService(store, nil)

	_, err := svc.Sweep(context.Background(), T)
	assert.Error(t, err)
}

func TestSweep_RequiresLister(t *testing.T) {
	store := newMemStore()
	svc := NewAccountService(store, nil, nil, nil, testPolicy(), discardLogger())

	_, err := svc.Sweep(context.Background(), T)
	assert.Error(t, err)
}
