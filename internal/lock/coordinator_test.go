package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumeworks/plume/internal/model"
	"github.com/plumeworks/plume/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory RecordStore with a switchable failure mode.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]model.LockRecord
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]model.LockRecord)}
}

var errStoreDown = errors.New("store down")

func (f *fakeStore) InsertLockRecord(_ context.Context, key, holderID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return false, errStoreDown
	}
	if _, ok := f.records[key]; ok {
		return false, nil
	}
	now := time.Now().UTC()
	f.records[key] = model.LockRecord{
		LockKey:    key,
		HolderID:   holderID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	return true, nil
}

func (f *fakeStore) GetLockRecord(_ context.Context, key string) (model.LockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return model.LockRecord{}, errStoreDown
	}
	rec, ok := f.records[key]
	if !ok {
		return model.LockRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) DeleteLockRecord(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errStoreDown
	}
	delete(f.records, key)
	return nil
}

func (f *fakeStore) DeleteExpiredLock(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return false, errStoreDown
	}
	rec, ok := f.records[key]
	if !ok || rec.ExpiresAt.After(time.Now().UTC()) {
		return false, nil
	}
	delete(f.records, key)
	return true, nil
}

func (f *fakeStore) DeleteExpiredLocks(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return 0, errStoreDown
	}
	var n int64
	now := time.Now().UTC()
	for key, rec := range f.records {
		if !rec.ExpiresAt.After(now) {
			delete(f.records, key)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) setFailing(failing bool) {
	f.mu.Lock()
	f.failing = failing
	f.mu.Unlock()
}

func TestCoordinatorAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := NewCoordinator(store, "holder-1", testLogger())

	require.NoError(t, c.TryAcquire(ctx, "op", time.Minute))
	assert.True(t, c.IsLocked(ctx, "op"))

	other := NewCoordinator(store, "holder-2", testLogger())
	err := other.TryAcquire(ctx, "op", time.Minute)
	assert.ErrorIs(t, err, ErrHeldElsewhere)

	c.Release(ctx, "op")
	assert.False(t, c.IsLocked(ctx, "op"))
	require.NoError(t, other.TryAcquire(ctx, "op", time.Minute))
}

func TestCoordinatorReapsExpiredRecord(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	stale := NewCoordinator(store, "crashed-holder", testLogger())
	require.NoError(t, stale.TryAcquire(ctx, "op", -time.Second)) // already expired

	c := NewCoordinator(store, "holder-2", testLogger())
	require.NoError(t, c.TryAcquire(ctx, "op", time.Minute))
	assert.True(t, c.IsLocked(ctx, "op"))
}

func TestCoordinatorExpiredRecordReportsUnlocked(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := NewCoordinator(store, "holder-1", testLogger())

	require.NoError(t, c.TryAcquire(ctx, "op", -time.Second))
	assert.False(t, c.IsLocked(ctx, "op"))
}

func TestCoordinatorFailsOpenWithoutStore(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(nil, "holder-1", testLogger())

	require.NoError(t, c.TryAcquire(ctx, "op", time.Minute))
	assert.False(t, c.IsLocked(ctx, "op"))
	c.Release(ctx, "op")
	c.CleanupExpired(ctx)
}

func TestCoordinatorFailsOpenOnStoreError(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.setFailing(true)
	c := NewCoordinator(store, "holder-1", testLogger())

	require.NoError(t, c.TryAcquire(ctx, "op", time.Minute))
	assert.False(t, c.IsLocked(ctx, "op"))
}

func TestCoordinatorSetStoreEngagesLocking(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(nil, "holder-1", testLogger())
	require.NoError(t, c.TryAcquire(ctx, "op", time.Minute)) // fail-open, no record

	store := newFakeStore()
	c.SetStore(store)
	require.NoError(t, c.TryAcquire(ctx, "op", time.Minute))
	assert.True(t, c.IsLocked(ctx, "op"))
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := NewCoordinator(store, "holder-1", testLogger())

	require.NoError(t, c.TryAcquire(ctx, "stale", -time.Second))
	require.NoError(t, c.TryAcquire(ctx, "live", time.Minute))

	c.CleanupExpired(ctx)
	assert.False(t, c.IsLocked(ctx, "stale"))
	assert.True(t, c.IsLocked(ctx, "live"))
}
