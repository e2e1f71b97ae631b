package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/plumeworks/plume/internal/model"
	"github.com/plumeworks/plume/internal/storage"
)

// ErrHeldElsewhere is returned when an unexpired lock record for the key
// already exists, meaning another instance is running the operation.
var ErrHeldElsewhere = errors.New("lock: operation in progress on another instance")

// RecordStore is the storage surface the coordinator needs. *storage.DB
// satisfies it; tests substitute a fake.
type RecordStore interface {
	InsertLockRecord(ctx context.Context, key, holderID string, ttl time.Duration) (bool, error)
	GetLockRecord(ctx context.Context, key string) (model.LockRecord, error)
	DeleteLockRecord(ctx context.Context, key string) error
	DeleteExpiredLock(ctx context.Context, key string) (bool, error)
	DeleteExpiredLocks(ctx context.Context) (int64, error)
}

// Coordinator manages cross-process lock records with TTL expiry.
//
// When the backing store is unreachable it fails open: the distributed
// layer is treated as satisfied and only the in-process gate protects the
// operation. That is required for the bootstrap moment before any store
// exists, and it is safe — an instance that cannot reach the store cannot
// be mutating it either.
type Coordinator struct {
	mu       sync.RWMutex
	store    RecordStore
	holderID string
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator. holderID identifies this process
// instance in lock records. store may be nil until a database exists.
func NewCoordinator(store RecordStore, holderID string, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: store, holderID: holderID, logger: logger}
}

// SetStore swaps the record store. The wizard calls this once the database
// pool exists; until then the coordinator has no store and fails open.
func (c *Coordinator) SetStore(store RecordStore) {
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()
}

func (c *Coordinator) recordStore() RecordStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

// TryAcquire attempts to claim the key with the given TTL. A conflict with
// an unexpired record returns ErrHeldElsewhere. A conflict with an expired
// record reaps it and retries exactly once. A store failure fails open.
func (c *Coordinator) TryAcquire(ctx context.Context, key string, ttl time.Duration) error {
	store := c.recordStore()
	if store == nil {
		c.logger.Warn("no lock store configured, proceeding with local lock only", "key", key)
		return nil
	}

	inserted, err := store.InsertLockRecord(ctx, key, c.holderID, ttl)
	if err != nil {
		c.logger.Warn("lock store unreachable, proceeding with local lock only",
			"key", key, "error", err)
		return nil
	}
	if inserted {
		return nil
	}

	// Someone holds the row. Reap it if expired and retry once.
	reaped, err := store.DeleteExpiredLock(ctx, key)
	if err != nil {
		c.logger.Warn("lock store unreachable during expiry reap, proceeding with local lock only",
			"key", key, "error", err)
		return nil
	}
	if !reaped {
		return fmt.Errorf("%w: %s", ErrHeldElsewhere, key)
	}

	inserted, err = store.InsertLockRecord(ctx, key, c.holderID, ttl)
	if err != nil {
		c.logger.Warn("lock store unreachable on retry, proceeding with local lock only",
			"key", key, "error", err)
		return nil
	}
	if !inserted {
		return fmt.Errorf("%w: %s", ErrHeldElsewhere, key)
	}
	return nil
}

// IsLocked reports whether an unexpired record exists for key. Store
// failures report unlocked, consistent with the fail-open policy.
func (c *Coordinator) IsLocked(ctx context.Context, key string) bool {
	store := c.recordStore()
	if store == nil {
		return false
	}
	rec, err := store.GetLockRecord(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("lock store probe failed", "key", key, "error", err)
		}
		return false
	}
	return rec.ExpiresAt.After(time.Now().UTC())
}

// Release unconditionally deletes the record for key. The caller is
// already authenticated by holding the in-process gate for the same key.
func (c *Coordinator) Release(ctx context.Context, key string) {
	store := c.recordStore()
	if store == nil {
		return
	}
	if err := store.DeleteLockRecord(ctx, key); err != nil {
		c.logger.Warn("failed to release lock record", "key", key, "error", err)
	}
}

// CleanupExpired reaps every expired lock record.
func (c *Coordinator) CleanupExpired(ctx context.Context) {
	store := c.recordStore()
	if store == nil {
		return
	}
	n, err := store.DeleteExpiredLocks(ctx)
	if err != nil {
		c.logger.Warn("failed to reap expired locks", "error", err)
		return
	}
	if n > 0 {
		c.logger.Info("reaped expired lock records", "count", n)
	}
}
