// Package lock implements the mutual-exclusion machinery for install
// operations: an in-process named gate, a database-backed cross-process
// coordinator, and a composite lock that combines the two into one scoped
// handle with release-exactly-once semantics.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when a lock could not be acquired before the timeout.
var ErrBusy = errors.New("lock: operation already in progress")

// Gates is the in-process lock set: one capacity-1 semaphore per operation
// name, created lazily and cached for process lifetime. Construct one Gates
// per process and inject it; the lock guarantee is per-Gates, not global.
type Gates struct {
	mu    sync.Mutex
	gates map[string]*semaphore.Weighted
}

// NewGates creates an empty in-process lock set.
func NewGates() *Gates {
	return &Gates{gates: make(map[string]*semaphore.Weighted)}
}

func (g *Gates) gate(name string) *semaphore.Weighted {
	g.mu.Lock()
	defer g.mu.Unlock()
	sem, ok := g.gates[name]
	if !ok {
		sem = semaphore.NewWeighted(1)
		g.gates[name] = sem
	}
	return sem
}

// Acquire blocks until the named gate is free, ctx is done, or timeout
// elapses. Exceeding the timeout yields ErrBusy, never an indefinite block.
func (g *Gates) Acquire(ctx context.Context, name string, timeout time.Duration) (*LocalHandle, error) {
	sem := g.gate(name)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrBusy, name)
		}
		return nil, err
	}
	return &LocalHandle{name: name, sem: sem}, nil
}

// TryAcquire acquires the named gate only if it is immediately free.
func (g *Gates) TryAcquire(name string) (*LocalHandle, error) {
	sem := g.gate(name)
	if !sem.TryAcquire(1) {
		return nil, fmt.Errorf("%w: %s", ErrBusy, name)
	}
	return &LocalHandle{name: name, sem: sem}, nil
}

// LocalHandle represents a held in-process gate. Release is idempotent.
type LocalHandle struct {
	name string
	sem  *semaphore.Weighted

	mu       sync.Mutex
	released bool
}

// Name returns the operation name this handle guards.
func (h *LocalHandle) Name() string { return h.name }

// Release frees the gate. Safe to call more than once; only the first call
// releases.
func (h *LocalHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	h.sem.Release(1)
}
