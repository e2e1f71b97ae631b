package lock

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Composite combines the in-process gate and the cross-process coordinator
// into one logical lock. Acquisition is two-phase: local first (cheap,
// in-process fairness), then distributed; a distributed conflict rolls the
// local acquisition back before the error is returned.
type Composite struct {
	gates  *Gates
	coord  *Coordinator
	logger *slog.Logger
}

// NewComposite creates a composite lock over the given gate set and
// coordinator.
func NewComposite(gates *Gates, coord *Coordinator, logger *slog.Logger) *Composite {
	return &Composite{gates: gates, coord: coord, logger: logger}
}

// handleState tracks the explicit acquisition state machine:
// Idle -> LocalHeld -> BothHeld -> Released. Modelling it as data makes
// release-exactly-once checkable instead of depending on unwind ordering.
type handleState int

const (
	stateIdle handleState = iota
	stateLocalHeld
	stateBothHeld
	stateReleased
)

// Handle is a held composite lock. Release must be called on every exit
// path; it is idempotent.
type Handle struct {
	key   string
	local *LocalHandle
	coord *Coordinator

	mu    sync.Mutex
	state handleState
}

// Acquire takes the named lock: the in-process gate within timeout, then
// the distributed record with the given TTL. On a distributed conflict the
// local gate is released and the conflict error is returned unchanged.
func (c *Composite) Acquire(ctx context.Context, key string, timeout, ttl time.Duration) (*Handle, error) {
	local, err := c.gates.Acquire(ctx, key, timeout)
	if err != nil {
		return nil, err
	}

	h := &Handle{key: key, local: local, coord: c.coord, state: stateLocalHeld}

	if err := c.coord.TryAcquire(ctx, key, ttl); err != nil {
		local.Release()
		h.state = stateReleased
		return nil, err
	}

	h.state = stateBothHeld
	return h, nil
}

// Key returns the operation name this handle guards.
func (h *Handle) Key() string { return h.key }

// Release frees the lock layers in reverse acquisition order, distributed
// then local. Only the first call does anything.
func (h *Handle) Release(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case stateBothHeld:
		h.coord.Release(ctx, h.key)
		h.local.Release()
	case stateLocalHeld:
		h.local.Release()
	}
	h.state = stateReleased
}
