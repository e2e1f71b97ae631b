package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestComposite(store RecordStore) *Composite {
	gates := NewGates()
	coord := NewCoordinator(store, "test-holder", testLogger())
	return NewComposite(gates, coord, testLogger())
}

func TestCompositeAcquireRelease(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newTestComposite(store)

	h, err := c.Acquire(ctx, "op", time.Second, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "op", h.Key())
	assert.True(t, c.coord.IsLocked(ctx, "op"))

	h.Release(ctx)
	assert.False(t, c.coord.IsLocked(ctx, "op"))

	// Both layers are free again.
	h2, err := c.Acquire(ctx, "op", time.Second, time.Minute)
	require.NoError(t, err)
	h2.Release(ctx)
}

func TestCompositeLocalConflict(t *testing.T) {
	ctx := context.Background()
	c := newTestComposite(newFakeStore())

	h, err := c.Acquire(ctx, "op", time.Second, time.Minute)
	require.NoError(t, err)
	defer h.Release(ctx)

	_, err = c.Acquire(ctx, "op", 20*time.Millisecond, time.Minute)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestCompositeDistributedConflictRollsBackLocal(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	// Another instance holds the record.
	otherInstance := NewCoordinator(store, "other-holder", testLogger())
	require.NoError(t, otherInstance.TryAcquire(ctx, "op", time.Minute))

	c := newTestComposite(store)
	_, err := c.Acquire(ctx, "op", 20*time.Millisecond, time.Minute)
	assert.ErrorIs(t, err, ErrHeldElsewhere)

	// The local gate must have been rolled back, not leaked.
	local, err := c.gates.TryAcquire("op")
	require.NoError(t, err)
	local.Release()
}

func TestCompositeReleaseIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newTestComposite(store)

	h, err := c.Acquire(ctx, "op", time.Second, time.Minute)
	require.NoError(t, err)

	h.Release(ctx)
	h.Release(ctx)

	// The gate still behaves as capacity 1.
	h2, err := c.Acquire(ctx, "op", time.Second, time.Minute)
	require.NoError(t, err)
	_, err = c.Acquire(ctx, "op", 20*time.Millisecond, time.Minute)
	assert.ErrorIs(t, err, ErrBusy)
	h2.Release(ctx)
}

func TestCompositeWithoutStore(t *testing.T) {
	ctx := context.Background()
	c := newTestComposite(nil)

	h, err := c.Acquire(ctx, "op", time.Second, time.Minute)
	require.NoError(t, err)
	h.Release(ctx)
}
