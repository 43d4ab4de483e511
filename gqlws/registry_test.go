package gqlws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct{}

func (fakeProducer) Start(ctx context.Context, emit Emit) (*ErrorPayload, error) { return nil, nil }
func (fakeProducer) Stop(ctx context.Context) error                             { return nil }

func TestRegistry_ReserveRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.Reserve("1"))
	assert.False(t, r.Reserve("1"))
}

func TestRegistry_ReserveBeforeInstallStillBlocksDuplicate(t *testing.T) {
	// This is the atomicity guarantee spec.md §4.E requires: a second
	// subscribe for the same id must be rejected even while the first's
	// factory is still "running" (i.e. before Install is ever called).
	r := NewRegistry()
	require.True(t, r.Reserve("dup"))
	assert.False(t, r.Reserve("dup"), "duplicate must be rejected before Install")
}

func TestRegistry_InstallThenDrop(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.Reserve("1"))
	var cancelled bool
	require.True(t, r.Install("1", fakeProducer{}, func() { cancelled = true }))

	assert.True(t, r.Active("1"))
	assert.Len(t, r.Snapshot(), 1)

	r.Cancel("1")
	assert.True(t, cancelled)

	producer, cancel, ok := r.Drop("1")
	require.True(t, ok)
	assert.NotNil(t, producer)
	assert.NotNil(t, cancel)
	assert.False(t, r.Active("1"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DropUnknownId(t *testing.T) {
	r := NewRegistry()
	_, _, ok := r.Drop("missing")
	assert.False(t, ok)
}

func TestRegistry_InstallWithoutReserveIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Install("never-reserved", fakeProducer{}, nil))
	assert.False(t, r.Active("never-reserved"))
	assert.Empty(t, r.Snapshot())
}

func TestRegistry_InstallAfterDropFails(t *testing.T) {
	// Mirrors the race runOperation guards against: the client's "complete"
	// drops the reservation while the factory is still running, so Install
	// must fail rather than resurrect it.
	r := NewRegistry()
	require.True(t, r.Reserve("1"))
	_, _, _ = r.Drop("1")
	assert.False(t, r.Install("1", fakeProducer{}, nil))
}
