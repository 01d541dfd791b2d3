package invalidation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/opscore/errors"
)

// recordingHandle captures evictions for assertions.
type recordingHandle struct {
	evicted  []string
	cleared  int
	presence map[string]bool
}

func (h *recordingHandle) Evict(key string) bool {
	h.evicted = append(h.evicted, key)
	return h.presence[key]
}

func (h *recordingHandle) EvictAll() {
	h.cleared++
}

func TestRegisterAndInvalidate(t *testing.T) {
	bus, err := New()
	require.NoError(t, err)

	handle := &recordingHandle{presence: map[string]bool{"alert-1": true}}
	require.NoError(t, bus.Register("alert-by-id", handle))

	require.NoError(t, bus.Invalidate("alert-by-id", "alert-1"))
	assert.Equal(t, []string{"alert-1"}, handle.evicted)
}

func TestInvalidateMultipleCachesForOneChange(t *testing.T) {
	bus, err := New()
	require.NoError(t, err)

	byID := &recordingHandle{}
	byCase := &recordingHandle{}
	require.NoError(t, bus.Register("alert-by-id", byID))
	require.NoError(t, bus.Register("alerts-by-case", byCase))

	// An alert change affects both its own entry and its parent case's
	// child list; the caller names both.
	require.NoError(t, bus.Invalidate("alert-by-id", "alert-7"))
	require.NoError(t, bus.Invalidate("alerts-by-case", "case-3"))

	assert.Equal(t, []string{"alert-7"}, byID.evicted)
	assert.Equal(t, []string{"case-3"}, byCase.evicted)
}

func TestInvalidateAll(t *testing.T) {
	bus, err := New()
	require.NoError(t, err)

	handle := &recordingHandle{}
	require.NoError(t, bus.Register("asset-by-id", handle))

	require.NoError(t, bus.InvalidateAll("asset-by-id"))
	require.NoError(t, bus.InvalidateAll("asset-by-id"))
	assert.Equal(t, 2, handle.cleared)
}

func TestInvalidateUnregisteredCache(t *testing.T) {
	bus, err := New()
	require.NoError(t, err)

	err = bus.Invalidate("nope", "key")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCacheNotRegistered)

	err = bus.InvalidateAll("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCacheNotRegistered)
}

func TestRegisterValidation(t *testing.T) {
	bus, err := New()
	require.NoError(t, err)

	assert.Error(t, bus.Register("", &recordingHandle{}))
	assert.Error(t, bus.Register("valid", nil))

	require.NoError(t, bus.Register("dup", &recordingHandle{}))
	err = bus.Register("dup", &recordingHandle{})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestInvalidateRejectsEmptyKey(t *testing.T) {
	bus, err := New()
	require.NoError(t, err)
	require.NoError(t, bus.Register("alert-by-id", &recordingHandle{}))

	err = bus.Invalidate("alert-by-id", "")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestDeregisterStopsRouting(t *testing.T) {
	bus, err := New()
	require.NoError(t, err)

	handle := &recordingHandle{}
	require.NoError(t, bus.Register("alert-by-id", handle))
	assert.True(t, bus.Deregister("alert-by-id"))
	assert.False(t, bus.Deregister("alert-by-id"))

	err = bus.Invalidate("alert-by-id", "alert-1")
	assert.ErrorIs(t, err, errors.ErrCacheNotRegistered)
	assert.Empty(t, handle.evicted)
}

func TestHandleFuncsAdapter(t *testing.T) {
	var evicted string
	var clearedAll bool

	h := HandleFuncs{
		EvictFunc:    func(key string) bool { evicted = key; return true },
		EvictAllFunc: func() { clearedAll = true },
	}

	assert.True(t, h.Evict("k"))
	h.EvictAll()
	assert.Equal(t, "k", evicted)
	assert.True(t, clearedAll)

	// Nil funcs are safe no-ops.
	empty := HandleFuncs{}
	assert.False(t, empty.Evict("k"))
	empty.EvictAll()
}
