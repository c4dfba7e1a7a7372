package reactive

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBind_HydratesAndShares(t *testing.T) {
	r, backend := newTestRegistry(t)
	backend.seed("bound", []byte(`{"count":2}`))

	a, err := Bind(r, "bound", &counter{}, WithValidator(nonNegative))
	require.NoError(t, err)
	b, err := Bind(r, "bound", &counter{Count: 100})
	require.NoError(t, err)
	require.Same(t, a.Store(), b.Store())

	require.NoError(t, a.Ready(testCtx(t)))
	assert.Equal(t, &counter{Count: 2}, a.Value())
	assert.EqualValues(t, 1, backend.gets.Load())

	var notifiedB atomic.Int32
	unsubscribe := b.Subscribe(func() { notifiedB.Add(1) })
	defer unsubscribe()

	a.Write(&counter{Count: 3})
	assert.EqualValues(t, 1, notifiedB.Load())
	assert.Same(t, a.Snapshot(), b.Snapshot())
	assert.Equal(t, &counter{Count: 3}, b.Value())
}

func TestBind_Errors(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := Bind(r, "", &counter{})
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestRegistry_FlushAll(t *testing.T) {
	r, backend := newTestRegistry(t)

	for _, key := range []string{"a", "b", "c"} {
		s, err := GetStore(r, key, &counter{})
		require.NoError(t, err)
		s.Write(&counter{Count: len(key)})
	}
	require.NoError(t, r.Flush(testCtx(t)))

	for _, key := range []string{"a", "b", "c"} {
		assert.Equal(t, &counter{Count: 1}, decodeRecord(t, backend, key))
	}
}
