package internal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsNil(t *testing.T) {
	var nilPtr *int
	var nilMap map[string]int
	var iface any = nilPtr

	require.True(t, IsNil(nil))
	require.True(t, IsNil(nilPtr))
	require.True(t, IsNil(nilMap))
	require.True(t, IsNil(iface))
	require.False(t, IsNil(0))
	require.False(t, IsNil(""))
	require.False(t, IsNil(&struct{}{}))
}

func TestUniqueKeys(t *testing.T) {
	t.Run("Strings", func(t *testing.T) {
		require.Equal(t, []string{"b", "a", "c"}, UniqueKeys([]string{"b", "a", "b", "c", "a"}))
	})

	t.Run("Nil Keys Dropped", func(t *testing.T) {
		one, two := 1, 2
		require.Equal(t, []*int{&one, &two}, UniqueKeys([]*int{nil, &one, nil, &two, &one}))
		require.Equal(t, []any{"x", 1}, UniqueKeys([]any{nil, "x", 1, "x"}))
	})

	t.Run("Empty", func(t *testing.T) {
		require.Empty(t, UniqueKeys[string](nil))
	})
}

func TestSafeCounters(t *testing.T) {
	t.Run("Basic Operations", func(t *testing.T) {
		c := NewSafeCounters()
		require.Zero(t, c.Get("load"))

		c.Add("load", 1)
		c.Add("load", 2)
		c.Add("store", 1)
		require.Equal(t, int64(3), c.Get("load"))
		require.Equal(t, map[string]int64{"load": 3, "store": 1}, c.Snapshot())

		c.Reset()
		require.Empty(t, c.Snapshot())
	})

	t.Run("Concurrent Operations", func(t *testing.T) {
		c := NewSafeCounters()
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Add("op", 1)
			}()
		}
		wg.Wait()
		require.Equal(t, int64(100), c.Get("op"))
	})
}
