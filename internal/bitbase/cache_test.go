package bitbase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestClusterCacheEvictsOldestUnusedSlot pins the eviction rule on the
// smallest interesting cache: capacity 4 (so the probe window spans every
// slot), clusters 0-3 inserted at increasing ages, cluster 0 then accessed
// three times. Inserting cluster 4 must evict the slot with the lowest
// usage and the oldest age — cluster 1 — and never the heavily-used
// cluster 0.
func TestClusterCacheEvictsOldestUnusedSlot(t *testing.T) {
	c := NewClusterCache(4, 0)

	for i := uint32(0); i < 4; i++ {
		c.Put(1, i, []byte{byte(i)})
	}
	for i := 0; i < 3; i++ {
		_, ok := c.Get(1, 0)
		require.True(t, ok)
	}

	c.Put(1, 4, []byte{4})

	_, ok := c.Get(1, 1)
	require.False(t, ok, "the oldest unused cluster must be the one evicted")
	for _, idx := range []uint32{0, 2, 3, 4} {
		_, ok := c.Get(1, idx)
		require.True(t, ok, "cluster %d should have survived", idx)
	}
}

// TestClusterCacheEvictsLeastUsedUnderPressure exercises the eviction
// scenario: a heavily-probed cluster should survive
// repeated insertion pressure that evicts clusters nobody revisited.
func TestClusterCacheEvictsLeastUsedUnderPressure(t *testing.T) {
	c := NewClusterCache(4, 0)

	for i := uint32(0); i < 4; i++ {
		c.Put(1, i, []byte{byte(i)})
	}

	for i := 0; i < 50; i++ {
		_, ok := c.Get(1, 0)
		require.True(t, ok, "cluster 0 should still be cached during warm-up")
	}

	for i := uint32(4); i < 40; i++ {
		c.Put(1, i, []byte{byte(i)})
	}

	_, ok := c.Get(1, 0)
	require.True(t, ok, "heavily-used cluster should survive eviction pressure")
}

func TestClusterCacheFillRatio(t *testing.T) {
	c := NewClusterCache(10, 0)
	require.Equal(t, 0.0, c.FillRatio())

	for i := uint32(0); i < 5; i++ {
		c.Put(7, i, []byte{1})
	}
	require.InDelta(t, 0.5, c.FillRatio(), 0.01)
}

func TestClusterCacheMissOnEmpty(t *testing.T) {
	c := NewClusterCache(8, 0)
	_, ok := c.Get(42, 0)
	require.False(t, ok)
}

func TestClusterCacheHotTier(t *testing.T) {
	c := NewClusterCache(4, 1<<20)
	c.Put(9, 1, []byte{9, 9})
	data, ok := c.Get(9, 1)
	require.True(t, ok)
	require.Equal(t, []byte{9, 9}, data)
}
