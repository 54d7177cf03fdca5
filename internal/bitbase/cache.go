package bitbase

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
)

// probeCount bounds the linear probe used by both lookup and eviction
// scanning.
const probeCount = 100

// usageWeight scales the hit counter against the age counter when scoring a
// slot for eviction.
const usageWeight = 64

// cacheEntry holds one decompressed cluster, keyed by (signature,
// clusterIndex).
type cacheEntry struct {
	occupied      bool
	signature     uint64
	clusterIndex  uint32
	data          []byte
	ageAtInsert   uint64
	usageCounter  uint64
}

// value scores this entry for eviction at the current global age: higher is
// a better eviction target. An entry whose usage offsets its age scores 0
// (never preferred for eviction over one still at a positive score).
func (e *cacheEntry) value(nowAge uint64) uint64 {
	usageEffect := e.usageCounter * usageWeight
	age := nowAge - e.ageAtInsert
	if usageEffect >= age {
		return 0
	}
	return age - usageEffect
}

// ClusterCache is a bounded, open-addressed cache of decompressed bitbase
// clusters. It has no locks: callers that share a Reader across
// goroutines must serialize their own access, matching the rest of the
// search's single-threaded-with-a-stop-flag concurrency model — only
// the generator's worker pool touches bitbase data from multiple
// goroutines, and it never shares a ClusterCache.
//
// A second, optional hot-tier sits in front of this table: a
// ristretto.Cache keyed the same way, sized generously, that absorbs the
// hottest clusters across many probes so repeated KPK/KRK lookups during a
// single search almost never reach the slower linear-probe table at all.
type ClusterCache struct {
	entries []cacheEntry
	nowAge  uint64
	filled  int
	hot     *ristretto.Cache[uint64, []byte]
}

// NewClusterCache creates a cache with room for capacity clusters. hotTier
// additionally sizes an optional ristretto front cache; pass 0 to disable
// it (the bounded table alone is then the only cache).
func NewClusterCache(capacity int, hotTierCost int64) *ClusterCache {
	c := &ClusterCache{entries: make([]cacheEntry, capacity)}
	if hotTierCost > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
			NumCounters: hotTierCost * 10,
			MaxCost:     hotTierCost,
			BufferItems: 64,
		})
		if err == nil {
			c.hot = cache
		}
	}
	return c
}

func cacheKey(signature uint64, clusterIndex uint32) uint64 {
	var buf [12]byte
	buf[0] = byte(signature)
	buf[1] = byte(signature >> 8)
	buf[2] = byte(signature >> 16)
	buf[3] = byte(signature >> 24)
	buf[4] = byte(signature >> 32)
	buf[5] = byte(signature >> 40)
	buf[6] = byte(signature >> 48)
	buf[7] = byte(signature >> 56)
	buf[8] = byte(clusterIndex)
	buf[9] = byte(clusterIndex >> 8)
	buf[10] = byte(clusterIndex >> 16)
	buf[11] = byte(clusterIndex >> 24)
	return xxhash.Sum64(buf[:])
}

// Get returns a previously-cached cluster's data, signaling a usage hit on
// the slot it lives in.
func (c *ClusterCache) Get(signature uint64, clusterIndex uint32) ([]byte, bool) {
	if c.hot != nil {
		if data, ok := c.hot.Get(cacheKey(signature, clusterIndex)); ok {
			return data, true
		}
	}
	if len(c.entries) == 0 {
		return nil, false
	}
	start := int(cacheKey(signature, clusterIndex) % uint64(len(c.entries)))
	for i := 0; i < probeCount && i < len(c.entries); i++ {
		idx := (start + i) % len(c.entries)
		e := &c.entries[idx]
		if !e.occupied {
			continue
		}
		if e.signature == signature && e.clusterIndex == clusterIndex {
			c.nowAge++
			e.usageCounter++
			return e.data, true
		}
	}
	return nil, false
}

// Put inserts data for (signature, clusterIndex), evicting the
// highest-scoring slot among the probe window when no empty slot is found.
func (c *ClusterCache) Put(signature uint64, clusterIndex uint32, data []byte) {
	if c.hot != nil {
		c.hot.Set(cacheKey(signature, clusterIndex), data, int64(len(data)))
	}
	if len(c.entries) == 0 {
		return
	}
	c.nowAge++
	start := int(cacheKey(signature, clusterIndex) % uint64(len(c.entries)))

	victim := start
	var victimScore uint64
	foundEmpty := false
	for i := 0; i < probeCount && i < len(c.entries); i++ {
		idx := (start + i) % len(c.entries)
		e := &c.entries[idx]
		if !e.occupied {
			victim = idx
			foundEmpty = true
			break
		}
		score := e.value(c.nowAge)
		if i == 0 || score > victimScore {
			victim = idx
			victimScore = score
		}
	}
	if !foundEmpty {
		c.filled-- // about to overwrite an occupied slot
	}
	c.entries[victim] = cacheEntry{
		occupied:     true,
		signature:    signature,
		clusterIndex: clusterIndex,
		data:         data,
		ageAtInsert:  c.nowAge,
	}
	c.filled++
}

// FillRatio returns the fraction of slots currently occupied, for
// diagnostics.
func (c *ClusterCache) FillRatio() float64 {
	if len(c.entries) == 0 {
		return 0
	}
	return float64(c.filled) / float64(len(c.entries))
}
