package bitbase

import "fmt"

// Bitbase is one material signature's bit array: either fully resident in
// memory (after generation, or after an eager load) or backed by an
// on-disk Reader and served cluster-by-cluster through a ClusterCache.
type Bitbase struct {
	layout Layout
	size   uint64

	bits []byte // present when fully resident; nil otherwise

	reader *Reader
	cache  *ClusterCache
	sig    uint64 // cache key namespace for this bitbase's clusters
}

// NewInMemory creates a fully-resident Bitbase of the given layout, all
// bits cleared (no position is a White win until the generator says so).
func NewInMemory(layout Layout) *Bitbase {
	size := layout.Size()
	return &Bitbase{
		layout: layout,
		size:   size,
		bits:   make([]byte, (size+7)/8),
	}
}

// OpenOnDisk attaches a Bitbase to an on-disk file via reader, serving
// cluster reads through cache. sig namespaces this bitbase's clusters
// within a cache shared across many signatures.
func OpenOnDisk(layout Layout, reader *Reader, cache *ClusterCache, sig uint64) *Bitbase {
	return &Bitbase{
		layout: layout,
		size:   layout.Size(),
		reader: reader,
		cache:  cache,
		sig:    sig,
	}
}

// Size returns the number of addressable indexes.
func (b *Bitbase) Size() uint64 { return b.size }

// SetBit sets (or clears) the bit at index, for an in-memory Bitbase built
// during generation.
func (b *Bitbase) SetBit(index uint64, value bool) {
	if b.bits == nil {
		panic("bitbase: SetBit on a disk-backed Bitbase")
	}
	byteIdx := index / 8
	bit := byte(1) << (index % 8)
	if value {
		b.bits[byteIdx] |= bit
	} else {
		b.bits[byteIdx] &^= bit
	}
}

// GetBit returns the bit at index, transparently resolving it from memory,
// the cluster cache, or the backing reader.
func (b *Bitbase) GetBit(index uint64) (bool, error) {
	if index >= b.size {
		return false, fmt.Errorf("bitbase: index %d out of range (size %d)", index, b.size)
	}
	if b.bits != nil {
		byteIdx := index / 8
		bit := byte(1) << (index % 8)
		return b.bits[byteIdx]&bit != 0, nil
	}

	clusterSize := uint64(b.reader.Header().ClusterSize)
	byteOffset := index / 8
	clusterIdx := uint32(byteOffset / clusterSize)
	withinCluster := byteOffset % clusterSize

	var data []byte
	if cached, ok := b.cache.Get(b.sig, clusterIdx); ok {
		data = cached
	} else {
		raw, err := b.reader.ReadCluster(int(clusterIdx))
		if err != nil {
			return false, err
		}
		data = raw
		b.cache.Put(b.sig, clusterIdx, data)
	}
	if withinCluster >= uint64(len(data)) {
		return false, &FormatError{Reason: "cluster shorter than index requires"}
	}
	bit := byte(1) << (index % 8)
	return data[withinCluster]&bit != 0, nil
}

// RawBits exposes the full in-memory bit array for StoreTo, valid only on
// a fully-resident Bitbase.
func (b *Bitbase) RawBits() []byte { return b.bits }

// StoreTo writes a fully-resident Bitbase to path using the clustered,
// compressed on-disk format.
func (b *Bitbase) StoreTo(path string, clusterSize int) error {
	if b.bits == nil {
		return fmt.Errorf("bitbase: StoreTo requires a fully-resident bitbase")
	}
	return WriteFile(path, b.bits, b.size, clusterSize)
}

// Layout returns the index layout this Bitbase was built from.
func (b *Bitbase) Layout() Layout { return b.layout }
