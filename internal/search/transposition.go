package search

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/finnhauge/gambit/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

// TTEntry is one slot of a bucket: a plain-data struct with explicit
// getters for the packed age/PV/threat byte, rather than bit-field syntax.
type TTEntry struct {
	Key        uint32     // high 32 bits of the Zobrist hash, for verification
	Move       board.Move // best move found (or NoMove)
	Score      int16      // bounded by Flag
	StaticEval int16      // eval at the time of storing, for "improving" checks
	Depth      int16      // search depth this entry was stored at
	Flag       TTFlag
	meta       uint8 // bits 0-3: age, bit 4: PV, bit 5: null-move-threat
}

const (
	metaAgeMask   = 0x0F
	metaPVBit     = 1 << 4
	metaThreatBit = 1 << 5
)

// Age returns the 4-bit generation counter the entry was stored under.
func (e TTEntry) Age() uint8 { return e.meta & metaAgeMask }

// IsPV reports whether the entry was produced by a PV (non-null-window) search.
func (e TTEntry) IsPV() bool { return e.meta&metaPVBit != 0 }

// NullMoveThreat reports whether a null-move search at this entry failed low,
// signalling that the side to move is in zugzwang-adjacent danger.
func (e TTEntry) NullMoveThreat() bool { return e.meta&metaThreatBit != 0 }

func packMeta(age uint8, isPV, threat bool) uint8 {
	m := age & metaAgeMask
	if isPV {
		m |= metaPVBit
	}
	if threat {
		m |= metaThreatBit
	}
	return m
}

// ttBucket is a two-slot bucket: a depth-preferred slot and an
// always-replace slot.
type ttBucket struct {
	depthPreferred TTEntry
	alwaysReplace  TTEntry
}

// TranspositionTable is the shared, fixed-capacity position cache. Multiple
// searchers may read and write it concurrently; lost updates and torn reads
// are tolerated, so no locking is used here — a store is simply a small,
// unsynchronized sequence of field writes, and a reader that observes a
// partial write will fail the key-tag check and treat it as a miss.
type TranspositionTable struct {
	buckets []ttBucket
	mask    uint64
	age     uint8

	hits   uint64
	probes uint64
}

// NewTranspositionTable builds a table sized from a MB budget, rounded down
// to a power of two bucket count so indexing is a mask instead of a modulo.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	const bucketSize = 32 // two 16-byte entries
	numBuckets := (uint64(sizeMB) * 1024 * 1024) / bucketSize
	numBuckets = roundDownToPowerOf2(numBuckets)
	if numBuckets == 0 {
		numBuckets = 1
	}
	return &TranspositionTable{
		buckets: make([]ttBucket, numBuckets),
		mask:    numBuckets - 1,
	}
}

func roundDownToPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Probe looks up a position. It returns the matching slot's entry and true,
// or a zero entry and false on a miss. Both slots of the bucket are checked.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	tt.probes++
	b := &tt.buckets[hash&tt.mask]
	tag := uint32(hash >> 32)

	if b.depthPreferred.Key == tag && b.depthPreferred.Depth > 0 {
		tt.hits++
		return b.depthPreferred, true
	}
	if b.alwaysReplace.Key == tag && b.alwaysReplace.Depth > 0 {
		tt.hits++
		return b.alwaysReplace, true
	}
	return TTEntry{}, false
}

// Store writes a new entry per the replacement rule: prefer the
// depth-preferred slot when the new entry is "better" (same hash and higher
// depth; or new is PV and current is not; or new is exact while current is
// not; or the current slot is stale by age). Otherwise fall back to the
// always-replace slot, which accepts the entry whenever its depth or
// hash-freshness beats the incumbent.
func (tt *TranspositionTable) Store(hash uint64, depth, score, staticEval int, flag TTFlag, move board.Move, isPV, threat bool) {
	b := &tt.buckets[hash&tt.mask]
	tag := uint32(hash >> 32)

	candidate := TTEntry{
		Key:        tag,
		Move:       move,
		Score:      int16(clamp(score, -32768, 32767)),
		StaticEval: int16(clamp(staticEval, -32768, 32767)),
		Depth:      int16(depth),
		Flag:       flag,
		meta:       packMeta(tt.age, isPV, threat),
	}
	if candidate.Move == board.NoMove && b.depthPreferred.Key == tag {
		candidate.Move = b.depthPreferred.Move
	}

	dp := &b.depthPreferred
	betterForDepthSlot := dp.Age() != tt.age ||
		(dp.Key == tag && int(candidate.Depth) >= int(dp.Depth)) ||
		(dp.Key != tag && int(candidate.Depth) >= int(dp.Depth)) ||
		(candidate.IsPV() && !dp.IsPV()) ||
		(candidate.Flag == TTExact && dp.Flag != TTExact)

	if betterForDepthSlot {
		*dp = candidate
		return
	}

	ar := &b.alwaysReplace
	if ar.Age() != tt.age || int(candidate.Depth) >= int(ar.Depth) || ar.Key == tag {
		*ar = candidate
	}
}

// NewSearch increments the 4-bit age counter, marking all existing entries
// stale for replacement purposes without clearing them.
func (tt *TranspositionTable) NewSearch() {
	tt.age = (tt.age + 1) & metaAgeMask
}

// Clear empties the table and resets statistics.
func (tt *TranspositionTable) Clear() {
	for i := range tt.buckets {
		tt.buckets[i] = ttBucket{}
	}
	tt.age = 0
	tt.hits = 0
	tt.probes = 0
}

// HashFull samples the first 1000 buckets and reports the permille that
// hold at least one entry from the current generation.
func (tt *TranspositionTable) HashFull() int {
	sample := 1000
	if uint64(sample) > uint64(len(tt.buckets)) {
		sample = len(tt.buckets)
	}
	if sample == 0 {
		return 0
	}
	used := 0
	for i := 0; i < sample; i++ {
		b := &tt.buckets[i]
		if (b.depthPreferred.Depth > 0 && b.depthPreferred.Age() == tt.age) ||
			(b.alwaysReplace.Depth > 0 && b.alwaysReplace.Age() == tt.age) {
			used++
		}
	}
	return (used * 1000) / sample
}

// HitRate reports the cache hit rate as a percentage, for diagnostics only.
func (tt *TranspositionTable) HitRate() float64 {
	if tt.probes == 0 {
		return 0
	}
	return float64(tt.hits) / float64(tt.probes) * 100
}

// Buckets returns the number of buckets (2 entries per bucket).
func (tt *TranspositionTable) Buckets() uint64 { return uint64(len(tt.buckets)) }

// AdjustScoreFromTT converts a ply-independent stored score back into a
// ply-relative one when reading from the table.
func AdjustScoreFromTT(score, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT converts a ply-relative score into the ply-independent
// form stored in the table.
func AdjustScoreToTT(score, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}

// persistedTTHeader matches the persisted TT file layout: size (i64), age
// counter (i32), entry count (i32), then packed entries.
type persistedTTHeader struct {
	Size    int64
	Age     int32
	Entries int32
}

// writeEntry serializes one TTEntry field-by-field. encoding/binary cannot
// reflect over TTEntry directly because meta is unexported, so the wire
// format is spelled out explicitly here instead.
func writeEntry(w io.Writer, e TTEntry) error {
	fields := []any{e.Key, uint16(e.Move), e.Score, e.StaticEval, e.Depth, uint8(e.Flag), e.meta}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

func readEntry(r io.Reader) (TTEntry, error) {
	var e TTEntry
	var move uint16
	var flag uint8
	for _, f := range []any{&e.Key, &move, &e.Score, &e.StaticEval, &e.Depth, &flag, &e.meta} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return TTEntry{}, err
		}
	}
	e.Move = board.Move(move)
	e.Flag = TTFlag(flag)
	return e, nil
}

// SaveTo writes the full table to w in the persisted format.
func (tt *TranspositionTable) SaveTo(w io.Writer) error {
	hdr := persistedTTHeader{
		Size:    int64(len(tt.buckets)),
		Age:     int32(tt.age),
		Entries: int32(len(tt.buckets) * 2),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("writing tt header: %w", err)
	}
	for _, b := range tt.buckets {
		if err := writeEntry(w, b.depthPreferred); err != nil {
			return fmt.Errorf("writing tt entry: %w", err)
		}
		if err := writeEntry(w, b.alwaysReplace); err != nil {
			return fmt.Errorf("writing tt entry: %w", err)
		}
	}
	return nil
}

// LoadFrom restores a table previously written by SaveTo. The bucket count
// may differ from the table's current size; entries that no longer map to
// a valid bucket after resizing are dropped on read; the table's size may
// legitimately differ across a restore.
func (tt *TranspositionTable) LoadFrom(r io.Reader) error {
	var hdr persistedTTHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("reading tt header: %w", err)
	}
	tt.age = uint8(hdr.Age) & metaAgeMask

	remaining := int(hdr.Entries)
	for bi := 0; remaining > 0; bi++ {
		dp, err := readEntry(r)
		if err != nil {
			return fmt.Errorf("reading tt entry: %w", err)
		}
		remaining--
		var ar TTEntry
		if remaining > 0 {
			ar, err = readEntry(r)
			if err != nil {
				return fmt.Errorf("reading tt entry: %w", err)
			}
			remaining--
		}
		if uint64(bi) < uint64(len(tt.buckets)) {
			tt.buckets[bi] = ttBucket{depthPreferred: dp, alwaysReplace: ar}
		}
	}
	return nil
}
