package search

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnhauge/gambit/internal/board"
)

// TestTranspositionTableStoreProbeRoundTrip exercises the basic store/probe
// contract: a stored entry must be found again under its own hash,
// with every field intact, and a hash that was never stored must miss.
func TestTranspositionTableStoreProbeRoundTrip(t *testing.T) {
	tt := NewTranspositionTable(1)

	hash := uint64(0xABCD1234_56789ABC)
	move := board.Move(0x1234)
	tt.Store(hash, 6, 57, 40, TTExact, move, true, false)

	entry, ok := tt.Probe(hash)
	require.True(t, ok)
	require.Equal(t, int16(6), entry.Depth)
	require.Equal(t, int16(57), entry.Score)
	require.Equal(t, int16(40), entry.StaticEval)
	require.Equal(t, TTExact, entry.Flag)
	require.Equal(t, move, entry.Move)
	require.True(t, entry.IsPV())
	require.False(t, entry.NullMoveThreat())

	_, ok = tt.Probe(hash ^ 0xFFFFFFFF00000000)
	require.False(t, ok)
}

// TestTranspositionTableDepthPreferredSlotKeepsDeeperEntry checks the
// two-slot replacement policy: a shallower store for the same key should not
// evict a deeper depth-preferred entry into the always-replace slot and lose
// it, and a genuinely deeper re-store for the same key must win the slot.
func TestTranspositionTableDepthPreferredSlotKeepsDeeperEntry(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0x1111_2222_3333_4444)

	tt.Store(hash, 10, 100, 90, TTExact, board.Move(1), false, false)
	entry, ok := tt.Probe(hash)
	require.True(t, ok)
	require.Equal(t, int16(10), entry.Depth)

	tt.Store(hash, 12, 120, 95, TTExact, board.Move(2), false, false)
	entry, ok = tt.Probe(hash)
	require.True(t, ok)
	require.Equal(t, int16(12), entry.Depth)
	require.Equal(t, board.Move(2), entry.Move)

	tt.Store(hash, 4, 30, 95, TTUpperBound, board.Move(3), false, false)
	entry, ok = tt.Probe(hash)
	require.True(t, ok)
	require.Equal(t, int16(12), entry.Depth)
}

// TestTranspositionTableNewSearchAgesStaleEntries checks that NewSearch
// marks existing entries stale for replacement purposes without clearing
// them outright: a probe still succeeds until something actually overwrites
// the slot.
func TestTranspositionTableNewSearchAgesStaleEntries(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0x9999_8888_7777_6666)
	tt.Store(hash, 8, 10, 10, TTExact, board.NoMove, false, false)

	tt.NewSearch()

	_, ok := tt.Probe(hash)
	require.True(t, ok, "aging must not drop an entry by itself")
}

// TestTranspositionTableSaveLoadRoundTrip exercises the persisted on-disk
// format: a table saved and reloaded into a freshly sized table must answer
// the same probes for entries that still map to a valid bucket.
func TestTranspositionTableSaveLoadRoundTrip(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0x0102_0304_0506_0708)
	tt.Store(hash, 5, -33, -10, TTLowerBound, board.Move(7), false, true)

	var buf bytes.Buffer
	require.NoError(t, tt.SaveTo(&buf))

	restored := NewTranspositionTable(1)
	require.NoError(t, restored.LoadFrom(&buf))

	entry, ok := restored.Probe(hash)
	require.True(t, ok)
	require.Equal(t, int16(5), entry.Depth)
	require.Equal(t, int16(-33), entry.Score)
	require.Equal(t, TTLowerBound, entry.Flag)
	require.True(t, entry.NullMoveThreat())
}

func TestAdjustScoreToFromTTRoundTrip(t *testing.T) {
	cases := []struct{ score, ply int }{
		{100, 0},
		{100, 5},
		{MateScore - 1, 3},
		{-MateScore + 1, 10},
	}
	for _, c := range cases {
		stored := AdjustScoreToTT(c.score, c.ply)
		got := AdjustScoreFromTT(stored, c.ply)
		require.Equal(t, c.score, got)
	}
}
