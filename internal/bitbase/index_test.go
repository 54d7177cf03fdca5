package bitbase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnhauge/gambit/internal/board"
	"github.com/finnhauge/gambit/internal/material"
)

// TestLayoutIndexRoundTrip exercises the bijection property the bitbase
// subsystem depends on throughout: every index a Layout can produce
// must decode and re-encode to itself, including the side-to-move bit.
func TestLayoutIndexRoundTrip(t *testing.T) {
	for _, sigStr := range []string{"KK", "KNK", "KPK"} {
		sigStr := sigStr
		t.Run(sigStr, func(t *testing.T) {
			sig, ok := material.ParseSignature(sigStr)
			require.True(t, ok, "signature %s should parse", sigStr)
			layout := LayoutFor(sig)

			size := layout.Size()
			require.Greater(t, size, uint64(0))

			checked := 0
			for i := uint64(0); i < size; i++ {
				stm, wk, bk, squares, ok := layout.Decode(i)
				require.True(t, ok, "index %d should decode", i)

				got, ok := layout.Index(stm, wk, bk, squares)
				require.True(t, ok, "decoded index %d should re-encode", i)
				require.Equal(t, i, got, "Index(Decode(%d)) must equal %d", i, i)
				checked++
			}
			require.Equal(t, int(size), checked)
		})
	}
}

// TestLayoutIndexEncodesSideToMove asserts that the same occupancy with
// White and Black to move produces two distinct indexes, one per parity of
// the low bit — the fix for the retrograde generator's earlier
// conflation of the two (see DESIGN.md open question 3).
func TestLayoutIndexEncodesSideToMove(t *testing.T) {
	sig, ok := material.ParseSignature("KPK")
	require.True(t, ok)
	layout := LayoutFor(sig)

	wk := board.Square(0)  // a1, already canonical
	bk := board.Square(61) // f8
	squares := []board.Square{board.Square(20)} // e3

	whiteIdx, ok := layout.Index(board.White, wk, bk, squares)
	require.True(t, ok)
	blackIdx, ok := layout.Index(board.Black, wk, bk, squares)
	require.True(t, ok)

	require.NotEqual(t, whiteIdx, blackIdx)
	require.Equal(t, uint64(0), whiteIdx%2)
	require.Equal(t, uint64(1), blackIdx%2)
}

// TestKingPairCounts checks the two documented king-pair counts: 1806
// legal pairs with a pawn present (no rank/diagonal folding), 462
// without.
func TestKingPairCounts(t *testing.T) {
	require.Equal(t, 1806, KingPairCount(true))
	require.Equal(t, 462, KingPairCount(false))
}
