package bitbase

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnhauge/gambit/internal/board"
	"github.com/finnhauge/gambit/internal/material"
)

func generateSignature(t *testing.T, name string, prereqs *Registry) (material.Signature, *Bitbase) {
	t.Helper()
	sig := mustSignature(t, name)
	layout := LayoutFor(sig)
	gen := NewGenerator(layout, DefaultPositionBuilder(layout), runtime.NumCPU())
	if prereqs != nil {
		gen.SetPrerequisites(prereqs)
	}
	bb, err := gen.Generate(context.Background())
	require.NoError(t, err)
	return sig, bb
}

// TestDefaultPositionBuilderRejectsIllegalOccupancies checks the builder's
// filtering: coincident squares and "the waiting side is in check" must
// both come back as not-a-position.
func TestDefaultPositionBuilderRejectsIllegalOccupancies(t *testing.T) {
	layout := LayoutFor(mustSignature(t, "KQK"))
	build := DefaultPositionBuilder(layout)

	// Queen on the black king's square.
	_, ok := build(board.White, board.A1, board.H8, []board.Square{board.H8})
	require.False(t, ok)

	// White to move while the black king already stands in check from the
	// queen: that means Black (the waiting side) is in check, illegal.
	_, ok = build(board.White, board.A1, board.H8, []board.Square{board.H1})
	require.False(t, ok)

	// A perfectly ordinary occupancy.
	pos, ok := build(board.White, board.A1, board.H8, []board.Square{board.B3})
	require.True(t, ok)
	require.Equal(t, board.White, pos.SideToMove)
}

// TestGenerateKQK runs the retrograde generator over the full KQK index
// space and spot-checks known verdicts: won positions for the queen's
// side, the bare-king stalemate draw, and the mated-in-place position.
func TestGenerateKQK(t *testing.T) {
	if testing.Short() {
		t.Skip("full KQK generation is too slow for -short")
	}

	sig, bb := generateSignature(t, "KQK", nil)
	reg := NewRegistry(64, 0)
	reg.Register(sig, bb)

	// White mates with KQ against a bare king from anywhere; this one is
	// mate in one.
	win := mustPosition(t, "4k3/8/4K3/4Q3/8/8/8/8 w - - 0 1")
	wdl, err := reg.ProbeWDL(win)
	require.NoError(t, err)
	require.Equal(t, Win, wdl)

	// Black to move, already mated: a win for White with Black on move.
	mated := mustPosition(t, "4k3/4Q3/4K3/8/8/8/8/8 b - - 0 1")
	require.True(t, mated.IsCheckmate())
	wdl, err = reg.ProbeWDL(mated)
	require.NoError(t, err)
	require.Equal(t, Win, wdl)

	// Stalemate: Black to move, no moves, not in check.
	stalemate := mustPosition(t, "k7/8/1QK5/8/8/8/8/8 b - - 0 1")
	require.True(t, stalemate.IsStalemate())
	wdl, err = reg.ProbeWDL(stalemate)
	require.NoError(t, err)
	require.Equal(t, Draw, wdl)

	// The search-facing probe agrees on signs.
	v, ok := reg.Probe(win, 0)
	require.True(t, ok)
	require.Greater(t, v, 0)

	v, ok = reg.Probe(mated, 0)
	require.True(t, ok)
	require.Less(t, v, 0)
}

// TestGenerateKPKHoldsOpposition is the KPK scenario: with kings in
// opposition in front of the pawn, KPK is drawn both before and after the
// double pawn push. Promotions inside the KPK space resolve against the
// K*K prerequisite bitbases, generated first the way the CLI does it.
func TestGenerateKPKHoldsOpposition(t *testing.T) {
	if testing.Short() {
		t.Skip("KPK generation with prerequisites is too slow for -short")
	}

	prereqs := NewRegistry(256, 0)
	for _, name := range []string{"KNK", "KBK", "KRK", "KQK"} {
		sig, bb := generateSignature(t, name, prereqs)
		prereqs.Register(sig, bb)
	}
	kpk, bb := generateSignature(t, "KPK", prereqs)
	prereqs.Register(kpk, bb)

	// The defending king sits on the promotion path with maximum
	// distance: drawn with White to move.
	before := mustPosition(t, "4k3/8/8/8/8/8/4P3/4K3 w - - 0 1")
	wdl, err := prereqs.ProbeWDL(before)
	require.NoError(t, err)
	require.Equal(t, Draw, wdl)

	// Pushing the pawn doesn't change the verdict: the king stays behind
	// its pawn and the defender takes the opposition.
	after := mustPosition(t, "4k3/8/8/8/4P3/8/8/4K3 b - - 0 1")
	wdl, err = prereqs.ProbeWDL(after)
	require.NoError(t, err)
	require.Equal(t, Draw, wdl, "the black king holds the opposition")

	// A textbook won KPK: the king on the sixth rank in front of its pawn
	// wins no matter whose move it is.
	won := mustPosition(t, "4k3/8/4K3/8/4P3/8/8/8 w - - 0 1")
	wdl, err = prereqs.ProbeWDL(won)
	require.NoError(t, err)
	require.Equal(t, Win, wdl)
}
