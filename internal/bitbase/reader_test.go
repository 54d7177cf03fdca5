package bitbase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnhauge/gambit/internal/board"
	"github.com/finnhauge/gambit/internal/material"
)

func mustPosition(t *testing.T, fen string) *board.Position {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	require.NoError(t, err)
	return pos
}

func mustSignature(t *testing.T, s string) material.Signature {
	t.Helper()
	sig, ok := material.ParseSignature(s)
	require.True(t, ok, "signature %s should parse", s)
	return sig
}

// markWhiteWin sets the bit for pos in bb, standing in for a generator run
// in tests that only need a handful of known verdicts.
func markWhiteWin(t *testing.T, bb *Bitbase, pos *board.Position) {
	t.Helper()
	idx, ok := indexOf(bb.Layout(), pos)
	require.True(t, ok)
	bb.SetBit(idx, true)
}

// TestRegistryProbeWinBothSides checks the perspective translation: the
// same White-wins verdict reads as a positive score for White on move and
// a negative one for Black on move.
func TestRegistryProbeWinBothSides(t *testing.T) {
	sig := mustSignature(t, "KQK")
	bb := NewInMemory(LayoutFor(sig))

	whiteToMove := mustPosition(t, "4k3/8/4K3/4Q3/8/8/8/8 w - - 0 1")
	blackToMove := mustPosition(t, "4k3/8/4K3/4Q3/8/8/8/8 b - - 0 1")
	markWhiteWin(t, bb, whiteToMove)
	markWhiteWin(t, bb, blackToMove)

	reg := NewRegistry(16, 0)
	reg.Register(sig, bb)
	require.Equal(t, 1, reg.MaxPieces())

	v, ok := reg.Probe(whiteToMove, 0)
	require.True(t, ok)
	require.Equal(t, winScore, v)

	v, ok = reg.Probe(blackToMove, 3)
	require.True(t, ok)
	require.Equal(t, -(winScore - 3), v)
}

// TestRegistryProbeDrawWithoutMatingMaterial checks the material
// short-circuit: an unset bit with a bare-king opponent is a definite
// draw, reported as the bitbase draw score (1, not 0).
func TestRegistryProbeDrawWithoutMatingMaterial(t *testing.T) {
	sig := mustSignature(t, "KQK")
	bb := NewInMemory(LayoutFor(sig))
	reg := NewRegistry(16, 0)
	reg.Register(sig, bb)

	pos := mustPosition(t, "k7/8/1QK5/8/8/8/8/8 b - - 0 1") // stalemate, bit unset

	wdl, err := reg.ProbeWDL(pos)
	require.NoError(t, err)
	require.Equal(t, Draw, wdl)

	v, ok := reg.Probe(pos, 0)
	require.True(t, ok)
	require.Equal(t, drawScore, v)
}

// TestRegistryDualSidedProbeThroughSwappedSignature exercises the
// color-flip path: a KKQ position (Black has the queen) is answered by the
// KQK bitbase via the flipped index, with the verdict translated back.
func TestRegistryDualSidedProbeThroughSwappedSignature(t *testing.T) {
	kqk := mustSignature(t, "KQK")
	bb := NewInMemory(LayoutFor(kqk))

	source := mustPosition(t, "4k3/8/4K3/4Q3/8/8/8/8 w - - 0 1")
	markWhiteWin(t, bb, source)

	reg := NewRegistry(16, 0)
	reg.Register(kqk, bb)

	// The exact color-flip of source: board mirrored vertically, colors
	// swapped, Black on move — so Black (the queen's side) wins here.
	flipped := mustPosition(t, "8/8/8/8/4q3/4k3/8/4K3 b - - 0 1")
	require.Equal(t, kqk.Symmetric(), material.Compute(flipped))

	wdl, err := reg.ProbeWDL(flipped)
	require.NoError(t, err)
	require.Equal(t, Loss, wdl, "Black winning reads as Loss from White's perspective")

	v, ok := reg.Probe(flipped, 0)
	require.True(t, ok)
	require.Equal(t, winScore, v, "the side to move (Black) is winning")
}

// TestRegistryProbeSingleIsWhitePerspective checks ProbeSingle's contract:
// Win for a marked bit, DrawOrLoss otherwise, never a definite loss.
func TestRegistryProbeSingleIsWhitePerspective(t *testing.T) {
	sig := mustSignature(t, "KQK")
	bb := NewInMemory(LayoutFor(sig))
	won := mustPosition(t, "4k3/8/4K3/4Q3/8/8/8/8 w - - 0 1")
	markWhiteWin(t, bb, won)

	reg := NewRegistry(16, 0)
	reg.Register(sig, bb)

	res, err := reg.ProbeSingle(won)
	require.NoError(t, err)
	require.Equal(t, Win, res)

	other := mustPosition(t, "k7/8/1QK5/8/8/8/8/8 b - - 0 1")
	res, err = reg.ProbeSingle(other)
	require.NoError(t, err)
	require.Equal(t, DrawOrLoss, res)
}

// TestRegistryUnknownSignatureIsNotFatal checks the degradation contract:
// probing a signature nobody generated reports a miss, never an error the
// search would have to handle.
func TestRegistryUnknownSignatureIsNotFatal(t *testing.T) {
	reg := NewRegistry(16, 0)
	pos := mustPosition(t, "4k3/8/8/8/8/8/8/R3K3 w - - 0 1") // KRK, unregistered

	_, ok := reg.Probe(pos, 0)
	require.False(t, ok)

	_, err := reg.ProbeSingle(pos)
	require.ErrorIs(t, err, ErrNotFound)
}

// TestFlippedIndexMatchesSourceIndex pins the color-flip identity the dual
// probe relies on: the flipped position's index under the swapped layout
// equals the source position's index under its own layout.
func TestFlippedIndexMatchesSourceIndex(t *testing.T) {
	kqk := mustSignature(t, "KQK")
	layout := LayoutFor(kqk)

	source := mustPosition(t, "4k3/8/4K3/4Q3/8/8/8/8 w - - 0 1")
	flipped := mustPosition(t, "8/8/8/8/4q3/4k3/8/4K3 b - - 0 1")

	srcIdx, ok := indexOf(layout, source)
	require.True(t, ok)
	flipIdx, ok := flippedIndexOf(layout, flipped)
	require.True(t, ok)
	require.Equal(t, srcIdx, flipIdx)
}

// TestRegistryLoadDirectory writes a bitbase to disk, scans the directory,
// and probes through the lazy-open path.
func TestRegistryLoadDirectory(t *testing.T) {
	sig := mustSignature(t, "KQK")
	bb := NewInMemory(LayoutFor(sig))
	won := mustPosition(t, "4k3/8/4K3/4Q3/8/8/8/8 w - - 0 1")
	markWhiteWin(t, bb, won)

	dir := t.TempDir()
	require.NoError(t, bb.StoreTo(dir+"/KQK.gbb", 4096))

	reg := NewRegistry(64, 0)
	require.NoError(t, reg.LoadDirectory(dir))
	require.True(t, reg.IsAvailable(sig))

	v, ok := reg.Probe(won, 0)
	require.True(t, ok)
	require.Equal(t, winScore, v)
}
