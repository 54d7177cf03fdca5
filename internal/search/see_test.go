package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFullSEEFreeCapture(t *testing.T) {
	// exd5 wins a pawn outright; nothing defends d5.
	pos := mustPosition(t, "4k3/8/8/3p4/4P3/8/8/4K3 w - - 0 1")
	m := findMove(t, pos, "e4", "d5")
	require.Equal(t, 100, FullSEE(pos, m))
	require.False(t, IsLosingCapture(pos, m))
	require.False(t, LightSEE(pos, m))
}

func TestFullSEEDefendedPawnIsEven(t *testing.T) {
	// exd5 cxd5: pawn for pawn.
	pos := mustPosition(t, "4k3/8/2p5/3p4/4P3/8/8/4K3 w - - 0 1")
	m := findMove(t, pos, "e4", "d5")
	require.Equal(t, 0, FullSEE(pos, m))
	require.False(t, IsLosingCapture(pos, m))
}

func TestFullSEEQueenTakesDefendedPawn(t *testing.T) {
	// Qxd5 cxd5 trades the queen for a pawn.
	pos := mustPosition(t, "4k3/8/2p5/3p4/8/8/8/3QK3 w - - 0 1")
	m := findMove(t, pos, "d1", "d5")
	require.Equal(t, 100-900, FullSEE(pos, m))
	require.True(t, IsLosingCapture(pos, m))
	require.True(t, LightSEE(pos, m), "light SEE must flag a pawn-defended target for a heavier attacker")
}

func TestFullSEERevealedAttacker(t *testing.T) {
	// Rxd5 exposes the rook to cxd5, but the rook behind on d1 recaptures:
	// rook takes pawn, pawn takes rook, rook takes pawn = 100 - 500 + 100.
	pos := mustPosition(t, "4k3/8/2p5/3p4/8/8/3R4/3RK3 w - - 0 1")
	m := findMove(t, pos, "d2", "d5")
	require.Equal(t, 100-500+100, FullSEE(pos, m))
	require.True(t, IsLosingCapture(pos, m))
}

func TestLightSEEEqualTradeNotLosing(t *testing.T) {
	// Pawn takes pawn is never "losing" for light SEE, defended or not.
	pos := mustPosition(t, "4k3/8/2p5/3p4/4P3/8/8/4K3 w - - 0 1")
	m := findMove(t, pos, "e4", "d5")
	require.False(t, LightSEE(pos, m))
}
