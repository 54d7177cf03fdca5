package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnhauge/gambit/internal/board"
)

func mustPosition(t *testing.T, fen string) *board.Position {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	require.NoError(t, err)
	return pos
}

// TestMoveProviderNeverRepeatsAMove drains a provider over the starting
// position and checks every legal move is returned exactly once, matching
// the property that Next() never repeats within a node.
func TestMoveProviderNeverRepeatsAMove(t *testing.T) {
	pos := mustPosition(t, board.StartFEN)
	legal := pos.GenerateLegalMoves()

	mp := NewMoveProvider(pos, board.NoMove, board.NoMove, board.NoMove, board.NoMove, NewHistoryTable())

	seen := make(map[board.Move]int)
	for {
		m := mp.Next()
		if m == board.NoMove {
			break
		}
		seen[m]++
	}

	require.Len(t, seen, legal.Len())
	for m, count := range seen {
		require.Equal(t, 1, count, "move %v returned more than once", m)
	}
}

// TestMoveProviderEmitsTTMoveFirst checks the staged pull order's first
// stage: a TT move that is actually legal in pos must come out of Next()
// before anything else.
func TestMoveProviderEmitsTTMoveFirst(t *testing.T) {
	pos := mustPosition(t, board.StartFEN)
	legal := pos.GenerateLegalMoves()
	require.Greater(t, legal.Len(), 0)
	ttMove := legal.Get(legal.Len() - 1)

	mp := NewMoveProvider(pos, ttMove, board.NoMove, board.NoMove, board.NoMove, NewHistoryTable())
	require.Equal(t, ttMove, mp.Next())
}

// TestMoveProviderSkipsIllegalKillers checks that a killer move carried over
// from an unrelated position (and thus not legal here) is silently skipped
// rather than ever being returned.
func TestMoveProviderSkipsIllegalKillers(t *testing.T) {
	pos := mustPosition(t, board.StartFEN)
	bogusKiller := board.Move(0xFFFF)

	mp := NewMoveProvider(pos, board.NoMove, bogusKiller, board.NoMove, board.NoMove, NewHistoryTable())
	for {
		m := mp.Next()
		if m == board.NoMove {
			break
		}
		require.NotEqual(t, bogusKiller, m)
	}
}

// TestCaptureProviderOnlyReturnsCaptures exercises the quiescence-mode
// provider: a position with captures on board should only ever yield
// capture moves, in good-before-losing order.
func TestCaptureProviderOnlyReturnsCaptures(t *testing.T) {
	// White to move, black knight hangs on e5: the pawn on d4 can capture it
	// (the queen on h1 does not reach e5).
	pos := mustPosition(t, "4k3/8/8/4n3/3P4/8/8/4K2Q w - - 0 1")

	mp := NewCaptureProvider(pos, board.NoMove)
	count := 0
	for {
		m := mp.Next()
		if m == board.NoMove {
			break
		}
		require.True(t, m.IsCapture(pos), "capture provider returned a non-capture")
		count++
	}
	require.Greater(t, count, 0)
}
