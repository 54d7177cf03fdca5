package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnhauge/gambit/internal/board"
)

// twoQuietMoves returns two distinct quiet moves from the starting
// position, for history bookkeeping tests.
func twoQuietMoves(t *testing.T, pos *board.Position) (board.Move, board.Move) {
	t.Helper()
	legal := pos.GenerateLegalMoves()
	require.GreaterOrEqual(t, legal.Len(), 2)
	return legal.Get(0), legal.Get(1)
}

func TestHistoryCutoffRewardsAndPenalizes(t *testing.T) {
	pos := mustPosition(t, board.StartFEN)
	h := NewHistoryTable()
	cutting, tried := twoQuietMoves(t, pos)

	// depth 7 -> bonus (7+1)^2/16 = 4.
	h.UpdateOnCutoff(pos, cutting, []board.Move{tried}, 7)

	require.Equal(t, 4, h.Score(pos, cutting))
	require.Equal(t, -4, h.Score(pos, tried))
}

func TestHistoryPenalizesAtMostSeven(t *testing.T) {
	pos := mustPosition(t, board.StartFEN)
	h := NewHistoryTable()
	legal := pos.GenerateLegalMoves()
	require.GreaterOrEqual(t, legal.Len(), 10)

	cutting := legal.Get(0)
	var tried []board.Move
	for i := 1; i < 10; i++ {
		tried = append(tried, legal.Get(i))
	}

	h.UpdateOnCutoff(pos, cutting, tried, 7)

	penalized := 0
	for _, m := range tried {
		if h.Score(pos, m) < 0 {
			penalized++
		}
	}
	require.Equal(t, 7, penalized)
}

// TestHistoryNegativeSaturationHalvesWholeTable checks that saturation is
// symmetric: driving an entry past -historyClamp halves every entry, the
// same as overflowing the positive side, rather than clamping the one
// entry and losing the table's relative ordering.
func TestHistoryNegativeSaturationHalvesWholeTable(t *testing.T) {
	pos := mustPosition(t, board.StartFEN)
	h := NewHistoryTable()
	cutting, tried := twoQuietMoves(t, pos)

	h.scores[pos.PieceAt(cutting.From())][cutting.To()] = historyClamp / 2
	h.scores[pos.PieceAt(tried.From())][tried.To()] = -historyClamp

	// The -4 penalty pushes tried's entry past the negative clamp.
	h.UpdateOnCutoff(pos, cutting, []board.Move{tried}, 7)

	require.Less(t, h.Score(pos, tried), 0)
	require.Greater(t, h.Score(pos, tried), -historyClamp)
	require.Equal(t, (historyClamp/2+4)/2, h.Score(pos, cutting))
}

func TestHistoryDecayHalvesEntries(t *testing.T) {
	pos := mustPosition(t, board.StartFEN)
	h := NewHistoryTable()
	cutting, _ := twoQuietMoves(t, pos)

	h.UpdateOnCutoff(pos, cutting, nil, 15) // bonus (15+1)^2/16 = 16
	require.Equal(t, 16, h.Score(pos, cutting))

	h.DecayBetweenIterations()
	require.Equal(t, 8, h.Score(pos, cutting))

	h.Clear()
	require.Equal(t, 0, h.Score(pos, cutting))
}

func TestKillerTablePromotesAndDemotes(t *testing.T) {
	k := NewKillerTable()
	m1, m2 := board.Move(100), board.Move(200)

	k.Update(3, m1)
	k1, _ := k.Get(3)
	require.Equal(t, m1, k1)

	k.Update(3, m2)
	k1, k2 := k.Get(3)
	require.Equal(t, m2, k1)
	require.Equal(t, m1, k2)

	// Re-storing the current killer 1 must not shuffle it into killer 2.
	k.Update(3, m2)
	k1, k2 = k.Get(3)
	require.Equal(t, m2, k1)
	require.Equal(t, m1, k2)
}
