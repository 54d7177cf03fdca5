package search

import (
	"sort"

	"github.com/finnhauge/gambit/internal/board"
)

// RootMoveList holds one RootMove per legal move at the root, reordered
// between iterations and partially excluded for Multi-PV.
type RootMoveList struct {
	moves []RootMove
}

// NewRootMoveList seeds one RootMove per legal move in pos.
func NewRootMoveList(pos *board.Position) *RootMoveList {
	legal := pos.GenerateLegalMoves()
	rl := &RootMoveList{moves: make([]RootMove, 0, legal.Len())}
	for i := 0; i < legal.Len(); i++ {
		rl.moves = append(rl.moves, RootMove{Move: legal.Get(i), Score: -Infinity, PrevScore: -Infinity})
	}
	return rl
}

// Len returns the number of root moves.
func (rl *RootMoveList) Len() int { return len(rl.moves) }

// Get returns the i'th root move (after the last Sort).
func (rl *RootMoveList) Get(i int) *RootMove { return &rl.moves[i] }

// Find returns the root move matching m, or nil.
func (rl *RootMoveList) Find(m board.Move) *RootMove {
	for i := range rl.moves {
		if rl.moves[i].Move == m {
			return &rl.moves[i]
		}
	}
	return nil
}

// ExcludeTopK marks the first k moves (by the current order) Excluded, for
// Multi-PV's (pass k over k-1 previously found lines).
func (rl *RootMoveList) ExcludeTopK(k int) {
	for i := range rl.moves {
		rl.moves[i].Excluded = i < k
	}
}

// ClearExclusions resets every Excluded flag.
func (rl *RootMoveList) ClearExclusions() {
	for i := range rl.moves {
		rl.moves[i].Excluded = false
	}
}

// BeginIteration copies each move's Score into PrevScore so the next
// search's instability comparison has a baseline, and resets Score
// so moves untouched by a partial/aborted iteration don't keep a stale
// value from two iterations ago.
func (rl *RootMoveList) BeginIteration() {
	for i := range rl.moves {
		rl.moves[i].PrevScore = rl.moves[i].Score
		rl.moves[i].Score = -Infinity
	}
}

// Sort stable-sorts root moves by Score descending. Ties keep their
// existing relative order, which — combined with always starting the sort
// from the previous iteration's order — keeps the previous best move first
// among equal scores.
func (rl *RootMoveList) Sort() {
	sort.SliceStable(rl.moves, func(i, j int) bool {
		return rl.moves[i].Score > rl.moves[j].Score
	})
}

// Snapshot copies the first n root moves (after the last Sort), for
// returning a stable result once a search stops or completes.
func (rl *RootMoveList) Snapshot(n int) []RootMove {
	if n > len(rl.moves) {
		n = len(rl.moves)
	}
	out := make([]RootMove, n)
	copy(out, rl.moves[:n])
	return out
}

// Best returns the top root move, or nil if the list is empty.
func (rl *RootMoveList) Best() *RootMove {
	if len(rl.moves) == 0 {
		return nil
	}
	return &rl.moves[0]
}

// Instability reports the two root-instability signals the clock manager
// consumes, both read from the current first root move: whether its score
// is negative and at least instabilityThreshold below its previous-iteration
// score, and how far (never below zero) its value dropped versus the
// previous iteration.
func (rl *RootMoveList) Instability() (failedLow bool, drop int) {
	best := rl.Best()
	if best == nil {
		return false, 0
	}
	d := best.PrevScore - best.Score
	if d < 0 {
		d = 0
	}
	return best.Score <= best.PrevScore-instabilityThreshold && best.Score < 0, d
}
