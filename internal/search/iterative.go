package search

import (
	"time"

	"github.com/finnhauge/gambit/internal/board"
)

// InfoFunc receives one SearchInfo per completed (or aborted) iteration and
// per Multi-PV line, mirroring the UCI "info" line contract without the
// search package depending on any protocol package.
type InfoFunc func(SearchInfo)

// IterativeDeepen runs the root search loop with Multi-PV: successive full-width
// searches of increasing depth, each within an aspiration window, each
// producing `multiPV` independent best lines via root-move exclusion. It
// returns once the clock manager says to stop, the requested depth is
// reached, or the stop flag fires.
func (s *Searcher) IterativeDeepen(pos *board.Position, limits SearchLimits, clock *ClockManager, info InfoFunc) []RootMove {
	s.pos = pos
	s.Reset()

	roots := NewRootMoveList(pos)
	if roots.Len() == 0 {
		return nil
	}

	multiPV := limits.MultiPV
	if multiPV < 1 {
		multiPV = 1
	}
	if multiPV > roots.Len() {
		multiPV = roots.Len()
	}

	windows := make([]*AspirationWindow, multiPV)
	for i := range windows {
		windows[i] = NewAspirationWindow()
	}

	maxDepth := limits.Depth
	if maxDepth <= 0 {
		maxDepth = MaxPly - 1
	}

	start := time.Now()
	var lastCompleted []RootMove

	for depth := 1; depth <= maxDepth; depth++ {
		if depth > 1 && !clock.MayStartNextDepth() {
			break
		}
		if limits.Nodes > 0 && s.nodes >= limits.Nodes {
			break
		}

		roots.BeginIteration()
		roots.ClearExclusions()

		aborted := false
		for line := 0; line < multiPV && !aborted; line++ {
			roots.Sort()
			roots.ExcludeTopK(line)

			w := windows[line]
			w.NewDepth(depth)
			for {
				value := s.rootSearch(roots, depth, w.Alpha(), w.Beta())
				if s.stopped() {
					aborted = true
					break
				}
				if clock.ShouldAbort() || clock.EmergencyAbort() {
					aborted = true
				}
				if !w.SetSearchResult(depth, value) {
					break
				}
				if aborted {
					break
				}
			}

			roots.Sort()
			if info != nil && line < roots.Len() {
				info(s.buildInfo(depth, line+1, roots.Get(line), start))
			}
			if aborted {
				break
			}
		}

		if aborted && depth > 1 {
			break
		}

		roots.Sort()
		lastCompleted = roots.Snapshot(multiPV)

		if clock.EmergencyAbort() {
			break
		}
		failedLow, drop := roots.Instability()
		clock.NewIteration(depth, failedLow, drop)

		if best := roots.Best(); best != nil && absInt(best.Score) >= MateScore-MaxPly {
			pliesToMate := MateScore - absInt(best.Score)
			if depth >= pliesToMate {
				break
			}
		}
	}

	return lastCompleted
}

// rootSearch implements one full-width pass over the non-excluded root
// moves at the given depth/window, using PVS: the current best root move
// searches with the full window, every subsequent move with a null window
// first and only re-searches full-width on a fail-high. It returns the
// value of the best (lowest-indexed, highest-scoring-so-far) line searched.
func (s *Searcher) rootSearch(roots *RootMoveList, depth, alpha, beta int) int {
	bestValue := -Infinity
	searched := 0

	for i := 0; i < roots.Len(); i++ {
		rm := roots.Get(i)
		if rm.Excluded {
			continue
		}

		undo := s.pos.MakeMove(rm.Move)
		if !undo.Valid {
			continue
		}
		searched++
		s.stack[0].currentMove = rm.Move
		s.pv.clear(0)
		s.pv.moves[0][0] = rm.Move

		var score int
		if searched == 1 {
			score = -s.negamax(depth-1, 1, -beta, -alpha, nodePV)
		} else {
			score = -s.negamax(depth-1, 1, -alpha-1, -alpha, nodeNull)
			if score > alpha && score < beta {
				score = -s.negamax(depth-1, 1, -beta, -alpha, nodePV)
			}
		}

		s.pos.UnmakeMove(rm.Move, undo)

		if s.stopped() {
			return rm.Score
		}

		rm.Score = score
		rm.Depth = depth
		rm.Nodes = s.nodes
		if score > alpha {
			rm.PV = append([]board.Move{rm.Move}, s.pv.line(1)...)
		}

		if score > bestValue {
			bestValue = score
		}
		if score > alpha {
			alpha = score
		}
		if alpha >= beta {
			break
		}
	}

	return bestValue
}

func (s *Searcher) buildInfo(depth, multiPVIdx int, rm *RootMove, start time.Time) SearchInfo {
	elapsed := time.Since(start)
	nps := uint64(0)
	if elapsed > 0 {
		nps = uint64(float64(s.nodes) / elapsed.Seconds())
	}
	return SearchInfo{
		Depth:    depth,
		MultiPV:  multiPVIdx,
		Score:    rm.Score,
		Mate:     absInt(rm.Score) >= MateScore-MaxPly,
		Nodes:    s.nodes,
		NPS:      nps,
		TimeMs:   elapsed.Milliseconds(),
		PV:       rm.PV,
		HashFull: s.tt.HashFull(),
	}
}
