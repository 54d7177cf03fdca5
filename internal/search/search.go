package search

import (
	"math"
	"sync/atomic"

	"github.com/finnhauge/gambit/internal/board"
)

// BitbaseProber is the interface the main search probes for small-material
// positions. It is satisfied by bitbase.Registry; the search
// package depends only on this narrow interface so it never imports the
// bitbase package directly and the two stay decoupled.
//
// Probe returns (value, true) when the bitbase gives a definite result from
// the side-to-move's perspective: MateScore-ish for a known win, its
// negation for a known loss, or drawValue (distinct from the repetition
// draw's 0) for a known draw. It returns (_, false) when the
// position's signature isn't loaded or the probe is inconclusive.
type BitbaseProber interface {
	Probe(pos *board.Position, ply int) (value int, ok bool)
	MaxPieces() int
}

// noopProber always misses; used when no bitbase path was configured.
type noopProber struct{}

func (noopProber) Probe(*board.Position, int) (int, bool) { return 0, false }
func (noopProber) MaxPieces() int                         { return 0 }

// drawValue is the bitbase's encoding of a known draw: 1, not 0, so the
// main search can tell it apart from a repetition/50-move draw.
const drawValue = 1

// Tuning knobs for the pruning/extension machinery. Kept as package-level
// vars (not consts) so a future `set_option` tuning surface can adjust them
// without touching the search loop itself.
var (
	nullMoveMinDepth   = 2
	nullMoveReduction  = 4
	futilityMaxDepth   = 10
	futilityMargin     = 100
	singularMargin     = 2 // multiplied by depth
	lmrMinDepth        = 3
	lmrMinMoveIndex    = 3
	iidMinDepth        = 6
	bitbaseMaxPieces   = 6
	maxDoubleExtension = 6
)

// Searcher performs one cooperative, stop-flag-polling iterative-deepening
// search. The core search itself is single-threaded: concurrency in
// this module is reserved for the bitbase generator's worker pool, not for
// parallel search trees. Position is owned by the caller; Search borrows it
// and restores it (make/unmake balanced) on every exit path.
type Searcher struct {
	pos      *board.Position
	tt       *TranspositionTable
	pawns    *PawnTable
	history  *HistoryTable
	killers  *KillerTable
	bitbase  BitbaseProber
	rootHist []uint64 // Zobrist hashes of positions before the search root

	nodes    uint64
	selDepth int
	stopFlag *atomic.Bool

	stack     [MaxPly]stackFrame
	undoStack [MaxPly]board.UndoInfo
	played    [MaxPly]uint64 // hashes pushed during this search, ply-indexed

	pv PVLine
}

// NewSearcher wires a Searcher to its shared resources. tt and history
// outlive any single search; bitbase may be nil, in
// which case probes always miss.
func NewSearcher(tt *TranspositionTable, pawns *PawnTable, history *HistoryTable, killers *KillerTable, bitbase BitbaseProber) *Searcher {
	if bitbase == nil {
		bitbase = noopProber{}
	}
	return &Searcher{
		tt:      tt,
		pawns:   pawns,
		history: history,
		killers: killers,
		bitbase: bitbase,
	}
}

// SetStopFlag installs the shared, unsynchronized stop flag the clock
// manager (or a "stop" command) sets to cancel the in-progress search.
func (s *Searcher) SetStopFlag(flag *atomic.Bool) { s.stopFlag = flag }

// SetPositionHistory records the Zobrist hashes of positions reached before
// the search root, so repetition detection can see across the game
// boundary into the root position's ancestry.
func (s *Searcher) SetPositionHistory(hashes []uint64) { s.rootHist = hashes }

// Reset clears per-search node/seldepth counters. It does not touch the TT,
// history table or killer table, which are shared across a whole game.
func (s *Searcher) Reset() {
	s.nodes = 0
	s.selDepth = 0
}

// Nodes returns the number of nodes searched since the last Reset.
func (s *Searcher) Nodes() uint64 { return s.nodes }

// SelDepth returns the deepest ply reached (via extensions/quiescence)
// during the last search.
func (s *Searcher) SelDepth() int { return s.selDepth }

func (s *Searcher) stopped() bool {
	return s.stopFlag != nil && s.stopFlag.Load()
}

// SearchDepth runs one fixed-depth negamax search from pos within [alpha,
// beta], returning the root's best move, its value, and the PV. It is the
// unit of work the iterative-deepening / aspiration-window loop (see
// iterative.go) calls once per (depth, window) pair; it does not itself
// loop over depths.
func (s *Searcher) SearchDepth(pos *board.Position, depth, alpha, beta int) (board.Move, int, []board.Move) {
	s.pos = pos
	s.pv.clear(0)

	value := s.negamax(depth, 0, alpha, beta, nodePV)

	var best board.Move
	if s.pv.length[0] > 0 {
		best = s.pv.moves[0][0]
	}
	return best, value, s.pv.line(0)
}

// pushHash records the hash of the position about to be searched at ply,
// for repetition detection.
func (s *Searcher) pushHash(ply int, hash uint64) { s.played[ply] = hash }

// isRepetitionOrFifty reports a draw if the current
// position's hash recurs (including the search root's own ancestry) within
// the half-move window, or the 50-move counter has expired with at least
// one legal reply available.
func (s *Searcher) isRepetitionOrFifty(ply int) bool {
	hmc := s.pos.HalfMoveClock
	if hmc >= 100 && s.pos.HasLegalMoves() {
		return true
	}
	if hmc < 4 {
		return false
	}
	hash := s.pos.Hash
	occurrences := 0
	limit := hmc
	// Search the in-search stack first, then the pre-root game history.
	for p := ply - 2; p >= 0 && limit > 0; p -= 2 {
		if s.played[p] == hash {
			occurrences++
			if occurrences >= 1 {
				return true
			}
		}
		limit -= 2
	}
	for i := len(s.rootHist) - 1; i >= 0 && limit > 0; i -= 2 {
		if s.rootHist[i] == hash {
			return true
		}
		limit -= 2
	}
	return false
}

// negamax is the recursive principal-variation search. All windows are in the side-to-move
// frame (negamax convention).
func (s *Searcher) negamax(depth, ply int, alpha, beta int, nt nodeType) int {
	s.pv.clear(ply)
	if ply > s.selDepth {
		s.selDepth = ply
	}

	if s.nodes&2047 == 0 && s.stopped() {
		return 0
	}
	s.nodes++

	isPV := nt == nodePV
	f := &s.stack[ply]
	*f = stackFrame{ply: ply, alpha: alpha, beta: beta, alpha0: alpha, beta0: beta, depth: depth, node: nt, bestMove: board.NoMove}
	if ply > 0 {
		f.prevMove = s.stack[ply-1].currentMove
	}

	s.pushHash(ply, s.pos.Hash)

	// Step 1: repetition / 50-move.
	if ply > 0 && s.isRepetitionOrFifty(ply) {
		return 0
	}
	if ply >= MaxPly-1 {
		return Evaluate(s.pos)
	}

	// Step 2: mate distance pruning.
	alpha = maxInt(alpha, -MateScore+ply)
	beta = minInt(beta, MateScore-ply)
	if alpha >= beta {
		f.cutoff = cutoffMateDistance
		return alpha
	}

	inCheck := s.pos.InCheck()
	f.inCheck = inCheck

	// Step 3: bitbase probe.
	if s.bitbase.MaxPieces() > 0 {
		if total := nonKingPieceCount(s.pos); total <= s.bitbase.MaxPieces() && total <= bitbaseMaxPieces {
			if v, ok := s.bitbase.Probe(s.pos, ply); ok {
				f.cutoff = cutoffBitbase
				return v
			}
		}
	}

	// Step 4: TT probe.
	var ttMove board.Move
	ttEntry, found := s.tt.Probe(s.pos.Hash)
	staticEval := 0
	haveStaticEval := false
	if found {
		ttMove = ttEntry.Move
		staticEval = int(ttEntry.StaticEval)
		haveStaticEval = true
		if depth <= 0 {
			// handled by quiescence below; nothing to cut here.
		} else if int(ttEntry.Depth) >= depth && !isPV {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				f.cutoff = cutoffTT
				return score
			case TTLowerBound:
				if score > alpha {
					alpha = score
				}
			case TTUpperBound:
				if score < beta {
					beta = score
				}
			}
			if alpha >= beta {
				f.cutoff = cutoffTT
				return score
			}
		}
	}
	f.ttMove = ttMove

	if depth <= 0 {
		return s.quiescence(ply, alpha, beta)
	}

	// Step 5: static eval + "improving".
	if inCheck {
		staticEval = -Infinity
	} else if !haveStaticEval {
		staticEval = s.evaluate()
	}
	f.staticEval = staticEval
	f.improving = !inCheck && ply >= 2 && !s.stack[ply-2].inCheck && staticEval > s.stack[ply-2].staticEval

	// Step 6: futility (reverse futility / static null move).
	if !isPV && !inCheck && depth <= futilityMaxDepth {
		margin := futilityMargin*(depth+1) - futilityMargin*boolInt(f.improving)
		if staticEval-margin >= beta {
			f.cutoff = cutoffFutility
			return staticEval
		}
	}

	// Step 7: null-move pruning.
	if !isPV && !inCheck && depth > nullMoveMinDepth && beta < MateScore-MaxPly &&
		s.pos.HasNonPawnMaterial() && (ply == 0 || !s.stack[ply-1].isNullMove()) {
		undo := s.pos.MakeNullMove()
		s.stack[ply].nullApplied = true
		r := nullMoveReduction
		score := -s.negamax(depth-1-r, ply+1, -beta, -beta+1, nodeNull)
		s.pos.UnmakeNullMove(undo)
		s.stack[ply].nullApplied = false
		if s.stopped() {
			return 0
		}
		if score >= beta {
			if score >= MateScore-MaxPly {
				score = beta
			}
			if depth-1-r <= 0 || depth < 12 {
				f.cutoff = cutoffNullMove
				return score
			}
			// Verification search at reduced depth without the null move.
			verify := s.negamax(depth-1-r, ply, beta-1, beta, nodeNull)
			if verify >= beta {
				f.cutoff = cutoffNullMove
				return score
			}
		}
	}

	// Step 8: internal iterative deepening.
	if ttMove == board.NoMove && isPV && depth >= iidMinDepth {
		s.negamax(depth-2, ply, alpha, beta, nodePV)
		if s.pv.length[ply] > ply {
			ttMove = s.pv.moves[ply][ply]
			f.ttMove = ttMove
		}
		s.pv.clear(ply)
	}

	killer1, killer2 := s.killers.Get(ply)
	provider := NewMoveProvider(s.pos, ttMove, killer1, killer2, f.prevMove, s.history)

	bestValue := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound
	movesTried := 0
	legalMoves := 0

	// Singular extension precondition: the TT move's own stored bound
	// suggests it's much better than anything else found so far.
	singularCandidate := board.NoMove
	if ttMove != board.NoMove && found && depth >= 8 && int(ttEntry.Depth) >= depth-3 &&
		ttEntry.Flag != TTUpperBound && int(ttEntry.Score) < MateScore-MaxPly {
		singularCandidate = ttMove
	}

	for {
		move := provider.Next()
		if move == board.NoMove {
			break
		}

		isCapture := move.IsCapture(s.pos)
		givesCheck := moveGivesCheck(s.pos, move)

		extension := 0
		if givesCheck {
			extension = 1
		} else if isPawnPushToPenultimate(s.pos, move) {
			extension = 1
		}
		if move == singularCandidate && f.doubleExtensions < maxDoubleExtension {
			margin := singularMargin * depth
			reducedBeta := int(ttEntry.Score) - margin
			if s.singularSiblingFails(ply, depth, reducedBeta, singularCandidate) {
				extension = maxInt(extension, 1)
				f.doubleExtensions++
			}
		}

		s.undoStack[ply] = s.pos.MakeMove(move)
		if !s.undoStack[ply].Valid {
			continue
		}
		f.currentMove = move
		legalMoves++
		movesTried++

		newDepth := depth - 1 + extension

		reduction := 0
		if extension == 0 && !isCapture && !givesCheck && depth >= lmrMinDepth && movesTried > lmrMinMoveIndex {
			reduction = lmrReduction(depth, movesTried)
			if isPV {
				reduction--
			}
			if f.improving {
				reduction--
			}
			reduction = clamp(reduction, 0, newDepth-1)
		}

		var score int
		if movesTried == 1 {
			score = -s.negamax(newDepth, ply+1, -beta, -alpha, childNodeType(isPV))
		} else {
			childDepth := newDepth - reduction
			score = -s.negamax(childDepth, ply+1, -alpha-1, -alpha, nodeNull)
			if score > alpha && (reduction > 0 || isPV) {
				score = -s.negamax(newDepth, ply+1, -beta, -alpha, childNodeType(isPV))
			}
		}

		s.pos.UnmakeMove(move, s.undoStack[ply])

		if s.stopped() {
			return 0
		}

		if score > bestValue {
			bestValue = score
			bestMove = move
			if score > alpha {
				alpha = score
				flag = TTExact
				s.pv.update(ply, move)
			}
		}

		if score >= beta {
			flag = TTLowerBound
			if !isCapture {
				s.killers.Update(ply, move)
				s.history.UpdateOnCutoff(s.pos, move, provider.TriedQuiets(), depth)
			}
			bestValue = score
			bestMove = move
			break
		}
	}

	// Step 10: terminal detection.
	if legalMoves == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	// Step 11: store to TT.
	s.tt.Store(s.pos.Hash, depth, AdjustScoreToTT(bestValue, ply), staticEval, flag, bestMove, isPV, false)
	f.bestValue = bestValue
	f.bestMove = bestMove
	return bestValue
}

// singularSiblingFails runs a shallow, reduced-depth, excluded-move search
// to see whether every alternative to singularCandidate falls short of
// reducedBeta — the signal that candidate deserves a singular extension.
func (s *Searcher) singularSiblingFails(ply, depth, reducedBeta int, exclude board.Move) bool {
	killer1, killer2 := s.killers.Get(ply)
	provider := NewMoveProvider(s.pos, board.NoMove, killer1, killer2, s.stack[ply].prevMove, s.history)
	reducedDepth := depth/2 - 1
	if reducedDepth < 1 {
		reducedDepth = 1
	}
	tried := 0
	for tried < 6 {
		move := provider.Next()
		if move == board.NoMove {
			break
		}
		if move == exclude {
			continue
		}
		undo := s.pos.MakeMove(move)
		if !undo.Valid {
			continue
		}
		s.stack[ply].currentMove = move
		tried++
		score := -s.negamax(reducedDepth, ply+1, -reducedBeta-1, -reducedBeta, nodeNull)
		s.pos.UnmakeMove(move, undo)
		if s.stopped() {
			return false
		}
		if score >= reducedBeta {
			return false
		}
	}
	return tried > 0
}

func (s *Searcher) evaluate() int {
	if s.pawns != nil {
		return EvaluateWithPawnTable(s.pos, s.pawns)
	}
	return Evaluate(s.pos)
}

func childNodeType(parentIsPV bool) nodeType {
	if parentIsPV {
		return nodePV
	}
	return nodeNull
}

// lmrReduction implements the formula-driven late-move-reduction table:
// proportional to log(depth)*log(movesTried) (see DESIGN.md, open
// question 1).
func lmrReduction(depth, moveIndex int) int {
	r := int(math.Log(float64(depth)) * math.Log(float64(moveIndex)) * 0.6)
	if r < 0 {
		r = 0
	}
	return r
}

func moveGivesCheck(pos *board.Position, m board.Move) bool {
	undo := pos.MakeMove(m)
	if !undo.Valid {
		return false
	}
	check := pos.InCheck()
	pos.UnmakeMove(m, undo)
	return check
}

func isPawnPushToPenultimate(pos *board.Position, m board.Move) bool {
	piece := pos.PieceAt(m.From())
	if piece == board.NoPiece || piece.Type() != board.Pawn {
		return false
	}
	to := m.To()
	if piece.Color() == board.White {
		return to.Rank() == 6 // about to reach rank 7 (index 6)
	}
	return to.Rank() == 1 // about to reach rank 2 (index 1)
}

func nonKingPieceCount(pos *board.Position) int {
	total := 0
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt < board.King; pt++ {
			total += pos.Pieces[c][pt].PopCount()
		}
	}
	return total
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isNullMove reports whether this frame's search was entered via a null
// move (used to forbid two consecutive null moves).
func (f *stackFrame) isNullMove() bool { return f.nullApplied }

// GetPV returns the principal variation from the last SearchDepth call.
func (s *Searcher) GetPV() []board.Move { return s.pv.line(0) }
