package bitbase

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/finnhauge/gambit/internal/board"
	"github.com/finnhauge/gambit/internal/material"
)

// maxSweeps bounds the retrograde fixed-point iteration: the
// "this should never actually be reached" backstop.
const maxSweeps = 1024

// PositionBuilder places a Layout's pieces (plus the two kings) onto an
// otherwise empty board at the squares Decode produces, with stm to move,
// rejecting the occupancy (returning false) if it is illegal — most
// commonly because the side not on move is already in check.
type PositionBuilder func(stm board.Color, whiteKing, blackKing board.Square, squares []board.Square) (*board.Position, bool)

// Generator computes a signature's WDL bitbase via retrograde analysis: an
// initial pass marks immediate mates and stalemates, then repeated sweeps
// propagate "this side to move loses" backward through every position that
// can reach a known result, until a sweep changes nothing.
type Generator struct {
	layout  Layout
	build   PositionBuilder
	workers int

	// prereqs holds every smaller-material signature's already-generated
	// bitbase. A capture or promotion reply leaves g.layout's index space
	// entirely (it changes the material signature), so its value can only
	// come from here, not from states[] — see evaluateFromPrerequisite.
	prereqs *Registry
}

// NewGenerator creates a Generator for layout, using build to materialize
// a board.Position from each candidate index, and workers goroutines to
// evaluate sweeps in parallel (the only part of this module that is
// genuinely concurrent).
func NewGenerator(layout Layout, build PositionBuilder, workers int) *Generator {
	if workers < 1 {
		workers = 1
	}
	return &Generator{layout: layout, build: build, workers: workers}
}

// SetPrerequisites attaches the registry of already-generated,
// smaller-material bitbases that every legal capture or promotion must
// resolve against. Callers are expected to generate
// signatures in increasing material order and register each one here
// before generating the next; a signature whose captures lead somewhere
// not yet registered simply leaves those replies unresolved, which can
// stall convergence rather than silently mis-classify them.
func (g *Generator) SetPrerequisites(reg *Registry) {
	g.prereqs = reg
}

// sweepResult is one index's classification during a single sweep.
type sweepResult uint8

const (
	pending sweepResult = iota
	whiteWins
	blackWins
	drawn
)

// Generate runs the full retrograde computation and returns a fully
// resident Bitbase whose bit is set for every index whose position is a
// win for White with best play, whichever side the index puts on move.
// Positions still pending at the fixed point are unreachable wins for
// neither side, which flattens to the same bit as a draw.
func (g *Generator) Generate(ctx context.Context) (*Bitbase, error) {
	size := g.layout.Size()
	states := make([]sweepResult, size)

	if err := g.initialPass(ctx, states); err != nil {
		return nil, fmt.Errorf("bitbase: initial pass: %w", err)
	}

	for sweep := 0; sweep < maxSweeps; sweep++ {
		changed, err := g.propagationSweep(ctx, states)
		if err != nil {
			return nil, fmt.Errorf("bitbase: sweep %d: %w", sweep, err)
		}
		if !changed {
			break
		}
	}

	bb := NewInMemory(g.layout)
	for i := uint64(0); i < size; i++ {
		if states[i] == whiteWins {
			bb.SetBit(i, true)
		}
	}
	return bb, nil
}

// initialPass classifies every legal index by immediate checkmate or
// stalemate, leaving everything else pending for the sweeps to resolve.
func (g *Generator) initialPass(ctx context.Context, states []sweepResult) error {
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.workers)

	chunk := chunkSize(len(states), g.workers)
	for start := 0; start < len(states); start += chunk {
		start := start
		end := start + chunk
		if end > len(states) {
			end = len(states)
		}
		grp.Go(func() error {
			for i := start; i < end; i++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				stm, wk, bk, squares, ok := g.layout.Decode(uint64(i))
				if !ok {
					continue
				}
				pos, ok := g.build(stm, wk, bk, squares)
				if !ok {
					continue
				}
				states[i] = classifyTerminal(pos)
			}
			return nil
		})
	}
	return grp.Wait()
}

// classifyTerminal reports a position's immediate result if the side to
// move has no legal moves, and `pending` otherwise.
func classifyTerminal(pos *board.Position) sweepResult {
	if pos.GenerateLegalMoves().Len() > 0 {
		return pending
	}
	if !pos.InCheck() {
		return drawn
	}
	if pos.SideToMove == board.White {
		return blackWins
	}
	return whiteWins
}

// propagationSweep evaluates every still-pending index by generating its
// legal moves and reading each reply's already-known classification (see
// evaluateFromReplies): a win if any reply is already won for the side to
// move here, a loss if every reply is a known win for the opponent, a draw
// if every reply is known and at least one is drawn, deferring anything
// still ambiguous to a later sweep.
func (g *Generator) propagationSweep(ctx context.Context, states []sweepResult) (bool, error) {
	// Workers only read states and collect their resolutions locally; the
	// shared array is updated after the whole sweep under resolvedMu.
	// Each sweep therefore sees a consistent snapshot of the previous one,
	// at the cost of occasionally needing one more sweep to converge.
	type resolution struct {
		index  int
		result sweepResult
	}
	var resolvedMu sync.Mutex
	var resolved []resolution

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.workers)

	chunk := chunkSize(len(states), g.workers)
	for start := 0; start < len(states); start += chunk {
		start := start
		end := start + chunk
		if end > len(states) {
			end = len(states)
		}
		grp.Go(func() error {
			var local []resolution
			for i := start; i < end; i++ {
				if states[i] != pending {
					continue
				}
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				stm, wk, bk, squares, ok := g.layout.Decode(uint64(i))
				if !ok {
					continue
				}
				pos, ok := g.build(stm, wk, bk, squares)
				if !ok {
					continue
				}
				if result, ok := g.evaluateFromReplies(pos, states); ok {
					local = append(local, resolution{i, result})
				}
			}
			if len(local) > 0 {
				resolvedMu.Lock()
				resolved = append(resolved, local...)
				resolvedMu.Unlock()
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return false, err
	}

	for _, r := range resolved {
		states[r.index] = r.result
	}
	return len(resolved) > 0, nil
}

// evaluateFromReplies classifies pos from its legal replies' already-known
// states: if any reply is already a win for pos's side to move, pos is
// winning; if every reply is a known win for the opponent, pos is lost; if
// every reply is known, none wins for pos's side to move, and at least one
// is a known draw, pos is a draw; otherwise pos is not yet resolved this
// sweep.
func (g *Generator) evaluateFromReplies(pos *board.Position, states []sweepResult) (sweepResult, bool) {
	moves := pos.GenerateLegalMoves()
	sideToMove := pos.SideToMove
	opponent := sideToMove.Other()

	allRepliesKnown := true
	allRepliesAreOpponentWins := true
	anyReplyDrawn := false
	legalReplies := 0

	winFor := func(c board.Color, r sweepResult) bool {
		return (r == whiteWins && c == board.White) || (r == blackWins && c == board.Black)
	}

	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		materialChanging := m.IsCapture(pos) || m.IsPromotion()
		undo := pos.MakeMove(m)
		if !undo.Valid {
			continue
		}
		legalReplies++

		var replyResult sweepResult
		known := false
		if materialChanging {
			replyResult, known = g.evaluateFromPrerequisite(pos)
		} else if idx, ok := indexOf(g.layout, pos); ok && int(idx) < len(states) {
			replyResult = states[idx]
			known = replyResult != pending
		}
		pos.UnmakeMove(m, undo)

		if !known {
			allRepliesKnown = false
			allRepliesAreOpponentWins = false
			continue
		}

		// replyResult classifies the position with opponent to move. If it
		// already favors sideToMove, sideToMove has just forced a loss on
		// the opponent by playing this move: an immediate win, regardless
		// of what any other move does.
		if winFor(sideToMove, replyResult) {
			if sideToMove == board.White {
				return whiteWins, true
			}
			return blackWins, true
		}
		if winFor(opponent, replyResult) {
			continue // this move is bad for sideToMove; keep checking others
		}
		allRepliesAreOpponentWins = false
		if replyResult == drawn {
			anyReplyDrawn = true
		}
	}

	if legalReplies == 0 {
		return pending, false // terminal positions are classified in the initial pass
	}
	if allRepliesKnown && allRepliesAreOpponentWins {
		if sideToMove == board.White {
			return blackWins, true
		}
		return whiteWins, true
	}
	if allRepliesKnown && anyReplyDrawn {
		return drawn, true
	}
	return pending, false
}

// evaluateFromPrerequisite classifies a position reached by a capture or
// promotion, which belongs to a strictly smaller material signature than
// g.layout and so can never appear in states[] ("look up the
// resulting (smaller-material) position in an already-available bitbase").
// Bare kings are a known draw without needing a registry entry; everything
// else is resolved through g.prereqs if that signature has been generated,
// or left unknown for this sweep otherwise.
func (g *Generator) evaluateFromPrerequisite(pos *board.Position) (sweepResult, bool) {
	sig := material.Compute(pos)
	if sig.TotalPieces() == 0 {
		return drawn, true
	}
	if g.prereqs == nil {
		return pending, false
	}
	result, err := g.prereqs.ProbeWDL(pos)
	if err != nil {
		return pending, false
	}
	switch result {
	case Win:
		return whiteWins, true
	case Loss:
		return blackWins, true
	case Draw:
		return drawn, true
	default:
		// DrawOrLoss: White provably doesn't win, but whether Black does
		// needs the swapped signature's bitbase; without it the reply
		// stays unresolved for this sweep.
		return pending, false
	}
}

func chunkSize(total, workers int) int {
	if workers <= 0 {
		workers = 1
	}
	c := (total + workers - 1) / workers
	if c < 1 {
		c = 1
	}
	return c
}

// DefaultPositionBuilder places kings and the remaining pieces from layout
// onto an otherwise empty board with stm to move, rejecting any coordinate
// collision and any occupancy where the side not on move is already in
// check. It builds through a FEN string and board.ParseFEN rather than
// poking at Position fields directly, so every derived field (Zobrist
// hash, checkers, occupancy) is computed by the same code path every other
// position in the engine goes through. It is the PositionBuilder every
// signature uses unless a test supplies its own.
func DefaultPositionBuilder(layout Layout) PositionBuilder {
	return func(stm board.Color, wk, bk board.Square, squares []board.Square) (*board.Position, bool) {
		if wk == bk {
			return nil, false
		}
		var grid [64]board.Piece
		for i := range grid {
			grid[i] = board.NoPiece
		}
		grid[wk] = board.WhiteKing
		grid[bk] = board.BlackKing
		for i, slot := range layout.Pieces {
			s := squares[i]
			if grid[s] != board.NoPiece {
				return nil, false
			}
			grid[s] = board.NewPiece(slot.Type, slot.Color)
		}

		fen := gridToFEN(grid) + " w - - 0 1"
		pos, err := board.ParseFEN(fen)
		if err != nil || pos.Validate() != nil {
			return nil, false
		}
		pos.SideToMove = stm.Other()
		pos.UpdateCheckers()
		waitingSideInCheck := pos.InCheck()
		pos.SideToMove = stm
		pos.UpdateCheckers()
		if waitingSideInCheck {
			return nil, false // the side not on move can't already be in check
		}
		return pos, true
	}
}

// gridToFEN renders a1-h8-indexed grid (index = rank*8+file) as a FEN
// piece-placement field.
func gridToFEN(grid [64]board.Piece) string {
	var b []byte
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			p := grid[rank*8+file]
			if p == board.NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				b = append(b, byte('0'+empty))
				empty = 0
			}
			ch := p.Type().Char()
			if p.Color() == board.White {
				ch = ch - 'a' + 'A'
			}
			b = append(b, ch)
		}
		if empty > 0 {
			b = append(b, byte('0'+empty))
		}
		if rank > 0 {
			b = append(b, '/')
		}
	}
	return string(b)
}
