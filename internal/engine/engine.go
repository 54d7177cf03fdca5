// Package engine packages the search stack, transposition table, history,
// and bitbase registry into one owned, injectable object: none of the tables
// a search writes to is a package-level var, so a process can run more than one Engine
// (e.g. one per test case) without them fighting over shared tables. It
// wraps a single cooperative search.Searcher rather than a parallel worker
// pool — only the bitbase generator runs multiple goroutines.
package engine

import (
	"sync/atomic"
	"time"

	"github.com/finnhauge/gambit/internal/bitbase"
	"github.com/finnhauge/gambit/internal/board"
	"github.com/finnhauge/gambit/internal/search"
)

// SearchInfo and SearchLimits are re-exported so callers (the UCI front-end,
// tests) depend only on this package and not on internal/search directly.
type SearchInfo = search.SearchInfo
type SearchLimits = search.SearchLimits

// Engine owns every resource a search needs that must outlive a single
// call: the transposition table, history/killer tables, pawn hash, and
// bitbase registry. It is safe to keep across many searches within one
// game, and Clear resets it for a new one.
type Engine struct {
	tt      *search.TranspositionTable
	pawns   *search.PawnTable
	history *search.HistoryTable
	killers *search.KillerTable
	bb      *bitbase.Registry
	clock   *search.ClockManager
	s       *search.Searcher

	stopFlag  atomic.Bool
	searching atomic.Bool

	// OnInfo, if set, receives one SearchInfo per completed iteration (and
	// per Multi-PV line), mirroring the UCI "info" line contract.
	OnInfo func(SearchInfo)
}

// defaultBitbaseCacheClusters sizes the cluster cache when no explicit
// cache budget has been configured via SetBitbaseCache.
const defaultBitbaseCacheClusters = 256

// NewEngine creates an Engine with a hashMB-sized transposition table, a
// 4MB pawn hash, and an empty bitbase registry (load one with
// SetBitbasePath before it can answer small-material probes).
func NewEngine(hashMB int) *Engine {
	bb := bitbase.NewRegistry(defaultBitbaseCacheClusters, 0)
	e := &Engine{
		tt:      search.NewTranspositionTable(hashMB),
		pawns:   search.NewPawnTable(4),
		history: search.NewHistoryTable(),
		killers: search.NewKillerTable(),
		bb:      bb,
		clock:   search.NewClockManager(),
	}
	e.s = search.NewSearcher(e.tt, e.pawns, e.history, e.killers, bb)
	e.s.SetStopFlag(&e.stopFlag)
	return e
}

// Clear drops the transposition table and history/killer state so the
// next search starts with no memory of the previous game. The bitbase
// registry is left alone — loaded bitbases are immutable, process-wide
// knowledge.
func (e *Engine) Clear() {
	e.tt.Clear()
	e.pawns.Clear()
	e.history.Clear()
	e.killers.Clear()
}

// Resize replaces the transposition table with one sized for hashMB,
// discarding all existing entries (the "Hash" set_option). It is a no-op,
// reported via the returned bool, while a search is in progress: the
// caller is expected to serialize "setoption"/"go" per the UCI protocol,
// but Resize refuses to swap the Searcher's tables out from under a
// running search rather than relying on that alone.
func (e *Engine) Resize(hashMB int) bool {
	if e.searching.Load() {
		return false
	}
	e.tt = search.NewTranspositionTable(hashMB)
	e.s = search.NewSearcher(e.tt, e.pawns, e.history, e.killers, e.bb)
	e.s.SetStopFlag(&e.stopFlag)
	return true
}

// SetBitbasePath loads every "*.gbb" file in dir into the registry (the
// "BitbasePath" set_option). A missing directory is not fatal — the
// registry simply answers Unknown for every signature.
func (e *Engine) SetBitbasePath(dir string) error {
	return e.bb.LoadDirectory(dir)
}

// SetPositionHistory records the Zobrist hashes of positions reached
// before the search root, for repetition detection across the game
// boundary.
func (e *Engine) SetPositionHistory(hashes []uint64) {
	e.s.SetPositionHistory(hashes)
}

// Stop requests that the in-progress search return as soon as it next
// polls the stop flag.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
}

// HashFull reports the transposition table's fill-rate statistic in
// permille, for the UCI "hashfull" info field.
func (e *Engine) HashFull() int { return e.tt.HashFull() }

// SearchWithLimits runs iterative deepening on pos under limits and a
// clock manager derived from them, invoking OnInfo once per completed
// iteration. It returns the best move found by the last fully completed
// iteration (a partial iteration never replaces a completed one) plus the
// expected reply from that iteration's PV, for the front-end's
// "bestmove ... ponder ..." line.
func (e *Engine) SearchWithLimits(pos *board.Position, limits SearchLimits) (best, ponder board.Move) {
	e.stopFlag.Store(false)
	e.searching.Store(true)
	defer e.searching.Store(false)

	switch {
	case limits.Ponder:
		e.clock.SetMode(search.ClockPonder)
	case limits.Infinite:
		e.clock.SetMode(search.ClockAnalyze)
	default:
		e.clock.SetMode(search.ClockSearch)
	}
	e.clock.Init(clockSetting(pos, limits), movesPlayed(pos))

	roots := e.s.IterativeDeepen(pos, limits, e.clock, func(info SearchInfo) {
		if e.OnInfo != nil {
			e.OnInfo(info)
		}
	})
	e.tt.NewSearch()

	if len(roots) == 0 {
		return board.NoMove, board.NoMove
	}
	if len(roots[0].PV) > 1 {
		ponder = roots[0].PV[1]
	}
	return roots[0].Move, ponder
}

// PonderHit switches a pondering search into a normally clocked one,
// keeping the time already spent on the pondered line.
func (e *Engine) PonderHit() {
	e.clock.PonderHit()
}

// clockSetting translates SearchLimits (already the protocol front-end's
// translation of UCI "go" parameters, per the SearchLimits doc comment)
// into the ClockManager's ClockSetting.
func clockSetting(pos *board.Position, limits SearchLimits) search.ClockSetting {
	cs := search.ClockSetting{MovesToGo: limits.MovesToGo, Infinite: limits.Infinite}
	if limits.MoveTime > 0 {
		cs.MoveTime = msToDuration(limits.MoveTime)
		return cs
	}
	if pos.SideToMove == board.White {
		cs.TimeLeft = msToDuration(limits.WhiteTime)
		cs.Increment = msToDuration(limits.WhiteInc)
	} else {
		cs.TimeLeft = msToDuration(limits.BlackTime)
		cs.Increment = msToDuration(limits.BlackInc)
	}
	return cs
}

func msToDuration(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func movesPlayed(pos *board.Position) int {
	played := (pos.FullMoveNumber - 1) * 2
	if pos.SideToMove == board.Black {
		played++
	}
	if played < 0 {
		played = 0
	}
	return played
}

// Perft counts leaf nodes at depth from pos, for the "perft" debug command
// and move-generator correctness tests.
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	return perft(pos, depth)
}

func perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}
	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}
	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := pos.MakeMove(m)
		nodes += perft(pos, depth-1)
		pos.UnmakeMove(m, undo)
	}
	return nodes
}
