package search

import "github.com/finnhauge/gambit/internal/board"

// Search-wide bounds. Scores are centipawns from the side-to-move's
// perspective; mate scores are folded into the top of the range so that
// "closer to mate" always compares as "more extreme".
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128
)

// pieceValues mirrors board.PieceValue but stays local so eval and ordering
// code can be tuned without touching the board package.
var pieceValues = [7]int{100, 320, 330, 500, 900, 20000, 0}

// PVLine is a flat, ply-indexed principal variation buffer. There are no
// cross-ply pointers: every search stack frame owns a fixed-size slice of
// this array, which keeps the recursive search allocation-free.
type PVLine struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

func (pv *PVLine) clear(ply int) {
	pv.length[ply] = ply
}

func (pv *PVLine) update(ply int, m board.Move) {
	pv.moves[ply][ply] = m
	for j := ply + 1; j < pv.length[ply+1]; j++ {
		pv.moves[ply][j] = pv.moves[ply+1][j]
	}
	pv.length[ply] = pv.length[ply+1]
}

func (pv *PVLine) line(ply int) []board.Move {
	out := make([]board.Move, 0, pv.length[ply]-ply)
	for i := ply; i < pv.length[ply]; i++ {
		out = append(out, pv.moves[ply][i])
	}
	return out
}

// SearchLimits describes the externally imposed stopping conditions for one
// call to search(). The protocol front-end (out of scope) is responsible
// for translating UCI "go" parameters into this struct.
type SearchLimits struct {
	Depth     int // 0 = unlimited
	Nodes     uint64
	MoveTime  int64 // milliseconds, fixed time for this move
	WhiteTime int64 // milliseconds remaining
	BlackTime int64
	WhiteInc  int64
	BlackInc  int64
	MovesToGo int
	Infinite  bool
	Ponder    bool
	MultiPV   int
}

// SearchInfo is emitted once per completed (or aborted) iteration, mirroring
// the UCI "info" line contract without depending on any protocol package.
type SearchInfo struct {
	Depth    int
	MultiPV  int
	Score    int
	Mate     bool
	Nodes    uint64
	NPS      uint64
	TimeMs   int64
	PV       []board.Move
	HashFull int
}

// RootMove tracks one candidate root move across iterations.
type RootMove struct {
	Move      board.Move
	Score     int
	PrevScore int
	Depth     int
	Nodes     uint64
	PV        []board.Move
	Excluded  bool
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
