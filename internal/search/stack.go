package search

import "github.com/finnhauge/gambit/internal/board"

// nodeType distinguishes a PV (full-window) node from a null-window
// (scout) node; LMR and the internal-iterative-deepening step both read it.
type nodeType uint8

const (
	nodePV nodeType = iota
	nodeNull
)

// cutoffReason records why a node returned early, purely for diagnostics —
// it has no effect on the search result.
type cutoffReason uint8

const (
	cutoffNone cutoffReason = iota
	cutoffTT
	cutoffNullMove
	cutoffFutility
	cutoffBeta
	cutoffMateDistance
	cutoffBitbase
)

// stackFrame is one ply's worth of search state. Frames are value-typed
// with no cross-ply pointers, held in a flat array indexed by ply on the
// Searcher — the recursive search never allocates a frame, it just indexes
// further into this array.
type stackFrame struct {
	ply    int
	alpha  int
	beta   int
	alpha0 int // window as received, before any local narrowing
	beta0  int

	depth int

	bestValue   int
	bestMove    board.Move
	prevMove    board.Move // the move that led to this node
	currentMove board.Move // the move this node is currently searching

	killer1, killer2 board.Move

	node       nodeType
	staticEval int
	improving  bool
	inCheck    bool
	ttMove     board.Move
	cutoff     cutoffReason

	doubleExtensions int
	nullApplied      bool
}
