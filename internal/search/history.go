package search

import "github.com/finnhauge/gambit/internal/board"

const historyClamp = 1 << 30 // saturation point before halving all entries

// HistoryTable is a butterfly history: a (moving-piece, destination-square)
// -> signed-integer map shared across the whole search, used to order quiet
// moves once the tactical stages of the move provider are exhausted.
type HistoryTable struct {
	scores [12][64]int
}

// NewHistoryTable creates an empty butterfly table.
func NewHistoryTable() *HistoryTable {
	return &HistoryTable{}
}

// Score returns the current history score for a quiet move.
func (h *HistoryTable) Score(pos *board.Position, m board.Move) int {
	p := pos.PieceAt(m.From())
	if p == board.NoPiece {
		return 0
	}
	return h.scores[p][m.To()]
}

// bonus implements the (d+1)^2/16 update magnitude.
func bonus(depth int) int {
	d := depth + 1
	return (d * d) / 16
}

// UpdateOnCutoff rewards the cutting quiet move with bonus(depth) and
// penalizes up to seven earlier quiets tried (and rejected) at this node by
// the same amount. When any entry saturates at +/- historyClamp, every
// entry in the table is halved, preserving the relative ordering.
func (h *HistoryTable) UpdateOnCutoff(pos *board.Position, cutting board.Move, tried []board.Move, depth int) {
	b := bonus(depth)
	h.add(pos, cutting, b)

	penalized := 0
	for i := len(tried) - 1; i >= 0 && penalized < 7; i-- {
		if tried[i] == cutting {
			continue
		}
		h.add(pos, tried[i], -b)
		penalized++
	}
}

func (h *HistoryTable) add(pos *board.Position, m board.Move, delta int) {
	p := pos.PieceAt(m.From())
	if p == board.NoPiece {
		return
	}
	to := m.To()
	h.scores[p][to] += delta
	if h.scores[p][to] > historyClamp || h.scores[p][to] < -historyClamp {
		h.halveAll()
	}
}

func (h *HistoryTable) halveAll() {
	for p := range h.scores {
		for sq := range h.scores[p] {
			h.scores[p][sq] /= 2
		}
	}
}

// DecayBetweenIterations halves every entry. Called once per root depth so
// history built up at shallow depths doesn't dominate later iterations.
func (h *HistoryTable) DecayBetweenIterations() {
	h.halveAll()
}

// Clear zeroes the table for a brand-new search (new_game()).
func (h *HistoryTable) Clear() {
	h.scores = [12][64]int{}
}

// KillerTable holds the per-ply killer-move pair: quiet moves that produced
// a beta cutoff in a sibling node at the same ply.
type KillerTable struct {
	killers [MaxPly][2]board.Move
}

// NewKillerTable creates an empty killer table.
func NewKillerTable() *KillerTable {
	return &KillerTable{}
}

// Get returns the killer pair for a ply.
func (k *KillerTable) Get(ply int) (board.Move, board.Move) {
	if ply >= MaxPly {
		return board.NoMove, board.NoMove
	}
	return k.killers[ply][0], k.killers[ply][1]
}

// Update promotes m to killer 1, demoting the previous killer 1 to killer 2.
// A no-op if m is already killer 1.
func (k *KillerTable) Update(ply int, m board.Move) {
	if ply >= MaxPly || k.killers[ply][0] == m {
		return
	}
	k.killers[ply][1] = k.killers[ply][0]
	k.killers[ply][0] = m
}

// Clear resets all killer slots for a brand-new search.
func (k *KillerTable) Clear() {
	k.killers = [MaxPly][2]board.Move{}
}
