package search

import "github.com/finnhauge/gambit/internal/board"

// providerStage enumerates the staged pull order. Stages are visited
// strictly in this order; each stage is skipped if it has nothing left to
// offer.
type providerStage int

const (
	stageTT providerStage = iota
	stageGoodCaptures
	stageKiller1
	stageKiller2
	stageQuiets
	stageLosingCaptures
	stageDone
)

type weightedMove struct {
	move   board.Move
	weight int
}

// MoveProvider is a staged, lazy move generator: next() returns moves in
// decreasing expected quality and never repeats a move within one node.
// It is stateful and single-use — a fresh provider is built per search-stack
// frame via NewMoveProvider.
type MoveProvider struct {
	pos *board.Position

	ttMove    board.Move
	killer1   board.Move
	killer2   board.Move
	prevMove  board.Move
	history   *HistoryTable

	good   []weightedMove
	losing []weightedMove
	quiets []weightedMove

	goodIdx   int
	losingIdx int
	quietIdx  int
	stage     providerStage

	ttEmitted      bool
	killer1Emitted bool
	killer2Emitted bool

	// emitted tracks every move already returned so a later stage can't
	// accidentally hand back a killer or the TT move a second time.
	emitted map[board.Move]bool
}

// NewMoveProvider builds a provider over every legal move in pos, staged by
// expected quality. prevMove is the move that led to pos, used for the
// recapture bonus in capture weighting.
func NewMoveProvider(pos *board.Position, ttMove, killer1, killer2, prevMove board.Move, history *HistoryTable) *MoveProvider {
	mp := &MoveProvider{
		pos:      pos,
		ttMove:   ttMove,
		killer1:  killer1,
		killer2:  killer2,
		prevMove: prevMove,
		history:  history,
		emitted:  make(map[board.Move]bool, 8),
	}
	mp.classify(pos.GenerateLegalMoves())
	return mp
}

// NewCaptureProvider builds a provider over only captures (and, optionally,
// promotions), for quiescence's non-evasion mode. No killer/quiet stages
// exist in this mode; losing captures still come last.
func NewCaptureProvider(pos *board.Position, prevMove board.Move) *MoveProvider {
	mp := &MoveProvider{
		pos:      pos,
		ttMove:   board.NoMove,
		killer1:  board.NoMove,
		killer2:  board.NoMove,
		prevMove: prevMove,
		emitted:  make(map[board.Move]bool, 8),
	}
	mp.classifyCapturesOnly(pos.GenerateCaptures())
	return mp
}

func (mp *MoveProvider) classify(moves *board.MoveList) {
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m == mp.ttMove {
			continue // emitted separately in stage 1
		}
		if m.IsCapture(mp.pos) {
			w := captureWeight(mp.pos, m, mp.prevMove)
			if LightSEE(mp.pos, m) {
				mp.losing = append(mp.losing, weightedMove{m, w})
			} else {
				mp.good = append(mp.good, weightedMove{m, w})
			}
			continue
		}
		if m == mp.killer1 || m == mp.killer2 {
			continue // emitted separately in stages 3/4
		}
		mp.quiets = append(mp.quiets, weightedMove{m, mp.history.Score(mp.pos, m)})
	}
	sortDescending(mp.good)
	sortDescending(mp.losing)
	sortDescending(mp.quiets)
}

func (mp *MoveProvider) classifyCapturesOnly(moves *board.MoveList) {
	mp.stage = stageGoodCaptures // skip the TT/killer/quiet stages entirely
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		w := captureWeight(mp.pos, m, mp.prevMove)
		if LightSEE(mp.pos, m) {
			mp.losing = append(mp.losing, weightedMove{m, w})
		} else {
			mp.good = append(mp.good, weightedMove{m, w})
		}
	}
	sortDescending(mp.good)
	sortDescending(mp.losing)
}

func sortDescending(ms []weightedMove) {
	// Insertion sort: move lists are small (bounded by roughly 200 legal
	// moves in any chess position), so this is both simple and fast in
	// practice.
	for i := 1; i < len(ms); i++ {
		v := ms[i]
		j := i - 1
		for j >= 0 && ms[j].weight < v.weight {
			ms[j+1] = ms[j]
			j--
		}
		ms[j+1] = v
	}
}

// captureWeight weighs a capture by the value of the captured piece, plus 10
// if the move recaptures on the destination square of the previous ply's
// move.
func captureWeight(pos *board.Position, m, prevMove board.Move) int {
	var victimType board.PieceType
	if m.IsEnPassant() {
		victimType = board.Pawn
	} else {
		victim := pos.PieceAt(m.To())
		if victim == board.NoPiece {
			return 0
		}
		victimType = victim.Type()
	}
	w := pieceValues[victimType]
	if prevMove != board.NoMove && prevMove.To() == m.To() {
		w += 10
	}
	return w
}

// Next returns the next move in decreasing expected quality, or NoMove once
// every move has been emitted. It never returns the same move twice.
func (mp *MoveProvider) Next() board.Move {
	for {
		switch mp.stage {
		case stageTT:
			mp.stage = stageGoodCaptures
			// Late verification: a TT move may come from a colliding hash
			// and encode a move that is illegal here.
			if mp.ttMove != board.NoMove && !mp.emitted[mp.ttMove] && mp.pos.IsLegal(mp.ttMove) {
				mp.emitted[mp.ttMove] = true
				return mp.ttMove
			}
		case stageGoodCaptures:
			if mp.goodIdx < len(mp.good) {
				m := mp.good[mp.goodIdx].move
				mp.goodIdx++
				if mp.emitted[m] {
					continue
				}
				mp.emitted[m] = true
				return m
			}
			mp.stage = stageKiller1
		case stageKiller1:
			mp.stage = stageKiller2
			if mp.killer1 != board.NoMove && !mp.emitted[mp.killer1] && mp.pos.IsLegal(mp.killer1) {
				mp.emitted[mp.killer1] = true
				mp.killer1Emitted = true
				return mp.killer1
			}
		case stageKiller2:
			mp.stage = stageQuiets
			if mp.killer2 != board.NoMove && !mp.emitted[mp.killer2] && mp.pos.IsLegal(mp.killer2) {
				mp.emitted[mp.killer2] = true
				mp.killer2Emitted = true
				return mp.killer2
			}
		case stageQuiets:
			if mp.quietIdx < len(mp.quiets) {
				m := mp.quiets[mp.quietIdx].move
				mp.quietIdx++
				if mp.emitted[m] {
					continue
				}
				mp.emitted[m] = true
				return m
			}
			mp.stage = stageLosingCaptures
		case stageLosingCaptures:
			if mp.losingIdx < len(mp.losing) {
				m := mp.losing[mp.losingIdx].move
				mp.losingIdx++
				if mp.emitted[m] {
					continue
				}
				mp.emitted[m] = true
				return m
			}
			mp.stage = stageDone
		case stageDone:
			return board.NoMove
		}
	}
}

// TriedQuiets returns every quiet move emitted so far this node, in emission
// order — used to build the history-malus list on a cutoff.
func (mp *MoveProvider) TriedQuiets() []board.Move {
	out := make([]board.Move, 0, mp.quietIdx+2)
	if mp.killer1Emitted {
		out = append(out, mp.killer1)
	}
	if mp.killer2Emitted {
		out = append(out, mp.killer2)
	}
	for i := 0; i < mp.quietIdx; i++ {
		out = append(out, mp.quiets[i].move)
	}
	return out
}
