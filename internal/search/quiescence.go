package search

import "github.com/finnhauge/gambit/internal/board"

// deltaMargin is added to a capture's material gain before comparing
// against alpha in delta pruning — a small safety margin so an
// otherwise-winning tactical shot isn't pruned purely on static material.
const deltaMargin = 200

// quiescence searches only captures (and, when in check,
// every evasion) until the position is "quiet", bounding the horizon
// effect at the end of the main search's depth-0 frontier.
func (s *Searcher) quiescence(ply, alpha, beta int) int {
	s.pv.length[ply] = ply
	if ply > s.selDepth {
		s.selDepth = ply
	}
	s.nodes++

	if ply >= MaxPly-1 {
		return s.evaluate()
	}

	inCheck := s.pos.InCheck()

	ttEntry, found := s.tt.Probe(s.pos.Hash)
	if found {
		score := AdjustScoreFromTT(int(ttEntry.Score), ply)
		switch ttEntry.Flag {
		case TTExact:
			return score
		case TTLowerBound:
			if score >= beta {
				return score
			}
		case TTUpperBound:
			if score <= alpha {
				return score
			}
		}
	}

	var standPat int
	if inCheck {
		standPat = -Infinity
	} else if found {
		standPat = int(ttEntry.StaticEval)
	} else {
		standPat = s.evaluate()
	}

	if !inCheck {
		if standPat >= beta {
			return standPat
		}
		if standPat > alpha {
			alpha = standPat
		}
	}

	var provider *MoveProvider
	if inCheck {
		// In check: every legal reply is a candidate evasion, not only
		// captures, since the side to move may have nothing else.
		provider = NewMoveProvider(s.pos, board.NoMove, board.NoMove, board.NoMove, board.NoMove, s.history)
	} else {
		provider = NewCaptureProvider(s.pos, board.NoMove)
	}

	bestValue := standPat
	legalMoves := 0

	for {
		move := provider.Next()
		if move == board.NoMove {
			break
		}

		isCapture := move.IsCapture(s.pos)

		if !inCheck {
			if isCapture && IsLosingCapture(s.pos, move) {
				continue
			}
			if isCapture {
				victim := s.pos.PieceAt(move.To())
				gain := 0
				if victim != board.NoPiece {
					gain = pieceValues[victim.Type()]
				}
				if promo := move.Promotion(); promo != board.NoPieceType {
					gain += pieceValues[promo] - pieceValues[board.Pawn]
				}
				if standPat+gain+deltaMargin < alpha {
					continue
				}
			}
		}

		undo := s.pos.MakeMove(move)
		if !undo.Valid {
			continue
		}
		legalMoves++

		score := -s.quiescence(ply+1, -beta, -alpha)
		s.pos.UnmakeMove(move, undo)

		if s.stopped() {
			return 0
		}

		if score > bestValue {
			bestValue = score
			if score > alpha {
				alpha = score
				s.pv.update(ply, move)
			}
		}
		if score >= beta {
			return score
		}
	}

	if inCheck && legalMoves == 0 {
		return -MateScore + ply
	}

	return bestValue
}
