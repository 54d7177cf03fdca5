package search

import "github.com/finnhauge/gambit/internal/board"

// seeValue mirrors pieceValues but clamped to int for the exchange ladder;
// kings are given an effectively infinite value so a king can never be the
// cheapest attacker offered up in an exchange.
var seeValue = [7]int{100, 320, 330, 500, 900, 20000, 0}

// LightSEE is a cheap heuristic: a capture is "losing" if the moving
// piece's value exceeds the captured piece's value AND the
// destination square is defended by an enemy pawn. It is used by the move
// provider to demote captures without running the full exchange ladder.
func LightSEE(pos *board.Position, m board.Move) bool {
	attacker := pos.PieceAt(m.From())
	if attacker == board.NoPiece {
		return false
	}
	var victimType board.PieceType
	if m.IsEnPassant() {
		victimType = board.Pawn
	} else {
		victim := pos.PieceAt(m.To())
		if victim == board.NoPiece {
			return false
		}
		victimType = victim.Type()
	}

	if seeValue[attacker.Type()] <= seeValue[victimType] {
		return false
	}

	// The squares a defending pawn could stand on to cover m.To() are the
	// squares a pawn of the ATTACKER's color on m.To() would attack.
	defender := attacker.Color().Other()
	return board.PawnAttacks(m.To(), attacker.Color())&pos.Pieces[defender][board.Pawn] != 0
}

// FullSEE performs a static exchange evaluation on the destination square of
// m: it iterates attackers of each color from cheapest to most expensive,
// removing each attacker from the occupancy so that sliders behind it are
// revealed, and returns the material gain assuming both sides stand pat
// optimally at every step (the classic minimax-over-a-single-array
// formulation).
func FullSEE(pos *board.Position, m board.Move) int {
	from, to := m.From(), m.To()
	attacker := pos.PieceAt(from)
	if attacker == board.NoPiece {
		return 0
	}

	var gain [32]int
	depth := 0

	var captured board.PieceType
	if m.IsEnPassant() {
		captured = board.Pawn
	} else if v := pos.PieceAt(to); v != board.NoPiece {
		captured = v.Type()
	} else {
		captured = board.NoPieceType
	}
	if captured == board.NoPieceType {
		gain[0] = 0
	} else {
		gain[0] = seeValue[captured]
	}

	occupied := pos.AllOccupied &^ board.SquareBB(from)
	side := attacker.Color().Other()
	movingValue := seeValue[attacker.Type()]

	attackers := pos.AttackersTo(to, occupied) & occupied

	for {
		ours := attackers & pos.Occupied[side] & occupied
		if ours == 0 {
			break
		}
		sq, pt, ok := cheapestAttacker(pos, ours)
		if !ok {
			break
		}
		depth++
		gain[depth] = movingValue - gain[depth-1]
		if maxInt(-gain[depth-1], gain[depth]) < 0 {
			// Even an unopposed recapture can't help this side; stop early.
			break
		}
		occupied &^= board.SquareBB(sq)
		movingValue = seeValue[pt]
		side = side.Other()

		// Recompute attackers on the destination square now that sq's
		// piece (and anything it was blocking) has been removed.
		attackers = pos.AttackersTo(to, occupied) & occupied
	}

	for depth > 0 {
		gain[depth-1] = -maxInt(-gain[depth-1], gain[depth])
		depth--
	}
	return gain[0]
}

// cheapestAttacker finds the least valuable piece among a bitboard of
// candidate attackers.
func cheapestAttacker(pos *board.Position, candidates board.Bitboard) (board.Square, board.PieceType, bool) {
	best := board.NoSquare
	bestType := board.NoPieceType
	bestValue := 1 << 30
	bb := candidates
	for bb != 0 {
		sq := bb.PopLSB()
		p := pos.PieceAt(sq)
		if p == board.NoPiece {
			continue
		}
		if seeValue[p.Type()] < bestValue {
			bestValue = seeValue[p.Type()]
			best = sq
			bestType = p.Type()
		}
	}
	if best == board.NoSquare {
		return best, bestType, false
	}
	return best, bestType, true
}

// IsLosingCapture reports whether FullSEE judges the exchange on m's
// destination square to lose material overall.
func IsLosingCapture(pos *board.Position, m board.Move) bool {
	return FullSEE(pos, m) < 0
}
