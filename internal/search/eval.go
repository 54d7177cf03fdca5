package search

import "github.com/finnhauge/gambit/internal/board"

// Static evaluation: the collaborator contract the search needs is a pure
// function returning a centipawn score from the side to move's
// perspective, symmetric under color swap. The terms kept here are
// deliberately modest — material, tapered piece-square tables, pawn
// structure (cached through the pawn hash table), mobility, and a couple
// of cheap piece terms. The search's quality comes from the tree, not
// from this function.

// Piece-square tables, white's perspective, a1 = index 0. Black mirrors
// vertically via Square.Mirror.
var pawnPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	2, 4, 4, -8, -8, 4, 4, 2,
	2, -2, -4, 2, 2, -4, -2, 2,
	0, 0, 0, 14, 14, 0, 0, 0,
	4, 4, 8, 18, 18, 8, 4, 4,
	8, 8, 16, 24, 24, 16, 8, 8,
	34, 34, 34, 34, 34, 34, 34, 34,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var knightPST = [64]int{
	-34, -24, -18, -18, -18, -18, -24, -34,
	-24, -12, 0, 2, 2, 0, -12, -24,
	-18, 2, 8, 10, 10, 8, 2, -18,
	-18, 4, 12, 16, 16, 12, 4, -18,
	-18, 2, 12, 16, 16, 12, 2, -18,
	-18, 4, 8, 12, 12, 8, 4, -18,
	-24, -12, 0, 4, 4, 0, -12, -24,
	-34, -24, -18, -18, -18, -18, -24, -34,
}

var bishopPST = [64]int{
	-14, -8, -8, -8, -8, -8, -8, -14,
	-8, 4, 0, 2, 2, 0, 4, -8,
	-8, 6, 6, 6, 6, 6, 6, -8,
	-8, 0, 6, 8, 8, 6, 0, -8,
	-8, 2, 6, 8, 8, 6, 2, -8,
	-8, 0, 4, 6, 6, 4, 0, -8,
	-8, 0, 0, 0, 0, 0, 0, -8,
	-14, -8, -8, -8, -8, -8, -8, -14,
}

var rookPST = [64]int{
	0, 0, 2, 4, 4, 2, 0, 0,
	-4, 0, 0, 0, 0, 0, 0, -4,
	-4, 0, 0, 0, 0, 0, 0, -4,
	-4, 0, 0, 0, 0, 0, 0, -4,
	-4, 0, 0, 0, 0, 0, 0, -4,
	-4, 0, 0, 0, 0, 0, 0, -4,
	4, 8, 8, 8, 8, 8, 8, 4,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var queenPST = [64]int{
	-16, -8, -8, -4, -4, -8, -8, -16,
	-8, 0, 2, 0, 0, 0, 0, -8,
	-8, 2, 2, 2, 2, 2, 0, -8,
	-4, 0, 2, 2, 2, 2, 0, -4,
	0, 0, 2, 2, 2, 2, 0, -4,
	-8, 2, 2, 2, 2, 2, 0, -8,
	-8, 0, 2, 0, 0, 0, 0, -8,
	-16, -8, -8, -4, -4, -8, -8, -16,
}

var kingMgPST = [64]int{
	16, 24, 8, 0, 0, 12, 26, 18,
	16, 16, 0, 0, 0, 0, 16, 16,
	-8, -16, -16, -16, -16, -16, -16, -8,
	-16, -24, -24, -32, -32, -24, -24, -16,
	-24, -32, -32, -40, -40, -32, -32, -24,
	-24, -32, -32, -40, -40, -32, -32, -24,
	-24, -32, -32, -40, -40, -32, -32, -24,
	-24, -32, -32, -40, -40, -32, -32, -24,
}

var kingEgPST = [64]int{
	-40, -28, -20, -16, -16, -20, -28, -40,
	-24, -12, -4, 0, 0, -4, -12, -24,
	-20, -4, 12, 16, 16, 12, -4, -20,
	-16, 0, 16, 24, 24, 16, 0, -16,
	-16, 0, 16, 24, 24, 16, 0, -16,
	-20, -4, 12, 16, 16, 12, -4, -20,
	-24, -12, -4, 0, 0, -4, -12, -24,
	-40, -28, -20, -16, -16, -20, -28, -40,
}

// passed pawn bonus by relative rank; the table peaks one step short of
// promotion because a pawn on the 8th is no longer a pawn.
var passedPawnBonus = [8]int{0, 8, 16, 32, 56, 96, 160, 0}

const (
	tempoBonus = 10

	doubledPawnMg  = 12
	doubledPawnEg  = 18
	isolatedPawnMg = 16
	isolatedPawnEg = 20

	bishopPairMg = 28
	bishopPairEg = 48

	rookOpenFileMg     = 22
	rookOpenFileEg     = 18
	rookSemiOpenFileMg = 10
	rookSemiOpenFileEg = 8
)

// mobility weight per piece type; pawns and kings score zero, their
// "mobility" is structure and safety, not square count.
var (
	mobilityMg = [6]int{0, 4, 4, 2, 1, 0}
	mobilityEg = [6]int{0, 3, 4, 3, 2, 0}
)

// game-phase contribution per piece type, saturating at maxPhase; the
// final score interpolates mg/eg on this scale.
var phaseWeight = [6]int{0, 1, 1, 2, 4, 0}

const maxPhase = 24

// passedMask[c][sq] covers sq's file and both adjacent files, every rank
// strictly in front of sq from c's point of view. isolatedMask[f] covers
// the two files adjacent to f.
var (
	passedMask   [2][64]board.Bitboard
	isolatedMask [8]board.Bitboard
)

func init() {
	for f := 0; f < 8; f++ {
		if f > 0 {
			isolatedMask[f] |= board.FileMask[f-1]
		}
		if f < 7 {
			isolatedMask[f] |= board.FileMask[f+1]
		}
	}
	for s := board.Square(0); s < 64; s++ {
		span := board.FileMask[s.File()] | isolatedMask[s.File()]
		var front, back board.Bitboard
		for r := 0; r < 8; r++ {
			if r > s.Rank() {
				front |= board.RankMask[r]
			}
			if r < s.Rank() {
				back |= board.RankMask[r]
			}
		}
		passedMask[board.White][s] = span & front
		passedMask[board.Black][s] = span & back
	}
}

// Evaluate returns the static evaluation of pos in centipawns from the
// side to move's perspective.
func Evaluate(pos *board.Position) int {
	return evaluate(pos, nil)
}

// EvaluateWithPawnTable is Evaluate with the pawn-structure terms served
// from (and stored into) the pawn hash table.
func EvaluateWithPawnTable(pos *board.Position, pawns *PawnTable) int {
	return evaluate(pos, pawns)
}

func evaluate(pos *board.Position, pawns *PawnTable) int {
	var mg, eg, phase int

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		m, e, ph := evaluatePieces(pos, c)
		mg += sign * m
		eg += sign * e
		phase += ph
	}

	pm, pe := pawnStructure(pos, pawns)
	mg += pm
	eg += pe

	if phase > maxPhase {
		phase = maxPhase
	}
	score := (mg*phase + eg*(maxPhase-phase)) / maxPhase

	// Flip to the side to move's perspective before the tempo term, so the
	// mover's initiative bonus is color-symmetric.
	if pos.SideToMove == board.Black {
		score = -score
	}
	return score + tempoBonus
}

// evaluatePieces scores one color's material, piece-square placement,
// mobility, bishop pair, and rook files, returning (mg, eg, phase).
func evaluatePieces(pos *board.Position, c board.Color) (mg, eg, phase int) {
	occupied := pos.AllOccupied
	ownPawns := pos.Pieces[c][board.Pawn]
	enemyPawns := pos.Pieces[c.Other()][board.Pawn]

	for pt := board.Pawn; pt <= board.King; pt++ {
		bb := pos.Pieces[c][pt]
		for bb != 0 {
			s := bb.PopLSB()
			mg += pieceValues[pt]
			eg += pieceValues[pt]
			phase += phaseWeight[pt]

			ps := s
			if c == board.Black {
				ps = s.Mirror()
			}
			switch pt {
			case board.Pawn:
				mg += pawnPST[ps]
				eg += pawnPST[ps]
			case board.Knight:
				mg += knightPST[ps]
				eg += knightPST[ps]
				mob := (board.KnightAttacks(s) &^ pos.Occupied[c]).PopCount()
				mg += mob * mobilityMg[pt]
				eg += mob * mobilityEg[pt]
			case board.Bishop:
				mg += bishopPST[ps]
				eg += bishopPST[ps]
				mob := (board.BishopAttacks(s, occupied) &^ pos.Occupied[c]).PopCount()
				mg += mob * mobilityMg[pt]
				eg += mob * mobilityEg[pt]
			case board.Rook:
				mg += rookPST[ps]
				eg += rookPST[ps]
				mob := (board.RookAttacks(s, occupied) &^ pos.Occupied[c]).PopCount()
				mg += mob * mobilityMg[pt]
				eg += mob * mobilityEg[pt]

				file := board.FileMask[s.File()]
				switch {
				case file&(ownPawns|enemyPawns) == 0:
					mg += rookOpenFileMg
					eg += rookOpenFileEg
				case file&ownPawns == 0:
					mg += rookSemiOpenFileMg
					eg += rookSemiOpenFileEg
				}
			case board.Queen:
				mg += queenPST[ps]
				eg += queenPST[ps]
				mob := (board.QueenAttacks(s, occupied) &^ pos.Occupied[c]).PopCount()
				mg += mob * mobilityMg[pt]
				eg += mob * mobilityEg[pt]
			case board.King:
				mg += kingMgPST[ps]
				eg += kingEgPST[ps]
			}
		}
	}

	if pos.Pieces[c][board.Bishop].PopCount() >= 2 {
		mg += bishopPairMg
		eg += bishopPairEg
	}
	return mg, eg, phase
}

// pawnStructure scores doubled, isolated, and passed pawns for both
// colors (white minus black), consulting the pawn hash table when one is
// attached. The cached portion is keyed on pos.PawnKey, which covers only
// pawn placement, so a hit is valid regardless of where the other pieces
// stand.
func pawnStructure(pos *board.Position, pawns *PawnTable) (mg, eg int) {
	if pawns != nil {
		if m, e, ok := pawns.Probe(pos.PawnKey); ok {
			return m, e
		}
	}

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		own := pos.Pieces[c][board.Pawn]
		enemy := pos.Pieces[c.Other()][board.Pawn]

		for f := 0; f < 8; f++ {
			n := (own & board.FileMask[f]).PopCount()
			if n > 1 {
				mg -= sign * doubledPawnMg * (n - 1)
				eg -= sign * doubledPawnEg * (n - 1)
			}
			if n > 0 && own&isolatedMask[f] == 0 {
				mg -= sign * isolatedPawnMg * n
				eg -= sign * isolatedPawnEg * n
			}
		}

		bb := own
		for bb != 0 {
			s := bb.PopLSB()
			if passedMask[c][s]&enemy == 0 {
				bonus := passedPawnBonus[s.RelativeRank(c)]
				mg += sign * bonus
				eg += sign * bonus * 3 / 2
			}
		}
	}

	if pawns != nil {
		pawns.Store(pos.PawnKey, mg, eg)
	}
	return mg, eg
}
