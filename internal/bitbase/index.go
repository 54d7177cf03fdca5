// Package bitbase implements the endgame knowledge subsystem: a bijective
// mapping between a material signature's legal positions and small integer
// indexes, a clustered/compressed on-disk file format for the resulting
// win/draw/loss bit arrays, a bounded cluster cache, and the generator and
// reader that produce and consult them.
package bitbase

import "github.com/finnhauge/gambit/internal/board"

// mapType flags which reflections were applied to canonicalize a king pair,
// using file/rank/diagonal reflection flags.
type mapType uint8

const (
	mapFile mapType = 1 << iota
	mapRank
	mapDiagonal
)

// triangleSquares lists the 10 squares of the a1-d1-d4 triangle that every
// king-free-side index canonicalizes a king into: every other square on the
// board reaches one of these through some combination of file/rank/diagonal
// reflection.
var triangleSquares = [10]board.Square{
	sq(0, 0), sq(1, 0), sq(2, 0), sq(3, 0),
	sq(1, 1), sq(2, 1), sq(3, 1),
	sq(2, 2), sq(3, 2),
	sq(3, 3),
}

func sq(file, rank int) board.Square { return board.Square(rank*8 + file) }

var triangleIndexOf [64]int // -1 unless the square is in the triangle

func init() {
	for i := range triangleIndexOf {
		triangleIndexOf[i] = -1
	}
	for i, s := range triangleSquares {
		triangleIndexOf[s] = i
	}
}

// canonicalizeMap returns the reflection flags needed to fold sq into its
// canonical region for the white king: file a-d always; with no pawns on
// the board, additionally rank 1-4 and the a1-h8 diagonal, folding the king
// into the ten-square a1-d1-d4 triangle. A pawn's presence rules out the
// rank and diagonal folds — either would swap which side is "up the board"
// for every pawn on it, turning a legal position into an illegal one — so
// hasPawns restricts the fold to the file mirror only.
func canonicalizeMap(s board.Square, hasPawns bool) mapType {
	file, rank := int(s.File()), s.Rank()
	var m mapType
	if file > 3 {
		m |= mapFile
	}
	if hasPawns {
		return m
	}
	if rank > 3 {
		m |= mapRank
	}
	ff, fr := file, rank
	if m&mapFile != 0 {
		ff = 7 - ff
	}
	if m&mapRank != 0 {
		fr = 7 - fr
	}
	// After the file/rank folds the king sits in the a1-d4 quadrant; a
	// square above the a1-d4 diagonal (file < rank) reflects across it
	// into the a1-d1-d4 triangle.
	if ff < fr {
		m |= mapDiagonal
	}
	return m
}

// canonicalizeKingMap extends canonicalizeMap to the king pair: when the
// folded white king sits exactly on the a1-d4 diagonal, the white king
// alone can't decide the diagonal reflection, so the black king breaks the
// tie — if it lies above the diagonal, the whole position reflects across
// it. Without this, every diagonal-king position and its mirror would both
// claim a king-pair slot and the no-pawn space would exceed its 462 pairs.
func canonicalizeKingMap(wk, bk board.Square, hasPawns bool) mapType {
	m := canonicalizeMap(wk, hasPawns)
	if hasPawns {
		return m
	}
	fwk := applyMap(wk, m)
	if fwk.File() == fwk.Rank() {
		fbk := applyMap(bk, m)
		if fbk.File() < fbk.Rank() {
			m |= mapDiagonal
		}
	}
	return m
}

// applyMap reflects sq according to m, in the same order canonicalizeMap
// derived the flags: file, then rank, then a diagonal swap.
func applyMap(s board.Square, m mapType) board.Square {
	file, rank := int(s.File()), s.Rank()
	if m&mapFile != 0 {
		file = 7 - file
	}
	if m&mapRank != 0 {
		rank = 7 - rank
	}
	if m&mapDiagonal != 0 {
		file, rank = rank, file
	}
	return sq(file, rank)
}

// kingPairTable assigns a dense, bijective integer to every legal
// (non-adjacent, non-identical) pair of king squares, folding the board's
// symmetries into the white king's position first: file only when a pawn
// is present (1806 legal pairs), since a pawn's file matters but
// rank/diagonal folding would turn it into a different, illegal, pawn
// position; file, rank, and diagonal with no pawns on the board (462).
type kingPairTable struct {
	forward map[[2]board.Square]int
	reverse [][2]board.Square
}

func buildKingPairTable(hasPawns bool) *kingPairTable {
	t := &kingPairTable{forward: make(map[[2]board.Square]int, 2000)}
	for wk := board.Square(0); wk < 64; wk++ {
		for bk := board.Square(0); bk < 64; bk++ {
			if bk == wk || adjacent(wk, bk) {
				continue
			}
			m := canonicalizeKingMap(wk, bk, hasPawns)
			cwk := applyMap(wk, m)
			cbk := applyMap(bk, m)
			if !hasPawns && triangleIndexOf[cwk] < 0 {
				continue
			}
			// Canonical pairs enumerate before any of their reflections,
			// so a pair whose canonical form is already present is a
			// reflection of an earlier entry, not a new slot.
			key := [2]board.Square{cwk, cbk}
			if _, ok := t.forward[key]; ok {
				continue
			}
			t.forward[[2]board.Square{wk, bk}] = len(t.reverse)
			t.reverse = append(t.reverse, [2]board.Square{wk, bk})
		}
	}
	return t
}

func adjacent(a, b board.Square) bool {
	df := int(a.File()) - int(b.File())
	dr := a.Rank() - b.Rank()
	if df < 0 {
		df = -df
	}
	if dr < 0 {
		dr = -dr
	}
	return df <= 1 && dr <= 1
}

var (
	kingPairNoPawns   = buildKingPairTable(false)
	kingPairWithPawns = buildKingPairTable(true)
)

// KingPairCount returns the size of the canonical king-pair index space:
// with diagonal symmetry folded in (no pawns on the board) or without (a
// pawn present).
func KingPairCount(hasPawns bool) int {
	if hasPawns {
		return len(kingPairWithPawns.reverse)
	}
	return len(kingPairNoPawns.reverse)
}

func kingPairIndex(hasPawns bool, wk, bk board.Square) (int, bool) {
	t := kingPairNoPawns
	if hasPawns {
		t = kingPairWithPawns
	}
	idx, ok := t.forward[[2]board.Square{wk, bk}]
	return idx, ok
}

func kingPairSquares(hasPawns bool, idx int) (wk, bk board.Square, ok bool) {
	t := kingPairNoPawns
	if hasPawns {
		t = kingPairWithPawns
	}
	if idx < 0 || idx >= len(t.reverse) {
		return 0, 0, false
	}
	p := t.reverse[idx]
	return p[0], p[1], true
}

// pawnSquareCount is the number of legal pawn squares (every square except
// the two back ranks).
const pawnSquareCount = 48

func pawnSquareIndex(s board.Square) (int, bool) {
	r := s.Rank()
	if r == 0 || r == 7 {
		return 0, false
	}
	return int(s) - 8, true
}

func pawnSquareFromIndex(i int) board.Square {
	return board.Square(i + 8)
}

// Layout describes a material signature's index space: the ordered list of
// non-king piece (color, type) slots (pawns first, so their square range
// can be restricted) and whether any pawn is present.
type Layout struct {
	Pieces   []PieceSlot
	HasPawns bool
}

// PieceSlot is one non-king piece that occupies a square in the index.
type PieceSlot struct {
	Color board.Color
	Type  board.PieceType
}

// Size returns the total number of distinct indexes this layout spans:
// 2 (side to move) * king pair * product of each remaining piece's
// available squares. The side-to-move factor is the low bit of the index
// (see Index) so that a position and its "same occupancy, other side to
// move" counterpart are adjacent rather than scattered, which keeps
// sequential generator sweeps cache-friendly. Pieces of the same (color,
// type) sharing a signature are treated as distinguishable slots here, so
// every permutation of identical pieces has its own index: the generator
// classifies each of them, and indexOf always picks one ordering when it
// looks a position up. This trades a slightly larger index space for a much
// simpler, clearly-bijective mapping (see DESIGN.md).
func (l Layout) Size() uint64 {
	size := uint64(2) * uint64(KingPairCount(l.HasPawns))
	for _, p := range l.Pieces {
		if p.Type == board.Pawn {
			size *= pawnSquareCount
		} else {
			size *= 64
		}
	}
	return size
}

// Index computes the dense index of one fully-specified position: which
// side is to move, the two king squares, plus one square per Layout.Pieces
// slot, in order. The occupancy is first folded into its canonical
// reflection (file mirror always; with no pawns, also rank and diagonal,
// per canonicalizeMap) so that any of a position's symmetric equivalents
// reach the same index; side to move is never folded by the mirror (a
// reflection doesn't change whose turn it is) and occupies the index's low
// bit. It returns false if the king pair is illegal (adjacent or
// identical) for this layout.
func (l Layout) Index(stm board.Color, whiteKing, blackKing board.Square, squares []board.Square) (uint64, bool) {
	m := canonicalizeKingMap(whiteKing, blackKing, l.HasPawns)
	wk := applyMap(whiteKing, m)
	bk := applyMap(blackKing, m)
	kp, ok := kingPairIndex(l.HasPawns, wk, bk)
	if !ok {
		return 0, false
	}
	var stmBit uint64
	if stm == board.Black {
		stmBit = 1
	}
	index := stmBit
	base := uint64(2)
	index += base * uint64(kp)
	base *= uint64(KingPairCount(l.HasPawns))
	for i, p := range l.Pieces {
		s := applyMap(squares[i], m)
		var sub uint64
		if p.Type == board.Pawn {
			v, ok := pawnSquareIndex(s)
			if !ok {
				return 0, false
			}
			sub = uint64(v)
			index += base * sub
			base *= pawnSquareCount
		} else {
			sub = uint64(s)
			index += base * sub
			base *= 64
		}
	}
	return index, true
}

// Decode inverts Index, reconstructing the side to move, one canonical
// representative's king squares, and the remaining piece squares in
// Layout.Pieces order. The occupancy always already lies in the canonical
// region (the king pair table stores only canonical representatives), so
// Index(Decode(i)) == i without any further folding needed.
func (l Layout) Decode(index uint64) (stm board.Color, whiteKing, blackKing board.Square, squares []board.Square, ok bool) {
	rest := index
	stm = board.White
	if rest%2 != 0 {
		stm = board.Black
	}
	rest /= 2
	base := uint64(KingPairCount(l.HasPawns))
	kpIdx := int(rest % base)
	rest /= base
	wk, bk, ok := kingPairSquares(l.HasPawns, kpIdx)
	if !ok {
		return board.White, 0, 0, nil, false
	}
	squares = make([]board.Square, len(l.Pieces))
	for i, p := range l.Pieces {
		var modulus uint64 = 64
		if p.Type == board.Pawn {
			modulus = pawnSquareCount
		}
		v := rest % modulus
		rest /= modulus
		if p.Type == board.Pawn {
			squares[i] = pawnSquareFromIndex(int(v))
		} else {
			squares[i] = board.Square(v)
		}
	}
	return stm, wk, bk, squares, true
}
