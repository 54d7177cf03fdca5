// Package material computes and packs the non-king piece counts of a
// position into a small, hashable key. The same key drives both the
// transposition table's material-phase heuristics and the bitbase
// subsystem's per-signature file naming and index-space sizing.
package material

import (
	"strings"

	"github.com/finnhauge/gambit/internal/board"
)

// Signature packs the per-color, per-type piece counts (kings excluded,
// since every signature implicitly has exactly one king per side) into a
// single comparable value: six bits per piece type per color, ordered
// Pawn, Knight, Bishop, Rook, Queen. Ten 6-bit fields fit in 60 bits,
// and six bits per field means even a pawn count (up to 8) or an
// every-pawn-promoted queen count (up to 10) never saturates.
type Signature uint64

const (
	typesPerColor = 5 // Pawn, Knight, Bishop, Rook, Queen (King implicit)
	fieldBits     = 6
	fieldMask     = (1 << fieldBits) - 1
)

// shift returns the bit offset for (color, pieceType) within the packed
// value. Black occupies the high half, White the low.
func shift(c board.Color, pt board.PieceType) uint {
	colorBase := uint(0)
	if c == board.Black {
		colorBase = typesPerColor * fieldBits
	}
	return colorBase + uint(pt)*fieldBits
}

// Compute derives the Signature of a position, counting every piece except
// kings.
func Compute(pos *board.Position) Signature {
	var sig Signature
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt < board.King; pt++ {
			n := pos.Pieces[c][pt].PopCount()
			sig |= Signature(uint64(n)&fieldMask) << shift(c, pt)
		}
	}
	return sig
}

// Count returns the number of pieces of type pt and color c in the
// signature.
func (s Signature) Count(c board.Color, pt board.PieceType) int {
	return int((uint64(s) >> shift(c, pt)) & fieldMask)
}

// TotalPieces returns the total non-king piece count across both colors,
// the figure the main search compares against the bitbase probe limit.
func (s Signature) TotalPieces() int {
	total := 0
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt < board.King; pt++ {
			total += s.Count(c, pt)
		}
	}
	return total
}

// HasEnoughMaterialToMate reports whether color c's pieces in this
// signature are, on their own, sufficient to force checkmate against a
// bare king (ignoring the actual board geometry): any pawn, rook or queen
// suffices, as does a bishop pair or bishop+knight or 3+ knights.
func (s Signature) HasEnoughMaterialToMate(c board.Color) bool {
	if s.Count(c, board.Pawn) > 0 || s.Count(c, board.Rook) > 0 || s.Count(c, board.Queen) > 0 {
		return true
	}
	minors := s.Count(c, board.Bishop) + s.Count(c, board.Knight)
	if s.Count(c, board.Bishop) >= 2 {
		return true
	}
	if s.Count(c, board.Bishop) >= 1 && s.Count(c, board.Knight) >= 1 {
		return true
	}
	return minors >= 3
}

// Symmetric swaps the white and black halves of the signature, the
// operation needed to look up the color-swapped bitbase when probing
// dual-sided (see bitbase.Registry.ProbeWDL).
func (s Signature) Symmetric() Signature {
	var out Signature
	for pt := board.Pawn; pt < board.King; pt++ {
		out |= Signature(s.Count(board.White, pt)) << shift(board.Black, pt)
		out |= Signature(s.Count(board.Black, pt)) << shift(board.White, pt)
	}
	return out
}

var typeLetters = [typesPerColor]byte{'P', 'N', 'B', 'R', 'Q'}

// String renders the signature as a material string in the convention used
// throughout the bitbase subsystem: "K" + white's extra pieces (Q,R,B,N,P
// order) + "K" + black's, e.g. "KPK", "KQKR". Kings are always present and
// always first for their side.
func (s Signature) String() string {
	var b strings.Builder
	b.WriteByte('K')
	for pt := board.Queen; ; pt-- {
		for i := 0; i < s.Count(board.White, pt); i++ {
			b.WriteByte(typeLetters[pt])
		}
		if pt == board.Pawn {
			break
		}
	}
	b.WriteByte('K')
	for pt := board.Queen; ; pt-- {
		for i := 0; i < s.Count(board.Black, pt); i++ {
			b.WriteByte(typeLetters[pt])
		}
		if pt == board.Pawn {
			break
		}
	}
	return b.String()
}

// ParseSignature parses a material string such as "KPK" or "KRPKQ" back
// into a Signature. The string must contain exactly two 'K' characters,
// splitting white's pieces (before the second K) from black's (after).
func ParseSignature(s string) (Signature, bool) {
	secondK := -1
	seen := 0
	for i := 0; i < len(s); i++ {
		if s[i] == 'K' {
			seen++
			if seen == 2 {
				secondK = i
				break
			}
		}
	}
	if secondK < 0 {
		return 0, false
	}
	white := s[1:secondK]
	black := s[secondK+1:]

	var sig Signature
	for i := 0; i < len(white); i++ {
		pt, ok := letterToType(white[i])
		if !ok {
			return 0, false
		}
		sig += Signature(1) << shift(board.White, pt)
	}
	for i := 0; i < len(black); i++ {
		pt, ok := letterToType(black[i])
		if !ok {
			return 0, false
		}
		sig += Signature(1) << shift(board.Black, pt)
	}
	return sig, true
}

func letterToType(c byte) (board.PieceType, bool) {
	switch c {
	case 'P':
		return board.Pawn, true
	case 'N':
		return board.Knight, true
	case 'B':
		return board.Bishop, true
	case 'R':
		return board.Rook, true
	case 'Q':
		return board.Queen, true
	}
	return 0, false
}
