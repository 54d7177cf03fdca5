package material

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnhauge/gambit/internal/board"
)

func TestSignatureStringParseRoundTrip(t *testing.T) {
	for _, s := range []string{"KK", "KPK", "KNK", "KBK", "KRK", "KQK", "KRPKQ", "KBBKN", "KQRKQR"} {
		sig, ok := ParseSignature(s)
		require.True(t, ok, "ParseSignature(%q) should succeed", s)
		require.Equal(t, s, sig.String(), "round trip through String() must reproduce %q", s)
	}
}

func TestParseSignatureRejectsMalformedInput(t *testing.T) {
	for _, s := range []string{"", "K", "KXK", "PKQ", "KK K"} {
		_, ok := ParseSignature(s)
		require.False(t, ok, "ParseSignature(%q) should fail", s)
	}
}

func TestSignatureComputeFromPosition(t *testing.T) {
	pos, err := board.ParseFEN(board.StartFEN)
	require.NoError(t, err)

	sig := Compute(pos)
	require.Equal(t, 8, sig.Count(board.White, board.Pawn))
	require.Equal(t, 8, sig.Count(board.Black, board.Pawn))
	require.Equal(t, 2, sig.Count(board.White, board.Knight))
	require.Equal(t, 2, sig.Count(board.White, board.Rook))
	require.Equal(t, 1, sig.Count(board.White, board.Queen))
	require.Equal(t, 30, sig.TotalPieces())
}

// TestSignatureSymmetricIsAnInvolution checks that swapping colors twice
// returns the original signature, and that a single swap actually moves
// counts to the other color.
func TestSignatureSymmetricIsAnInvolution(t *testing.T) {
	sig, ok := ParseSignature("KRPKQ")
	require.True(t, ok)

	swapped := sig.Symmetric()
	require.Equal(t, "KQKRP", swapped.String())
	require.Equal(t, sig, swapped.Symmetric())
}

func TestHasEnoughMaterialToMate(t *testing.T) {
	cases := []struct {
		sig  string
		want bool
	}{
		{"KK", false},
		{"KNK", false},
		{"KBK", false},
		{"KNKN", false},
		{"KBBK", true},
		{"KBNK", true},
		{"KNNNK", true},
		{"KPK", true},
		{"KRK", true},
		{"KQK", true},
	}
	for _, c := range cases {
		sig, ok := ParseSignature(c.sig)
		require.True(t, ok, c.sig)
		require.Equal(t, c.want, sig.HasEnoughMaterialToMate(board.White), c.sig)
	}
}

func TestSignatureTotalPiecesMatchesSumOfCounts(t *testing.T) {
	sig, ok := ParseSignature("KRPKQ")
	require.True(t, ok)
	require.Equal(t, 3, sig.TotalPieces())
}
