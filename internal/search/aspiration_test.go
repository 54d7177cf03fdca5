package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAspirationWindowInitSearchIsFullRange(t *testing.T) {
	w := NewAspirationWindow()
	require.Equal(t, -Infinity, w.Alpha())
	require.Equal(t, Infinity, w.Beta())
	require.True(t, w.IsInside(0))
}

// TestAspirationWindowInsideResultNeedsNoRetry checks the common case: a
// value landing inside the current window is accepted without widening.
func TestAspirationWindowInsideResultNeedsNoRetry(t *testing.T) {
	w := NewAspirationWindow()
	w.NewDepth(10)
	mid := (w.Alpha() + w.Beta()) / 2
	retry := w.SetSearchResult(10, mid)
	require.False(t, retry)
}

// TestAspirationWindowFailHighWidensBeta checks the rising-fail-high case:
// a value at or above beta must trigger a retry and a wider window that
// contains the failing value.
func TestAspirationWindowFailHighWidensBeta(t *testing.T) {
	w := NewAspirationWindow()
	w.NewDepth(10)
	failHigh := w.Beta() + 5

	retry := w.SetSearchResult(10, failHigh)
	require.True(t, retry)
	require.Equal(t, aspRising, w.state)
	require.Greater(t, w.Beta(), failHigh-5)
}

// TestAspirationWindowFailLowWidensAlpha mirrors FailHigh for the dropping
// side.
func TestAspirationWindowFailLowWidensAlpha(t *testing.T) {
	w := NewAspirationWindow()
	w.NewDepth(10)
	failLow := w.Alpha() - 5

	retry := w.SetSearchResult(10, failLow)
	require.True(t, retry)
	require.Equal(t, aspDropping, w.state)
}

// TestAspirationWindowAlternatingOpensFullRange checks the safety valve:
// after two consecutive alternations between rising and dropping, the
// window must open to the full range so the search can never spin forever
// re-searching a narrow window.
func TestAspirationWindowAlternatingOpensFullRange(t *testing.T) {
	w := NewAspirationWindow()
	w.NewDepth(10)

	require.True(t, w.SetSearchResult(10, w.Beta()+5))
	require.Equal(t, aspRising, w.state)

	require.True(t, w.SetSearchResult(10, w.Alpha()-5))
	require.Equal(t, aspAlternating, w.state)

	require.True(t, w.SetSearchResult(10, w.Beta()+5))
	require.Equal(t, aspAlternating, w.state)
	require.Equal(t, -Infinity, w.Alpha())
	require.Equal(t, Infinity, w.Beta())
}

// TestAspirationWindowMateClassScoreOpensExceededSide checks that a
// mate-class score (beyond mateClassValue) immediately opens the side it
// exceeded to infinity rather than keeping a finite bound that would just
// trigger another retry next iteration.
func TestAspirationWindowMateClassScoreOpensExceededSide(t *testing.T) {
	w := NewAspirationWindow()
	w.NewDepth(20)

	w.SetSearchResult(20, mateClassValue+500)
	require.Equal(t, Infinity, w.Beta())
}

// TestAspirationWindowNewDepthHalvesRetryCount checks the grounding note on
// NewDepth: the retry counter carries over (halved), so a position that
// needed several retries recently starts its next depth with a wider
// initial window than a position with retryCount 0.
func TestAspirationWindowNewDepthHalvesRetryCount(t *testing.T) {
	w := NewAspirationWindow()
	w.NewDepth(10)
	w.SetSearchResult(10, w.Beta()+5)
	w.SetSearchResult(10, w.Beta()+5)
	require.Greater(t, w.retryCount, 0)

	before := w.retryCount
	w.NewDepth(11)
	require.Equal(t, before/2, w.retryCount)
}
