package search

// aspirationState tracks how the last few root searches have moved relative
// to the window, so the next window can be shaped to match.
type aspirationState int

const (
	aspSearch aspirationState = iota
	aspRising
	aspDropping
	aspAlternating
)

const (
	stableDepth       = 8
	mateClassValue    = 2000
	aspirationMinSize = 15
)

// AspirationWindow maintains the root alpha/beta bounds across iterations.
// It widens whichever side failed, and falls back to the full range after
// two consecutive alternations so the search can never spin indefinitely.
type AspirationWindow struct {
	alpha, beta    int
	state          aspirationState
	retryCount     int
	alternateCount int
	positionValue  int
}

// NewAspirationWindow creates a window in the initial, full-range state.
func NewAspirationWindow() *AspirationWindow {
	w := &AspirationWindow{}
	w.InitSearch()
	return w
}

// InitSearch resets the window to the full range, as used before depth 1.
func (w *AspirationWindow) InitSearch() {
	w.alpha = -Infinity
	w.beta = Infinity
	w.state = aspSearch
	w.retryCount = 0
	w.positionValue = 0
	w.alternateCount = 0
}

// Alpha and Beta return the current window bounds.
func (w *AspirationWindow) Alpha() int { return w.alpha }
func (w *AspirationWindow) Beta() int  { return w.beta }

// IsInside reports whether value falls strictly within the current window.
func (w *AspirationWindow) IsInside(value int) bool {
	return w.alpha < value && value < w.beta
}

// NewDepth starts a fresh iteration at searchDepth around the previous best
// value. Per the grounding source, the retry counter is halved (not reset)
// between depths, so a position that has needed retries recently keeps a
// wider initial window than one that hasn't.
func (w *AspirationWindow) NewDepth(searchDepth int) {
	w.state = aspSearch
	w.alternateCount = 0
	w.retryCount /= 2
	size := w.calculateWindowSize(searchDepth, w.positionValue, 0)
	w.setWindow(w.positionValue, size)
}

// SetSearchResult records a completed search at value for searchDepth,
// transitioning the state machine and widening the window when value falls
// outside the previous bounds. Returns true if a re-search is required.
func (w *AspirationWindow) SetSearchResult(searchDepth, value int) bool {
	if w.IsInside(value) {
		w.positionValue = value
		return false
	}

	prevValue := w.positionValue
	switch w.state {
	case aspSearch:
		if value > prevValue {
			w.state = aspRising
		} else {
			w.state = aspDropping
		}
	case aspRising:
		if value > prevValue {
			w.state = aspRising
		} else {
			w.state = aspAlternating
		}
	case aspDropping:
		if value < prevValue {
			w.state = aspDropping
		} else {
			w.state = aspAlternating
		}
	case aspAlternating:
		w.state = aspAlternating
	}

	w.retryCount++
	if w.state == aspAlternating {
		w.alternateCount++
	}

	delta := prevValue - value
	size := w.calculateWindowSize(searchDepth, value, delta)
	w.setWindow(value, size)
	w.positionValue = value
	return true
}

// calculateWindowSize derives a window half-width from search depth, the
// previous result's distance from the window, the position value's own
// magnitude, and how many retries this depth has already needed. The delta
// term uses full magnitude while Rising and a tenth of it otherwise.
func (w *AspirationWindow) calculateWindowSize(searchDepth, positionValue, delta int) int {
	depthRelated := maxInt(0, stableDepth-searchDepth) * 10

	deltaAbs := absInt(delta)
	var deltaRelated int
	if w.state == aspRising {
		deltaRelated = deltaAbs
	} else {
		deltaRelated = deltaAbs / 10
	}

	valueRelated := absInt(positionValue) / 20
	retryRelated := w.retryCount * 30

	return aspirationMinSize + deltaRelated + depthRelated + valueRelated + retryRelated
}

// setWindow applies windowSize around value according to the current state:
// Rising only widens beta; Dropping (and Search/Alternating) moves both
// sides. Mate-class scores (|v| > mateClassValue) widen the exceeded side to
// infinity. After two consecutive alternations, the window opens fully.
func (w *AspirationWindow) setWindow(value, windowSize int) {
	switch w.state {
	case aspRising:
		w.beta = value + windowSize
	default:
		w.alpha = value - windowSize
		w.beta = value + windowSize
	}

	if w.alpha < -mateClassValue {
		w.alpha = -Infinity
	}
	if w.beta > mateClassValue {
		w.beta = Infinity
	}

	if w.alternateCount >= 2 {
		w.alpha = -Infinity
		w.beta = Infinity
	}
}
