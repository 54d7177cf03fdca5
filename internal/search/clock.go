package search

import "time"

// ClockMode selects how (and whether) the clock manager may stop a search.
// Analyze and Ponder never stop on their own; only an explicit Stop() (via
// the stop flag) ends them.
type ClockMode uint8

const (
	ClockSearch ClockMode = iota
	ClockAnalyze
	ClockPonder
	ClockStopped
)

// criticalFactor/suddenDeathFactor scale the average budget when the root
// move has become unstable: critical if its value dropped noticeably since
// the previous iteration, sudden-death if the previous iteration failed low
// at the root (i.e. the position looks considerably worse than believed).
const (
	normalFactor      = 1
	criticalFactor    = 4
	suddenDeathFactor = 15

	// instabilityThreshold is "one fifth of a pawn", the drop in root value
	// that promotes a normal iteration to "critical".
	instabilityThreshold = 20

	minStoppableDepth = 5
)

// ClockSetting is the externally supplied time control, translated from the
// protocol front-end's "go" parameters (out of scope collaborator).
type ClockSetting struct {
	TimeLeft  time.Duration
	Increment time.Duration
	MovesToGo int
	MoveTime  time.Duration // fixed time for this move; overrides budgeting
	Infinite  bool
}

// ClockManager decides whether to start, continue, or abort each iterative-
// deepening iteration based on elapsed time and root-move instability. It
// never suspends — every method is a cheap poll against time.Now().
type ClockManager struct {
	mode ClockMode

	average time.Duration // target budget for this move
	maximum time.Duration // hard cap

	startTime time.Time

	movesPlayed int
	depth       int

	failedLowAtRoot bool
	rootValueDrop   int
}

// NewClockManager creates a manager in Search mode with a zero budget;
// call Init before the first iteration.
func NewClockManager() *ClockManager {
	return &ClockManager{mode: ClockSearch}
}

// Init computes the average/maximum budgets for one move and starts the
// elapsed-time clock. movesPlayed is the game ply count, used to estimate
// moves-to-go when the setting doesn't specify one.
func (cm *ClockManager) Init(cs ClockSetting, movesPlayed int) {
	cm.startTime = time.Now()
	cm.movesPlayed = movesPlayed
	cm.depth = 0
	cm.failedLowAtRoot = false
	cm.rootValueDrop = 0

	if cs.Infinite {
		cm.average = time.Hour
		cm.maximum = time.Hour
		return
	}
	if cs.MoveTime > 0 {
		cm.average = cs.MoveTime
		cm.maximum = cs.MoveTime
		return
	}

	mtg := cs.MovesToGo
	if mtg == 0 {
		mtg = 60 - movesPlayed/2
		if mtg < 35 {
			mtg = 35
		}
	}

	base := cs.TimeLeft / time.Duration(mtg)
	base += cs.Increment * 9 / 10
	if base < 0 {
		base = 0
	}

	cm.average = base
	cm.maximum = minDuration(cs.TimeLeft*4/5, base*6)
	if cm.maximum < cm.average {
		cm.maximum = cm.average
	}
}

// NewIteration records the depth about to be searched and any instability
// signal observed from the previous iteration's root move reordering
// a fail-low at the previous best move, or a value drop of at
// least one fifth of a pawn.
func (cm *ClockManager) NewIteration(depth int, failedLowAtRoot bool, valueDrop int) {
	cm.depth = depth
	cm.failedLowAtRoot = failedLowAtRoot
	cm.rootValueDrop = valueDrop
}

func (cm *ClockManager) scaledAverage() time.Duration {
	factor := normalFactor
	if cm.failedLowAtRoot {
		factor = suddenDeathFactor
	} else if cm.rootValueDrop >= instabilityThreshold {
		factor = criticalFactor
	}
	return cm.average * time.Duration(factor)
}

// Elapsed returns the time since Init.
func (cm *ClockManager) Elapsed() time.Duration { return time.Since(cm.startTime) }

func (cm *ClockManager) canStop() bool {
	return cm.mode == ClockSearch && cm.depth >= minStoppableDepth
}

// MayStartNextDepth reports whether another iterative-deepening iteration
// should begin.
func (cm *ClockManager) MayStartNextDepth() bool {
	if !cm.canStop() {
		return true
	}
	budget := cm.scaledAverage() * 7 / 10
	if cm.maximum < budget {
		budget = cm.maximum
	}
	return cm.Elapsed() < budget
}

// ShouldAbort reports whether the in-progress iteration should be
// abandoned (its result discarded, the previous iteration's PV kept).
func (cm *ClockManager) ShouldAbort() bool {
	if !cm.canStop() {
		return false
	}
	return cm.Elapsed() > cm.scaledAverage()*8/10
}

// EmergencyAbort reports whether the hard time cap has been breached,
// regardless of depth. It is always false outside Search mode: Analyze and
// Ponder have no maximum worth enforcing.
func (cm *ClockManager) EmergencyAbort() bool {
	if cm.mode != ClockSearch {
		return false
	}
	return cm.Elapsed() > cm.maximum
}

// Mode returns the current clock mode.
func (cm *ClockManager) Mode() ClockMode { return cm.mode }

// SetMode switches the clock mode (e.g. into Analyze/Ponder before a
// search, or to Stopped to force every check above to report "keep
// going" is no longer relevant because the stop flag has already fired).
func (cm *ClockManager) SetMode(m ClockMode) { cm.mode = m }

// PonderHit switches Ponder to Search while preserving the elapsed-time
// tracking already accumulated during pondering.
func (cm *ClockManager) PonderHit() {
	if cm.mode == ClockPonder {
		cm.mode = ClockSearch
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
