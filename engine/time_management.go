package engine

import (
	"time"

	"chess-tiers/board"
)

// TimeHandler owns the wall-clock deadline of one move request.
type TimeHandler struct {
	timeForMove time.Time
	stopSearch  bool
	now         func() time.Time
}

// NewTimeHandler starts a deadline of min(budget, ceiling) from now. A
// non-positive ceiling means no ceiling; a non-positive budget is already
// expired.
func NewTimeHandler(budget, ceiling time.Duration) *TimeHandler {
	th := &TimeHandler{now: time.Now}
	th.StartTime(budget, ceiling)
	return th
}

// NewDeadline builds a handler expiring at t. The zero time never expires.
func NewDeadline(t time.Time) *TimeHandler {
	return &TimeHandler{timeForMove: t, now: time.Now}
}

func (th *TimeHandler) StartTime(budget, ceiling time.Duration) {
	if ceiling > 0 && budget > ceiling {
		budget = ceiling
	}
	th.stopSearch = false
	th.timeForMove = th.clock().Add(budget)
}

// Deadline reports when the current request runs out of time.
func (th *TimeHandler) Deadline() time.Time {
	return th.timeForMove
}

/*
	- True once the deadline has passed; stays true afterwards
	- False if we still got time
*/
func (th *TimeHandler) TimeStatus() bool {
	if th == nil || th.timeForMove.IsZero() {
		return false
	}
	if th.stopSearch {
		return true
	}
	if !th.clock().Before(th.timeForMove) {
		th.stopSearch = true
	}
	return th.stopSearch
}

func (th *TimeHandler) clock() time.Time {
	if th.now == nil {
		return time.Now()
	}
	return th.now()
}

// MoveBudget turns a game clock into a per-move budget: a phase-dependent
// share of the remaining time plus most of the increment, clamped so the
// engine never flags. Returns 0 when remaining is unknown.
func MoveBudget(pos board.Position, remaining, increment time.Duration) time.Duration {
	if remaining <= 0 {
		return 0
	}
	movesLeft := estimateMovesRemaining(GetPiecePhase(pos)) // 20..45

	// Engine-side safety knobs
	const overhead = 30 * time.Millisecond // reserve for UCI/IO jitter
	const minMove = 5 * time.Millisecond   // never less than this
	const maxFrac = 0.7                    // never spend >70% of remaining time
	const panicThresh = time.Second
	const panicFrac = 0.90 // use 90% of inc in panic

	var moveTime time.Duration
	if increment > 0 {
		if remaining < panicThresh {
			moveTime = time.Duration(float64(increment) * panicFrac)
		} else {
			moveTime = remaining/time.Duration(movesLeft) + increment
		}
	} else {
		moveTime = remaining / 30
	}

	moveTime = max(moveTime, minMove)
	moveTime = min(moveTime, time.Duration(float64(remaining)*maxFrac), remaining-overhead)
	return max(moveTime, minMove)
}

func estimateMovesRemaining(phase int32) int32 {
	// Linearly interpolate between 20 (endgame) and 45 (opening/midgame)
	return (phase*25)/24 + 20
}
