package clock

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// PollResult is the three-way outcome of Timer.Poll (§4.4).
type PollResult uint8

const (
	// WouldBlock means no attempt is ready yet.
	WouldBlock PollResult = iota
	// Retry means the next attempt is ready; the caller should re-send and
	// the attempt counter has been advanced.
	Retry
	// Exhausted means attempts-taken has reached attempts-max; the caller
	// should surface MessageNeverAcked and stop retrying.
	Exhausted
)

func (r PollResult) String() string {
	switch r {
	case WouldBlock:
		return "WouldBlock"
	case Retry:
		return "Retry"
	case Exhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// Strategy computes when the k-th retry (1-indexed; k=1 is the first
// retransmission after the initial send) becomes ready, as an elapsed
// duration since the exchange started (§4.4).
type Strategy interface {
	readyAt(k int) time.Duration
}

// Exponential implements "attempt n ready when elapsed >= initial*(2^n-1)"
// (§4.4, verified against §8's worked example: initial=100ms -> retries
// ready at 100ms, 300ms, 700ms for k=1,2,3).
type Exponential struct {
	Initial time.Duration
}

func (e Exponential) readyAt(k int) time.Duration {
	mult := (int64(1) << uint(k)) - 1
	return time.Duration(int64(e.Initial) * mult)
}

// FixedDelay implements "attempt n ready when elapsed >= interval*n" (§4.4).
type FixedDelay struct {
	Interval time.Duration
}

func (f FixedDelay) readyAt(k int) time.Duration {
	return f.Interval * time.Duration(k)
}

// Timer pairs a start instant with a Strategy and an attempts budget
// (§3 "Retry Timer"). It implements backoff.BackOff (github.com/cenkalti/
// backoff/v4) so it composes with any other code in the ecosystem that
// expects one, while Poll is the primary, spec-shaped entry point used by
// the Retry-Buffer step.
type Timer struct {
	clock    Clock
	strategy Strategy
	start    time.Time
	attempts int // retries already taken, not counting the initial send
	max      int
}

// NewTimer starts a retry timer at the given clock reading, per strategy,
// allowing up to max retries (§3, §6 max_retransmit).
func NewTimer(c Clock, strategy Strategy, start time.Time, max int) *Timer {
	return &Timer{clock: c, strategy: strategy, start: start, max: max}
}

// Attempts returns the number of retries already taken.
func (t *Timer) Attempts() int { return t.attempts }

// Poll evaluates the timer against the clock's current reading, returning
// Retry (and advancing the attempt counter), WouldBlock, or Exhausted
// (§4.4).
func (t *Timer) Poll() (PollResult, error) {
	if t.attempts >= t.max {
		return Exhausted, nil
	}
	now, err := t.clock.Now()
	if err != nil {
		return WouldBlock, ErrClockFailed
	}
	elapsed := now.Sub(t.start)
	if elapsed >= t.strategy.readyAt(t.attempts+1) {
		t.attempts++
		return Retry, nil
	}
	return WouldBlock, nil
}

// NextBackOff implements backoff.BackOff: returns the duration until the
// next attempt is ready, or backoff.Stop once Exhausted. Unlike Poll, this
// does not advance the attempt counter — it is informational, for callers
// that want to compose Timer with other backoff.BackOff consumers.
func (t *Timer) NextBackOff() time.Duration {
	if t.attempts >= t.max {
		return backoff.Stop
	}
	now, err := t.clock.Now()
	if err != nil {
		return backoff.Stop
	}
	readyAt := t.start.Add(t.strategy.readyAt(t.attempts + 1))
	if wait := readyAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Reset implements backoff.BackOff by restarting the timer's clock at now.
func (t *Timer) Reset() {
	if now, err := t.clock.Now(); err == nil {
		t.start = now
	}
	t.attempts = 0
}

var _ backoff.BackOff = (*Timer)(nil)
