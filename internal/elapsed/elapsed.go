// Package elapsed tracks time spent playing across pause/resume cycles.
package elapsed

import (
	"time"

	"github.com/verte-zerg/flashread/internal/clock"
)

// Accumulator sums the durations of completed runs plus the run in progress.
// It is not safe for concurrent use; the engine guards it with its own lock.
type Accumulator struct {
	clock       clock.Clock
	accumulated time.Duration
	runStart    time.Time
	running     bool
}

// New returns an Accumulator reading time from c.
func New(c clock.Clock) *Accumulator {
	return &Accumulator{clock: c}
}

// MarkRunStart begins a run at the current time. A run already in progress
// is folded first.
func (a *Accumulator) MarkRunStart() {
	if a.running {
		a.FoldRun()
	}
	a.runStart = a.clock.Now()
	a.running = true
}

// FoldRun adds the in-progress run to the accumulated total and ends it.
func (a *Accumulator) FoldRun() {
	if !a.running {
		return
	}
	a.accumulated += a.runDuration()
	a.running = false
	a.runStart = time.Time{}
}

// Current returns the accumulated total plus any in-progress run.
func (a *Accumulator) Current() time.Duration {
	if !a.running {
		return a.accumulated
	}
	return a.accumulated + a.runDuration()
}

// Running reports whether a run is in progress.
func (a *Accumulator) Running() bool {
	return a.running
}

// Reset zeroes the total and ends any run.
func (a *Accumulator) Reset() {
	a.accumulated = 0
	a.running = false
	a.runStart = time.Time{}
}

// Set replaces the accumulated total and ends any run. Negative values are
// stored as zero.
func (a *Accumulator) Set(d time.Duration) {
	a.Reset()
	if d > 0 {
		a.accumulated = d
	}
}

func (a *Accumulator) runDuration() time.Duration {
	d := a.clock.Now().Sub(a.runStart)
	if d < 0 {
		return 0
	}
	return d
}
