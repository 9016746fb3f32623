package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/flashread/internal/clock"
	"github.com/verte-zerg/flashread/internal/pacing"
)

const fiveWords = "a bb ccc dddd eeeee"

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *clock.Manual, *recorder) {
	t.Helper()
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	rec := &recorder{}
	all := append([]Option{WithClock(clk), WithObserver(rec.observe), WithWPM(120)}, opts...)
	return New(all...), clk, rec
}

func TestPlayToFinished(t *testing.T) {
	e, clk, rec := newTestEngine(t)
	if n := e.Load(fiveWords); n != 5 {
		t.Fatalf("expected 5 words, got %d", n)
	}
	e.Play()
	if st := e.Status(); st.State != StatePlaying || st.Word != "a" {
		t.Fatalf("expected playing at first word, got %+v", st)
	}

	clk.Advance(2499 * time.Millisecond)
	st := e.Status()
	if st.State != StatePlaying || st.Position != 4 {
		t.Fatalf("expected playing at last word before final delay, got %s at %d", st.State, st.Position)
	}

	clk.Advance(time.Millisecond)
	st = e.Status()
	if st.State != StateFinished || st.Position != 5 {
		t.Fatalf("expected finished at 5, got %s at %d", st.State, st.Position)
	}
	if st.Word != "" || !st.Finished() {
		t.Fatalf("expected no current word once finished, got %q", st.Word)
	}
	if st.DisplayPosition() != 5 {
		t.Fatalf("expected display position 5, got %d", st.DisplayPosition())
	}
	if st.Elapsed != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s elapsed, got %v", st.Elapsed)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no pending timer after finishing, got %d", clk.Pending())
	}
	if rec.count(EventFinished) != 1 {
		t.Fatalf("expected one finished event, got %d", rec.count(EventFinished))
	}
	if rec.count(EventPositionChanged) != 4 {
		t.Fatalf("expected 4 position events, got %d", rec.count(EventPositionChanged))
	}

	clk.Advance(10 * time.Second)
	if got := e.Status().Elapsed; got != 2500*time.Millisecond {
		t.Fatalf("elapsed moved after finishing: %v", got)
	}
}

func TestPauseResumeElapsed(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load(fiveWords)

	e.Play()
	clk.Advance(1200 * time.Millisecond)
	e.Pause()
	st := e.Status()
	if st.Elapsed != 1200*time.Millisecond {
		t.Fatalf("expected 1.2s elapsed, got %v", st.Elapsed)
	}
	if st.Position != 2 {
		t.Fatalf("expected position 2, got %d", st.Position)
	}

	clk.Advance(5 * time.Second)
	if e.Status().Position != 2 {
		t.Fatalf("stale timer advanced a paused engine")
	}

	e.Play()
	clk.Advance(300 * time.Millisecond)
	e.Pause()
	if got := e.Status().Elapsed; got != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s elapsed, got %v", got)
	}
}

func TestResumeRestartsCurrentWordDelay(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load(fiveWords)
	e.Play()
	clk.Advance(400 * time.Millisecond)
	e.Pause()
	e.Play()
	clk.Advance(400 * time.Millisecond)
	if e.Status().Position != 0 {
		t.Fatalf("expected the resumed word to get a full delay")
	}
	clk.Advance(100 * time.Millisecond)
	if e.Status().Position != 1 {
		t.Fatalf("expected advance after full delay, got %d", e.Status().Position)
	}
}

func TestPauseTwiceIsIdempotent(t *testing.T) {
	e, clk, rec := newTestEngine(t)
	e.Load(fiveWords)
	e.Play()
	clk.Advance(700 * time.Millisecond)
	e.Pause()
	first := e.Status()
	before := len(rec.events)
	e.Pause()
	second := e.Status()
	if first.State != second.State || first.Position != second.Position || first.Elapsed != second.Elapsed {
		t.Fatalf("second pause changed state: %+v vs %+v", first, second)
	}
	if len(rec.events) != before {
		t.Fatalf("second pause emitted events")
	}
}

func TestStopFromIdleIsNoop(t *testing.T) {
	e, _, rec := newTestEngine(t)
	e.Load(fiveWords)
	before := len(rec.events)
	e.Stop()
	if len(rec.events) != before {
		t.Fatalf("stop from idle emitted events")
	}
	if st := e.Status(); st.State != StateIdle || st.Position != 0 {
		t.Fatalf("unexpected status after stop: %+v", st)
	}
}

func TestStopRewinds(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load(fiveWords)
	e.Play()
	clk.Advance(1100 * time.Millisecond)
	e.Stop()
	st := e.Status()
	if st.State != StateIdle || st.Position != 0 || st.Elapsed != 0 {
		t.Fatalf("expected rewound idle engine, got %+v", st)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no pending timer after stop")
	}
}

func TestPlayAfterFinishedRestarts(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load("one two")
	e.Play()
	clk.Advance(time.Second)
	if e.Status().State != StateFinished {
		t.Fatalf("expected finished")
	}
	e.Play()
	st := e.Status()
	if st.State != StatePlaying || st.Position != 0 || st.Elapsed != 0 {
		t.Fatalf("expected restart from first word, got %+v", st)
	}
}

func TestEmptyTextIsNoop(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load("   \n ")
	e.Play()
	e.Next()
	e.Prev()
	e.Seek(3)
	if st := e.Status(); st.State != StateIdle || st.Total != 0 || st.DisplayPosition() != 0 {
		t.Fatalf("expected idle empty engine, got %+v", st)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no timers for empty text")
	}
	if err := e.Jump(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected out of range for empty text, got %v", err)
	}
}

func TestJumpOutOfRangeLeavesEngineUnchanged(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load(fiveWords)
	e.Play()
	clk.Advance(600 * time.Millisecond)
	before := e.Status()

	for _, idx := range []int{999, 5, -1} {
		err := e.Jump(idx)
		if !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("expected ErrIndexOutOfRange for %d, got %v", idx, err)
		}
	}
	after := e.Status()
	if after.State != before.State || after.Position != before.Position {
		t.Fatalf("rejected jump changed engine: %+v -> %+v", before, after)
	}
	if clk.Pending() != 1 {
		t.Fatalf("rejected jump disturbed the pending timer")
	}
}

func TestJumpPausesAndEstimatesElapsed(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load(fiveWords)
	e.Play()
	clk.Advance(200 * time.Millisecond)
	if err := e.Jump(3); err != nil {
		t.Fatalf("jump: %v", err)
	}
	st := e.Status()
	if st.State != StatePaused || st.Position != 3 || st.Word != "dddd" {
		t.Fatalf("unexpected status after jump: %+v", st)
	}
	if st.Elapsed != 1500*time.Millisecond {
		t.Fatalf("expected estimated 1.5s, got %v", st.Elapsed)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no pending timer after jump")
	}
	clk.Advance(time.Second)
	if e.Status().Position != 3 {
		t.Fatalf("engine advanced after jump")
	}
}

func TestStepClamps(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Load(fiveWords)
	e.Prev()
	if st := e.Status(); st.Position != 0 || st.State != StatePaused {
		t.Fatalf("expected paused at 0, got %+v", st)
	}
	for i := 0; i < 10; i++ {
		e.Next()
	}
	if st := e.Status(); st.Position != 4 {
		t.Fatalf("expected clamp at last word, got %d", st.Position)
	}
	e.Seek(-20)
	if st := e.Status(); st.Position != 0 {
		t.Fatalf("expected seek clamp to 0, got %d", st.Position)
	}
	e.Seek(20)
	if st := e.Status(); st.Position != 4 {
		t.Fatalf("expected seek clamp to last word, got %d", st.Position)
	}
}

func TestStepFromFinished(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load("one two three")
	e.Play()
	clk.Advance(2 * time.Second)
	e.Prev()
	if st := e.Status(); st.Position != 2 || st.State != StatePaused {
		t.Fatalf("expected paused on last word, got %+v", st)
	}
}

func TestSingleFlightTimer(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load(fiveWords)
	check := func(step string) {
		t.Helper()
		pending := clk.Pending()
		if pending > 1 {
			t.Fatalf("%s: %d pending timers", step, pending)
		}
		playing := e.Status().State == StatePlaying
		if playing && pending != 1 {
			t.Fatalf("%s: playing with %d pending timers", step, pending)
		}
		if !playing && pending != 0 {
			t.Fatalf("%s: not playing with %d pending timers", step, pending)
		}
	}
	e.Play()
	check("play")
	e.Play()
	check("play again")
	e.SetWPM(300)
	check("set wpm")
	e.SetSmartReading(true)
	check("smart on")
	clk.Advance(250 * time.Millisecond)
	check("advance")
	e.Toggle()
	check("toggle pause")
	e.Toggle()
	check("toggle play")
	e.Next()
	check("next")
	e.Play()
	check("play after next")
	e.Seek(1)
	check("seek")
	e.Play()
	e.SetPacing(pacing.DefaultConfig())
	check("set pacing")
	e.Stop()
	check("stop")
}

func TestSetWPMReschedulesPendingStep(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load(fiveWords)
	e.Play()
	clk.Advance(400 * time.Millisecond)
	e.SetWPM(60)
	clk.Advance(100 * time.Millisecond)
	if e.Status().Position != 0 {
		t.Fatalf("stale 500ms delay fired after WPM change")
	}
	clk.Advance(499 * time.Millisecond)
	if e.Status().Position != 0 {
		t.Fatalf("advanced before the new 1s delay elapsed")
	}
	clk.Advance(time.Millisecond)
	if e.Status().Position != 1 {
		t.Fatalf("expected advance 1s after the word appeared, got %d", e.Status().Position)
	}
	clk.Advance(999 * time.Millisecond)
	if e.Status().Position != 1 {
		t.Fatalf("next word did not get the full 1s delay")
	}
	clk.Advance(time.Millisecond)
	if e.Status().Position != 2 {
		t.Fatalf("expected position 2, got %d", e.Status().Position)
	}
}

func TestSetWPMFasterAdvancesOverdueWord(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load(fiveWords)
	e.Play()
	clk.Advance(400 * time.Millisecond)
	e.SetWPM(600)
	clk.Advance(0)
	if e.Status().Position != 1 {
		t.Fatalf("word already shown longer than 100ms should advance, got %d", e.Status().Position)
	}
}

func TestRepeatedSetWPMDoesNotStall(t *testing.T) {
	e, clk, rec := newTestEngine(t, WithWPM(600))
	e.Load(fiveWords)
	e.Play()
	for i := 0; i < 20; i++ {
		clk.Advance(50 * time.Millisecond)
		e.SetWPM(600)
	}
	if st := e.Status(); st.State != StateFinished {
		t.Fatalf("playback stalled at %d in state %s", st.Position, st.State)
	}
	if n := rec.count(EventConfigChanged); n != 0 {
		t.Fatalf("unchanged WPM emitted %d config events", n)
	}
}

func TestRepeatedConfigChangesKeepPace(t *testing.T) {
	e, clk, _ := newTestEngine(t, WithWPM(600))
	e.Load(fiveWords)
	e.Play()
	for i := 0; i < 8; i++ {
		clk.Advance(50 * time.Millisecond)
		if i%2 == 0 {
			e.SetWPM(590)
		} else {
			e.SetWPM(600)
		}
	}
	if pos := e.Status().Position; pos < 3 {
		t.Fatalf("alternating WPM restarted word delays, position %d after 400ms", pos)
	}
}

func TestUnchangedSmartAndPacingAreNoops(t *testing.T) {
	e, _, rec := newTestEngine(t)
	e.Load(fiveWords)
	e.SetSmartReading(false)
	e.SetPacing(pacing.DefaultConfig())
	if n := rec.count(EventConfigChanged); n != 0 {
		t.Fatalf("expected no config events, got %d", n)
	}
	e.SetSmartReading(true)
	if n := rec.count(EventConfigChanged); n != 1 {
		t.Fatalf("expected one config event, got %d", n)
	}
}

func TestSmartReadingDelays(t *testing.T) {
	e, clk, _ := newTestEngine(t, WithWPM(300), WithSmartReading(true))
	e.Load("a abcdefghij end")
	cfg := pacing.DefaultConfig()
	short := pacing.SmartDelay("a", cfg.BaseDelay(300), cfg)
	long := pacing.SmartDelay("abcdefghij", cfg.BaseDelay(300), cfg)

	e.Play()
	clk.Advance(short - time.Millisecond)
	if e.Status().Position != 0 {
		t.Fatalf("advanced before the short word delay")
	}
	clk.Advance(time.Millisecond)
	if e.Status().Position != 1 {
		t.Fatalf("expected advance after %v", short)
	}
	clk.Advance(long - time.Millisecond)
	if e.Status().Position != 1 {
		t.Fatalf("advanced before the long word delay")
	}
	clk.Advance(time.Millisecond)
	if e.Status().Position != 2 {
		t.Fatalf("expected advance after %v", long)
	}
}

func TestLoadResetsEverything(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load(fiveWords)
	e.Play()
	clk.Advance(1100 * time.Millisecond)
	e.Load("fresh text")
	st := e.Status()
	if st.State != StateIdle || st.Position != 0 || st.Elapsed != 0 || st.Total != 2 {
		t.Fatalf("unexpected status after reload: %+v", st)
	}
	if clk.Pending() != 0 {
		t.Fatalf("reload left a pending timer")
	}
}

func TestLoadAtClampsAndPauses(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.LoadAt(fiveWords, 42, 3*time.Second)
	st := e.Status()
	if st.Position != 4 || st.State != StatePaused || st.Elapsed != 3*time.Second {
		t.Fatalf("unexpected restored status: %+v", st)
	}
	e.LoadAt(fiveWords, 0, 0)
	if st := e.Status(); st.State != StateIdle {
		t.Fatalf("expected idle for a fresh position, got %s", st.State)
	}
	e.LoadAt("", 3, time.Second)
	if st := e.Status(); st.State != StateIdle || st.Position != 0 {
		t.Fatalf("expected idle empty engine, got %+v", st)
	}
}

func TestCloseStopsScheduling(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	e.Load(fiveWords)
	e.Play()
	clk.Advance(300 * time.Millisecond)
	e.Close()
	if clk.Pending() != 0 {
		t.Fatalf("close left a pending timer")
	}
	st := e.Status()
	if st.State != StatePaused || st.Elapsed != 300*time.Millisecond {
		t.Fatalf("expected paused engine with folded time, got %+v", st)
	}
	e.Play()
	if e.Status().State == StatePlaying {
		t.Fatalf("closed engine started playing")
	}
}

func TestObserverMayCallBack(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	var e *Engine
	e = New(WithClock(clk), WithWPM(120), WithObserver(func(ev Event) {
		if ev.Type == EventPositionChanged && ev.Status.Position == 2 {
			e.Pause()
		}
	}))
	e.Load(fiveWords)
	e.Play()
	clk.Advance(5 * time.Second)
	st := e.Status()
	if st.State != StatePaused || st.Position != 2 {
		t.Fatalf("expected observer to pause at 2, got %s at %d", st.State, st.Position)
	}
}

func TestRealClockFinishes(t *testing.T) {
	done := make(chan Event, 1)
	e := New(WithWPM(6000), WithObserver(func(ev Event) {
		if ev.Type == EventFinished {
			done <- ev
		}
	}))
	defer e.Close()
	e.Load("one two three")
	e.Play()
	select {
	case ev := <-done:
		if ev.Status.Position != 3 {
			t.Fatalf("expected position 3, got %d", ev.Status.Position)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback to finish")
	}
}

func TestStateStrings(t *testing.T) {
	if StatePlaying.String() != "playing" || State(99).String() != "unknown" {
		t.Fatalf("unexpected state strings")
	}
	if EventFinished.String() != "finished" {
		t.Fatalf("unexpected event string")
	}
}
