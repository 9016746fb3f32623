package engine

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/verte-zerg/flashread/internal/clock"
	"github.com/verte-zerg/flashread/internal/elapsed"
	"github.com/verte-zerg/flashread/internal/pacing"
	"github.com/verte-zerg/flashread/internal/text"
)

// ErrIndexOutOfRange is returned by Jump for an index outside the loaded text.
var ErrIndexOutOfRange = errors.New("word index out of range")

// Observer receives engine events. It is called without the engine lock
// held, so it may call back into the engine.
type Observer func(Event)

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for delays and elapsed time.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger for transition tracing.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers the event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithPacing sets the smart reading tuning.
func WithPacing(cfg pacing.Config) Option {
	return func(e *Engine) {
		e.pacing = cfg
	}
}

// WithWPM sets the initial reading speed.
func WithWPM(wpm float64) Option {
	return func(e *Engine) {
		e.wpm = wpm
	}
}

// WithSmartReading sets the initial smart reading flag.
func WithSmartReading(enabled bool) Option {
	return func(e *Engine) {
		e.smart = enabled
	}
}

// Engine owns one word sequence and at most one pending advancement timer.
// All methods are safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	clock    clock.Clock
	logger   *log.Logger
	observer Observer

	source   string
	words    text.Words
	position int
	state    State

	wpm    float64
	smart  bool
	pacing pacing.Config

	elapsed *elapsed.Accumulator

	// timer is the single pending advancement; gen invalidates callbacks
	// that were already running when the timer was cancelled.
	timer  clock.Timer
	gen    uint64
	closed bool
	// stepStart is when the current word's delay began.
	stepStart time.Time
}

// New returns an idle Engine with nothing loaded.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock:  clock.Real(),
		logger: log.New(io.Discard),
		wpm:    pacing.DefaultWPM,
		pacing: pacing.DefaultConfig(),
		words:  text.Words{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.elapsed = elapsed.New(e.clock)
	return e
}

// Load replaces the text and returns the number of words. The engine ends
// up idle at the first word with elapsed time cleared.
func (e *Engine) Load(source string) int {
	e.mu.Lock()
	e.cancelLocked()
	e.source = source
	e.words = text.Tokenize(source)
	e.position = 0
	e.state = StateIdle
	e.elapsed.Reset()
	n := len(e.words)
	e.logger.Debug("text loaded", "words", n)
	ev := e.eventLocked(EventLoaded)
	e.mu.Unlock()
	e.emit(ev)
	return n
}

// LoadAt replaces the text and positions the engine without playing. The
// position is clamped into the text. The engine is paused when it has a
// position or elapsed time to resume from, and idle otherwise.
func (e *Engine) LoadAt(source string, position int, spent time.Duration) int {
	e.mu.Lock()
	e.cancelLocked()
	e.source = source
	e.words = text.Tokenize(source)
	n := len(e.words)
	e.position = 0
	e.elapsed.Reset()
	if n > 0 {
		e.position = max(0, min(position, n-1))
		e.elapsed.Set(spent)
	}
	e.state = StateIdle
	if n > 0 && (e.position > 0 || e.elapsed.Current() > 0) {
		e.state = StatePaused
	}
	e.logger.Debug("text restored", "words", n, "position", e.position, "elapsed", e.elapsed.Current())
	ev := e.eventLocked(EventLoaded)
	e.mu.Unlock()
	e.emit(ev)
	return n
}

// Play starts or resumes playback. Playing a finished text restarts it from
// the first word. Play is a no-op when nothing is loaded or already playing.
func (e *Engine) Play() {
	e.mu.Lock()
	if e.closed || len(e.words) == 0 || e.state == StatePlaying {
		e.mu.Unlock()
		return
	}
	e.cancelLocked()
	events := []Event{}
	if e.position >= len(e.words) {
		e.position = 0
		e.elapsed.Reset()
		events = append(events, e.eventLocked(EventPositionChanged))
	}
	e.state = StatePlaying
	e.elapsed.MarkRunStart()
	e.scheduleLocked()
	e.logger.Debug("play", "position", e.position)
	events = append(events, e.eventLocked(EventStateChanged))
	e.mu.Unlock()
	e.emit(events...)
}

// Pause suspends playback and keeps the position. It is a no-op unless
// playing.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.state != StatePlaying {
		e.mu.Unlock()
		return
	}
	e.pauseLocked()
	ev := e.eventLocked(EventStateChanged)
	e.mu.Unlock()
	e.emit(ev)
}

// Toggle pauses when playing and plays otherwise.
func (e *Engine) Toggle() {
	e.mu.Lock()
	playing := e.state == StatePlaying
	e.mu.Unlock()
	if playing {
		e.Pause()
		return
	}
	e.Play()
}

// Stop cancels playback and rewinds to the first word with elapsed time
// cleared. Stopping an idle engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StateIdle && e.position == 0 && e.elapsed.Current() == 0 {
		e.mu.Unlock()
		return
	}
	e.cancelLocked()
	e.position = 0
	e.elapsed.Reset()
	e.state = StateIdle
	e.logger.Debug("stop")
	ev := e.eventLocked(EventStateChanged)
	e.mu.Unlock()
	e.emit(ev)
}

// Prev pauses and moves to the previous word.
func (e *Engine) Prev() {
	e.step(-1)
}

// Next pauses and moves to the next word, stopping at the last one.
func (e *Engine) Next() {
	e.step(1)
}

// Jump pauses and moves to index. An index outside the text is rejected with
// ErrIndexOutOfRange and leaves the engine unchanged.
func (e *Engine) Jump(index int) error {
	e.mu.Lock()
	if index < 0 || index >= len(e.words) {
		n := len(e.words)
		e.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, n)
	}
	ev := e.seekLocked(index)
	e.mu.Unlock()
	e.emit(ev)
	return nil
}

// Seek pauses and moves to index clamped into the text. It is meant for
// scrubbing, where out-of-range values are a normal part of dragging.
func (e *Engine) Seek(index int) {
	e.mu.Lock()
	if len(e.words) == 0 {
		e.mu.Unlock()
		return
	}
	ev := e.seekLocked(index)
	e.mu.Unlock()
	e.emit(ev)
}

func (e *Engine) step(delta int) {
	e.mu.Lock()
	if len(e.words) == 0 {
		e.mu.Unlock()
		return
	}
	ev := e.seekLocked(e.position + delta)
	e.mu.Unlock()
	e.emit(ev)
}

// SetWPM changes the reading speed. A pending advancement is rescheduled so
// that the current word shows for the new delay counted from when it
// appeared. Setting the current speed again is a no-op.
func (e *Engine) SetWPM(wpm float64) {
	e.mu.Lock()
	if wpm == e.wpm {
		e.mu.Unlock()
		return
	}
	e.wpm = wpm
	ev := e.reconfigureLocked()
	e.mu.Unlock()
	e.emit(ev)
}

// SetSmartReading toggles length-based delays.
func (e *Engine) SetSmartReading(enabled bool) {
	e.mu.Lock()
	if enabled == e.smart {
		e.mu.Unlock()
		return
	}
	e.smart = enabled
	ev := e.reconfigureLocked()
	e.mu.Unlock()
	e.emit(ev)
}

// SetPacing replaces the smart reading tuning.
func (e *Engine) SetPacing(cfg pacing.Config) {
	e.mu.Lock()
	if cfg == e.pacing {
		e.mu.Unlock()
		return
	}
	e.pacing = cfg
	ev := e.reconfigureLocked()
	e.mu.Unlock()
	e.emit(ev)
}

// Status returns the current state of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// Close cancels any pending advancement. A playing engine is left paused so
// that its elapsed time stays accurate. Later calls to Play are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.state == StatePlaying {
		e.pauseLocked()
	}
	e.cancelLocked()
	e.closed = true
}

func (e *Engine) pauseLocked() {
	e.cancelLocked()
	e.elapsed.FoldRun()
	e.state = StatePaused
	e.logger.Debug("pause", "position", e.position, "elapsed", e.elapsed.Current())
}

func (e *Engine) seekLocked(index int) Event {
	if e.state == StatePlaying {
		e.pauseLocked()
	} else {
		e.cancelLocked()
	}
	e.state = StatePaused
	e.position = max(0, min(index, len(e.words)-1))
	// Scrubbing does not know the true time spent, so estimate it.
	e.elapsed.Set(time.Duration(e.position) * e.pacing.BaseDelay(e.wpm))
	e.logger.Debug("seek", "position", e.position)
	return e.eventLocked(EventPositionChanged)
}

func (e *Engine) reconfigureLocked() Event {
	if e.state == StatePlaying && !e.closed {
		shown := e.clock.Now().Sub(e.stepStart)
		e.armLocked(max(e.delayLocked(e.words.At(e.position))-shown, 0))
	}
	e.logger.Debug("config changed", "wpm", e.wpm, "smart", e.smart)
	return e.eventLocked(EventConfigChanged)
}

// scheduleLocked replaces any pending advancement with one for the current
// word.
func (e *Engine) scheduleLocked() {
	e.stepStart = e.clock.Now()
	e.armLocked(e.delayLocked(e.words.At(e.position)))
}

func (e *Engine) armLocked(delay time.Duration) {
	e.cancelLocked()
	gen := e.gen
	e.timer = e.clock.AfterFunc(delay, func() {
		e.advance(gen)
	})
}

func (e *Engine) cancelLocked() {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) advance(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.state != StatePlaying {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	var ev Event
	if e.position+1 < len(e.words) {
		e.position++
		e.scheduleLocked()
		ev = e.eventLocked(EventPositionChanged)
	} else {
		e.gen++
		e.position = len(e.words)
		e.elapsed.FoldRun()
		e.state = StateFinished
		e.logger.Debug("finished", "words", len(e.words), "elapsed", e.elapsed.Current())
		ev = e.eventLocked(EventFinished)
	}
	e.mu.Unlock()
	e.emit(ev)
}

func (e *Engine) delayLocked(word string) time.Duration {
	return e.pacing.Delay(word, e.wpm, e.smart)
}

func (e *Engine) statusLocked() Status {
	return Status{
		State:         e.state,
		Position:      e.position,
		Total:         len(e.words),
		Word:          e.words.At(e.position),
		Source:        e.source,
		Elapsed:       e.elapsed.Current(),
		TotalEstimate: e.pacing.TotalEstimate(len(e.words), e.wpm),
		WPM:           e.wpm,
		SmartReading:  e.smart,
		Pacing:        e.pacing,
	}
}

func (e *Engine) eventLocked(t EventType) Event {
	return Event{Type: t, Status: e.statusLocked()}
}

func (e *Engine) emit(events ...Event) {
	if e.observer == nil {
		return
	}
	for _, ev := range events {
		e.observer(ev)
	}
}
