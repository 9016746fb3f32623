package tui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/flashread/internal/engine"
)

// DefaultBridgeSize is the event buffer used by NewBridge callers in main.
const DefaultBridgeSize = 256

// Bridge carries engine events into the Bubble Tea loop. The engine calls
// Observe from its timer goroutine; the program drains the buffer through
// Wait. Events are dropped when the buffer is full, because the view always
// re-reads the engine status.
type Bridge struct {
	ch      chan engine.Event
	dropped atomic.Int64
}

// NewBridge returns a Bridge buffering up to size events.
func NewBridge(size int) *Bridge {
	if size < 1 {
		size = 1
	}
	return &Bridge{ch: make(chan engine.Event, size)}
}

// Observe is an engine.Observer. It never blocks.
func (b *Bridge) Observe(ev engine.Event) {
	select {
	case b.ch <- ev:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns how many events did not fit the buffer.
func (b *Bridge) Dropped() int64 {
	return b.dropped.Load()
}

// Wait returns a command that delivers the next event as an EventMsg.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		return EventMsg(<-b.ch)
	}
}

// EventMsg is an engine event delivered to the model.
type EventMsg engine.Event
