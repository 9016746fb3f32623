// Package engine drives word-by-word playback of a loaded text.
package engine

import (
	"time"

	"github.com/verte-zerg/flashread/internal/pacing"
)

// State is the playback state of an Engine.
type State int

const (
	// StateIdle means nothing is loaded or playback was stopped.
	StateIdle State = iota
	// StatePlaying means the advancement timer is active.
	StatePlaying
	// StatePaused means playback is suspended with the position kept.
	StatePaused
	// StateFinished means playback ran past the last word.
	StateFinished
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// EventType identifies what changed in an Event.
type EventType int

const (
	// EventLoaded fires after new text replaced the word sequence.
	EventLoaded EventType = iota
	// EventStateChanged fires on play, pause and stop.
	EventStateChanged
	// EventPositionChanged fires when the current word changes.
	EventPositionChanged
	// EventFinished fires once when playback runs past the last word.
	EventFinished
	// EventConfigChanged fires when WPM or pacing settings change.
	EventConfigChanged
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventLoaded:
		return "loaded"
	case EventStateChanged:
		return "state"
	case EventPositionChanged:
		return "position"
	case EventFinished:
		return "finished"
	case EventConfigChanged:
		return "config"
	default:
		return "unknown"
	}
}

// Event is delivered to the observer after each transition.
type Event struct {
	Type   EventType
	Status Status
}

// Status is a point-in-time view of an Engine.
type Status struct {
	State State
	// Position is the current word index; Position == Total once finished.
	Position int
	Total    int
	// Word is the word at Position, empty when finished or nothing is loaded.
	Word          string
	Source        string
	Elapsed       time.Duration
	TotalEstimate time.Duration
	WPM           float64
	SmartReading  bool
	Pacing        pacing.Config
}

// Empty reports whether no words are loaded.
func (s Status) Empty() bool {
	return s.Total == 0
}

// Finished reports whether playback ran past the last word.
func (s Status) Finished() bool {
	return s.State == StateFinished
}

// DisplayPosition returns the 1-based word number for display. It stays on
// the last word when finished and is 0 when nothing is loaded.
func (s Status) DisplayPosition() int {
	if s.Total == 0 {
		return 0
	}
	return min(s.Position, s.Total-1) + 1
}

// CanPlay reports whether Play would start playback.
func (s Status) CanPlay() bool {
	return s.Total > 0 && s.State != StatePlaying
}

// CanPause reports whether Pause would suspend playback.
func (s Status) CanPause() bool {
	return s.State == StatePlaying
}

// CanPrev reports whether Prev would move backwards.
func (s Status) CanPrev() bool {
	return s.Total > 0 && s.Position > 0
}

// CanNext reports whether Next would move forwards.
func (s Status) CanNext() bool {
	return s.Total > 0 && s.Position < s.Total-1
}
