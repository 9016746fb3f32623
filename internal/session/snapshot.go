// Package session captures engine state for persistence and restores it.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/verte-zerg/flashread/internal/engine"
	"github.com/verte-zerg/flashread/internal/pacing"
)

// snapshotVersion is bumped when the record layout changes.
const snapshotVersion = 1

// ErrMalformed reports a persisted record that cannot be restored.
var ErrMalformed = errors.New("malformed session record")

// Snapshot is a point-in-time copy of the persisted engine state.
type Snapshot struct {
	Version      int       `json:"version"`
	SourceText   string    `json:"source_text"`
	Source       string    `json:"source,omitempty"`
	Position     int       `json:"position"`
	WPM          float64   `json:"wpm"`
	SmartReading bool      `json:"smart_reading"`
	ElapsedMs    int64     `json:"elapsed_ms"`
	SavedAt      time.Time `json:"saved_at"`
}

// StatusSource is implemented by *engine.Engine.
type StatusSource interface {
	Status() engine.Status
}

// Capture copies the state of e. An in-progress run is included in the
// elapsed time without being folded into the engine.
func Capture(e StatusSource) Snapshot {
	st := e.Status()
	return Snapshot{
		Version:      snapshotVersion,
		SourceText:   st.Source,
		Position:     st.Position,
		WPM:          st.WPM,
		SmartReading: st.SmartReading,
		ElapsedMs:    st.Elapsed.Milliseconds(),
	}
}

// Valid reports whether s holds restorable state.
func (s Snapshot) Valid() bool {
	return s.Version == snapshotVersion
}

// Elapsed returns the saved elapsed time.
func (s Snapshot) Elapsed() time.Duration {
	return time.Duration(s.ElapsedMs) * time.Millisecond
}

// Restore builds a fresh engine from s. opts provide the defaults used when
// s is not valid; a valid snapshot overrides the speed and smart flag. The
// returned engine never plays on its own.
func Restore(s Snapshot, opts ...engine.Option) *engine.Engine {
	if s.Valid() {
		if s.WPM > 0 {
			opts = append(opts, engine.WithWPM(s.WPM))
		}
		opts = append(opts, engine.WithSmartReading(s.SmartReading))
	}
	e := engine.New(opts...)
	if s.Valid() {
		e.LoadAt(s.SourceText, s.Position, s.Elapsed())
	}
	return e
}

// Encode serializes s as a flat JSON record.
func Encode(s Snapshot) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(data), nil
}

// Decode parses a record written by Encode.
func Decode(raw string) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if s.Version != snapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: unsupported version %d", ErrMalformed, s.Version)
	}
	if s.ElapsedMs < 0 {
		return Snapshot{}, fmt.Errorf("%w: negative elapsed time", ErrMalformed)
	}
	// Zero means the speed was not saved and the default applies.
	if math.IsNaN(s.WPM) || (s.WPM != 0 && (s.WPM < pacing.MinWPM || s.WPM > pacing.MaxWPM)) {
		return Snapshot{}, fmt.Errorf("%w: wpm %v outside %d-%d", ErrMalformed, s.WPM, pacing.MinWPM, pacing.MaxWPM)
	}
	return s, nil
}
