// Package model defines shared data structures.
package model

import (
	"time"

	"github.com/verte-zerg/flashread/internal/pacing"
)

// Config defines reader settings.
type Config struct {
	WPM            int
	SmartReading   bool
	Pacing         pacing.Config
	Tick           time.Duration
	AutosavePeriod time.Duration
	Watch          bool
}

// HistoryConfig defines filters and options for history output.
type HistoryConfig struct {
	Since *time.Time
	Last  int
	// CompletedOnly hides runs that were abandoned before the last word.
	CompletedOnly bool
}

// Run captures one reading of a text, finished or abandoned.
type Run struct {
	ID           int64
	StartedAt    time.Time
	EndedAt      time.Time
	Source       string
	Words        int
	WordsRead    int
	WPM          int
	SmartReading bool
	ElapsedMs    int64
	Completed    bool
}
