// Package pacing maps a reading speed and a word to its display time.
package pacing

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

// Defaults for Config.
const (
	DefaultWPM            = 300
	DefaultBaseWordLength = 5
	DefaultSpeedUpMax     = 0.85
	DefaultSlowDownMax    = 1.25
	DefaultShortRef       = 1
	DefaultLongRef        = 10
	DefaultMinDelay       = 100 * time.Millisecond
	DefaultFallbackDelay  = 3000 * time.Millisecond
)

// Displayable WPM range used by interactive controls.
const (
	MinWPM = 20
	MaxWPM = 600
)

// Config holds the smart reading tuning constants.
type Config struct {
	// BaseWordLength is the length that gets the unmodified base delay.
	BaseWordLength int
	// SpeedUpMax is the smallest factor, reached at ShortRef and below.
	SpeedUpMax float64
	// SlowDownMax is the largest factor, reached at LongRef and above.
	SlowDownMax float64
	ShortRef    int
	LongRef     int
	// MinDelay is the floor applied to smart delays.
	MinDelay time.Duration
	// FallbackDelay is used when the WPM is not a positive number.
	FallbackDelay time.Duration
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		BaseWordLength: DefaultBaseWordLength,
		SpeedUpMax:     DefaultSpeedUpMax,
		SlowDownMax:    DefaultSlowDownMax,
		ShortRef:       DefaultShortRef,
		LongRef:        DefaultLongRef,
		MinDelay:       DefaultMinDelay,
		FallbackDelay:  DefaultFallbackDelay,
	}
}

// Validate reports tuning values that would break the interpolation.
func (c Config) Validate() error {
	if c.BaseWordLength <= 0 {
		return fmt.Errorf("base word length must be > 0")
	}
	if c.SpeedUpMax <= 0 || c.SpeedUpMax > 1 {
		return fmt.Errorf("speed-up factor must be in (0, 1]")
	}
	if c.SlowDownMax < 1 {
		return fmt.Errorf("slow-down factor must be >= 1")
	}
	if c.ShortRef < 0 || c.ShortRef > c.BaseWordLength {
		return fmt.Errorf("short reference length must be between 0 and the base word length")
	}
	if c.LongRef < c.BaseWordLength {
		return fmt.Errorf("long reference length must be >= the base word length")
	}
	if c.MinDelay < 0 {
		return fmt.Errorf("minimum delay must be >= 0")
	}
	if c.FallbackDelay <= 0 {
		return fmt.Errorf("fallback delay must be > 0")
	}
	return nil
}

// BaseDelay returns the per-word delay for wpm using the default fallback.
func BaseDelay(wpm float64) time.Duration {
	return baseDelay(wpm, DefaultFallbackDelay)
}

// BaseDelay returns the per-word delay for wpm, ignoring word length.
func (c Config) BaseDelay(wpm float64) time.Duration {
	fallback := c.FallbackDelay
	if fallback <= 0 {
		fallback = DefaultFallbackDelay
	}
	return baseDelay(wpm, fallback)
}

func baseDelay(wpm float64, fallback time.Duration) time.Duration {
	if math.IsNaN(wpm) || math.IsInf(wpm, 0) || wpm <= 0 {
		return fallback
	}
	ns := 60 / wpm * float64(time.Second)
	// Speeds too slow for a Duration would wrap to a negative delay.
	if math.IsInf(ns, 0) || ns >= math.MaxInt64 {
		return fallback
	}
	return time.Duration(ns)
}

// Factor returns the multiplier applied to the base delay for a word of the
// given length, clamped into [SpeedUpMax, SlowDownMax].
func (c Config) Factor(length int) float64 {
	factor := 1.0
	shortRange := c.BaseWordLength - c.ShortRef
	longRange := c.LongRef - c.BaseWordLength
	switch {
	case length < c.BaseWordLength && shortRange > 0:
		effective := max(c.ShortRef, length)
		factor = 1.0 - (1.0-c.SpeedUpMax)*float64(c.BaseWordLength-effective)/float64(shortRange)
	case length > c.BaseWordLength && longRange > 0:
		effective := min(c.LongRef, length)
		factor = 1.0 + (c.SlowDownMax-1.0)*float64(effective-c.BaseWordLength)/float64(longRange)
	}
	return math.Max(c.SpeedUpMax, math.Min(c.SlowDownMax, factor))
}

// SmartDelay scales base by the word's length and applies the MinDelay
// floor. An empty word keeps the base delay.
func SmartDelay(word string, base time.Duration, cfg Config) time.Duration {
	if base <= 0 {
		base = cfg.BaseDelay(0)
	}
	factor := 1.0
	if word != "" {
		factor = cfg.Factor(utf8.RuneCountInString(word))
	}
	delay := time.Duration(float64(base) * factor)
	if delay < cfg.MinDelay {
		return cfg.MinDelay
	}
	return delay
}

// Delay returns the display time of word at wpm, honoring the smart flag.
func (c Config) Delay(word string, wpm float64, smart bool) time.Duration {
	base := c.BaseDelay(wpm)
	if !smart {
		return base
	}
	return SmartDelay(word, base, c)
}

// TotalEstimate returns the time to show count words at the base delay.
func (c Config) TotalEstimate(count int, wpm float64) time.Duration {
	if count <= 0 {
		return 0
	}
	base := c.BaseDelay(wpm)
	if base > 0 && time.Duration(count) > math.MaxInt64/base {
		return math.MaxInt64
	}
	return time.Duration(count) * base
}

// ClampWPM limits wpm to the displayable range.
func ClampWPM(wpm int) int {
	return max(MinWPM, min(MaxWPM, wpm))
}

// PlaybackTotal returns the time to show every word at wpm, honoring the
// smart flag.
func (c Config) PlaybackTotal(words []string, wpm float64, smart bool) time.Duration {
	if !smart {
		return c.TotalEstimate(len(words), wpm)
	}
	base := c.BaseDelay(wpm)
	var total time.Duration
	for _, w := range words {
		d := SmartDelay(w, base, c)
		if total > math.MaxInt64-d {
			return math.MaxInt64
		}
		total += d
	}
	return total
}
