package config

import (
	"time"

	"github.com/verte-zerg/flashread/internal/pacing"
)

// ApplyPacing overlays the file's pacing values on cfg.
func (f FileConfig) ApplyPacing(cfg pacing.Config) pacing.Config {
	p := f.Pacing
	if p.BaseWordLength != nil {
		cfg.BaseWordLength = *p.BaseWordLength
	}
	if p.SpeedUpMax != nil {
		cfg.SpeedUpMax = *p.SpeedUpMax
	}
	if p.SlowDownMax != nil {
		cfg.SlowDownMax = *p.SlowDownMax
	}
	if p.ShortRef != nil {
		cfg.ShortRef = *p.ShortRef
	}
	if p.LongRef != nil {
		cfg.LongRef = *p.LongRef
	}
	if p.MinDelayMs != nil {
		cfg.MinDelay = time.Duration(*p.MinDelayMs) * time.Millisecond
	}
	if p.FallbackDelayMs != nil {
		cfg.FallbackDelay = time.Duration(*p.FallbackDelayMs) * time.Millisecond
	}
	return cfg
}
