// Package humanize paces browser interactions so they resemble a person at
// a keyboard: randomized pauses, gradual scrolling, and per-character typing
// with occasional corrected typos.
package humanize

import (
	"math/rand/v2"
	"strings"
	"time"
)

const (
	SpeedFast = "fast"
	SpeedSafe = "safe"
)

// Range is an inclusive delay window.
type Range struct {
	Min time.Duration
	Max time.Duration
}

func secs(min, max float64) Range {
	return Range{
		Min: time.Duration(min * float64(time.Second)),
		Max: time.Duration(max * float64(time.Second)),
	}
}

// Pick draws a uniform duration from r.
func (r Range) Pick(rng *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rng.Int64N(int64(r.Max-r.Min)+1))
}

// Scale multiplies both ends by f.
func (r Range) Scale(f float64) Range {
	return Range{Min: time.Duration(float64(r.Min) * f), Max: time.Duration(float64(r.Max) * f)}
}

type Profile struct {
	Name     string
	Scroll   Range
	Type     Range
	Click    Range
	Page     Range
	Cooldown Range
	// TypoChance is the per-character probability of a typo that is then corrected.
	TypoChance float64
}

// ProposalPace is the typing window for long free text, independent of the profile.
var ProposalPace = secs(0.03, 0.08)

// ProfileFor returns the named profile; anything unknown is treated as safe.
func ProfileFor(name string) Profile {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SpeedFast:
		return Profile{
			Name:     SpeedFast,
			Scroll:   secs(0.1, 0.3),
			Type:     secs(0.02, 0.05),
			Click:    secs(0.2, 0.4),
			Page:     secs(1, 2),
			Cooldown: secs(120, 180),
		}
	default:
		return Profile{
			Name:       SpeedSafe,
			Scroll:     secs(0.2, 0.5),
			Type:       secs(0.03, 0.08),
			Click:      secs(0.3, 0.6),
			Page:       secs(2, 4),
			Cooldown:   secs(180, 300),
			TypoChance: 0.05,
		}
	}
}
