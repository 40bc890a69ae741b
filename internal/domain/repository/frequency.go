package repository

import "time"

// Frequency is the canonical bucket cadence observations are aligned to.
type Frequency string

const (
	Freq1h Frequency = "1h"
	Freq1d Frequency = "1d"
	Freq1w Frequency = "1w"
)

// IsValidFrequency returns true if f is a supported cadence.
func IsValidFrequency(f Frequency) bool {
	switch f {
	case Freq1h, Freq1d, Freq1w:
		return true
	default:
		return false
	}
}

// DefaultFrequency returns the default cadence.
func DefaultFrequency() Frequency { return Freq1d }

// NormalizeFrequency converts a raw string to a valid frequency (or default).
func NormalizeFrequency(s string) Frequency {
	if s == "" {
		return DefaultFrequency()
	}
	f := Frequency(s)
	if IsValidFrequency(f) {
		return f
	}
	return DefaultFrequency()
}

// Duration returns the bucket width.
func (f Frequency) Duration() time.Duration {
	switch f {
	case Freq1h:
		return time.Hour
	case Freq1w:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Truncate aligns t down to the bucket boundary for the frequency.
// Weekly buckets start on Monday 00:00 UTC.
func (f Frequency) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch f {
	case Freq1h:
		return t.Truncate(time.Hour)
	case Freq1w:
		day := t.Truncate(24 * time.Hour)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return t.Truncate(24 * time.Hour)
	}
}
