package util

import (
    "strconv"
    "time"
)

// ParseTime tries RFC3339, RFC3339Nano, YYYY-MM-DD, and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if t, err := time.Parse("2006-01-02", s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// AlignFromTo rounds the time range to bucket boundaries for the frequency.
// Weekly buckets start on Monday UTC.
func AlignFromTo(from, to time.Time, freq string) (time.Time, time.Time) {
    switch freq {
    case "1h":
        from = from.UTC().Truncate(time.Hour)
        to = to.UTC().Truncate(time.Hour)
    case "1w":
        from = weekStart(from)
        to = weekStart(to)
    default: // 1d
        from = from.UTC().Truncate(24 * time.Hour)
        to = to.UTC().Truncate(24 * time.Hour)
    }
    return from, to
}

func weekStart(t time.Time) time.Time {
    t = t.UTC().Truncate(24 * time.Hour)
    offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
    return t.AddDate(0, 0, -offset)
}

// No extra helpers here; use strconv where needed.