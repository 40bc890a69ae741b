package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}

func TestParseTimeDateOnly(t *testing.T) {
    got, ok := ParseTime("2024-10-10")
    if !ok {
        t.Fatalf("expected ok")
    }
    want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
    if !got.Equal(want) {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestAlignFromToWeekly(t *testing.T) {
    from := time.Date(2024, 10, 10, 13, 0, 0, 0, time.UTC) // Thursday
    to := time.Date(2024, 10, 12, 1, 0, 0, 0, time.UTC)    // Saturday
    af, at := AlignFromTo(from, to, "1w")
    monday := time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC)
    if !af.Equal(monday) || !at.Equal(monday) {
        t.Fatalf("expected both aligned to %v, got %v %v", monday, af, at)
    }
}

func TestAlignFromToHourly(t *testing.T) {
    from := time.Date(2024, 10, 10, 13, 45, 12, 0, time.UTC)
    af, _ := AlignFromTo(from, from, "1h")
    if !af.Equal(time.Date(2024, 10, 10, 13, 0, 0, 0, time.UTC)) {
        t.Fatalf("unexpected align %v", af)
    }
}