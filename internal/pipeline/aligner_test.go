package pipeline

import (
	"testing"
	"time"

	"SVUEngine/internal/domain/models"
	domrepo "SVUEngine/internal/domain/repository"
)

func validated(o models.Observation) models.ValidatedObservation {
	return models.ValidatedObservation{Observation: o, Valid: true}
}

func TestAlignCarryForwardWithinGap(t *testing.T) {
	rules := testRules()
	a := NewAligner(domrepo.Freq1d, rules, 0, 0)

	d1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	d4 := time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)
	series := a.Align([]models.ValidatedObservation{
		validated(priceObs(2, "primary", d1, 100)),
		validated(priceObs(2, "primary", d4, 104)),
	})
	if len(series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(series))
	}
	pts := series[0].Points
	if len(pts) != 4 {
		t.Fatalf("expected 4 buckets, got %d", len(pts))
	}
	if pts[0].Missing || pts[0].Value != 100 || pts[0].Carried {
		t.Fatalf("day 1 should be direct 100: %+v", pts[0])
	}
	if pts[1].Missing || pts[1].Value != 100 || !pts[1].Carried {
		t.Fatalf("day 2 should carry 100: %+v", pts[1])
	}
	if pts[2].Missing || pts[2].Value != 100 || !pts[2].Carried {
		t.Fatalf("day 3 should carry 100: %+v", pts[2])
	}
	if pts[3].Missing || pts[3].Value != 104 || pts[3].Carried {
		t.Fatalf("day 4 should be direct 104: %+v", pts[3])
	}
}

func TestAlignMissingBeyondGap(t *testing.T) {
	rules := testRules()
	rules.PriceMaxGap = 24 * time.Hour
	a := NewAligner(domrepo.Freq1d, rules, 0, 0)

	d1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	d5 := time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)
	series := a.Align([]models.ValidatedObservation{
		validated(priceObs(2, "primary", d1, 100)),
		validated(priceObs(2, "primary", d5, 105)),
	})
	pts := series[0].Points
	if len(pts) != 5 {
		t.Fatalf("expected 5 buckets, got %d", len(pts))
	}
	// day 2 nominal timestamp is 14h after the observation: within the 24h gap
	if pts[1].Missing || !pts[1].Carried {
		t.Fatalf("day 2 should carry: %+v", pts[1])
	}
	// days 3 and 4 exceed the gap: missing, never interpolated
	if !pts[2].Missing || !pts[3].Missing {
		t.Fatalf("days 3-4 should be missing: %+v %+v", pts[2], pts[3])
	}
	if pts[4].Missing || pts[4].Value != 105 {
		t.Fatalf("day 5 should be direct 105: %+v", pts[4])
	}
}

func TestAlignNoLookahead(t *testing.T) {
	rules := testRules()
	a := NewAligner(domrepo.Freq1d, rules, 0, 0)

	d2 := time.Date(2024, 6, 2, 23, 0, 0, 0, time.UTC)
	d1 := time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC)
	series := a.Align([]models.ValidatedObservation{
		validated(priceObs(2, "primary", d2, 200)),
		validated(priceObs(2, "primary", d1, 100)),
	})
	pts := series[0].Points
	if pts[0].Value != 100 {
		t.Fatalf("day 1 must not see day 2's value: %+v", pts[0])
	}
	if pts[1].Value != 200 {
		t.Fatalf("day 2 should be 200: %+v", pts[1])
	}
}

func TestAlignSeparatesStreams(t *testing.T) {
	rules := testRules()
	a := NewAligner(domrepo.Freq1d, rules, 0, 0)

	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	series := a.Align([]models.ValidatedObservation{
		validated(priceObs(2, "primary", ts, 100)),
		validated(priceObs(2, "secondary", ts, 101)),
		validated(priceObs(3, "primary", ts, 50)),
	})
	if len(series) != 3 {
		t.Fatalf("expected 3 streams, got %d", len(series))
	}
	// deterministic order: item then source
	if series[0].ItemID != 2 || series[0].SourceID != "primary" {
		t.Fatalf("unexpected first stream %+v", series[0])
	}
	if series[1].ItemID != 2 || series[1].SourceID != "secondary" {
		t.Fatalf("unexpected second stream %+v", series[1])
	}
	if series[2].ItemID != 3 {
		t.Fatalf("unexpected third stream %+v", series[2])
	}
}

func TestTrendDirection(t *testing.T) {
	rules := testRules()
	a := NewAligner(domrepo.Freq1d, rules, 2, 4)

	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	rising := make([]models.ValidatedObservation, 0, 6)
	for i := 0; i < 6; i++ {
		rising = append(rising, validated(priceObs(2, "primary", start.AddDate(0, 0, i), 100+float64(i)*10)))
	}
	series := a.Align(rising)
	if series[0].TrendDir != 1 {
		t.Fatalf("expected rising trend, got %d", series[0].TrendDir)
	}

	falling := make([]models.ValidatedObservation, 0, 6)
	for i := 0; i < 6; i++ {
		falling = append(falling, validated(priceObs(2, "primary", start.AddDate(0, 0, i), 200-float64(i)*10)))
	}
	series = a.Align(falling)
	if series[0].TrendDir != -1 {
		t.Fatalf("expected falling trend, got %d", series[0].TrendDir)
	}
}

func TestBucketsEnumeration(t *testing.T) {
	from := time.Date(2024, 6, 1, 5, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 3, 20, 0, 0, 0, time.UTC)
	got := Buckets(domrepo.Freq1d, from, to)
	if len(got) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(got))
	}
	if !got[0].Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first bucket %v", got[0])
	}
}
