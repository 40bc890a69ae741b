package pipeline

import (
	"testing"
	"time"

	"SVUEngine/internal/domain/models"
)

func TestNormalizerWindowOneIsIdentity(t *testing.T) {
	n := NewNormalizer(1)
	s := alignedSeries([]float64{100, 120, 140})

	out := n.Smooth(s)
	for i, p := range out.Points {
		if p.Value != s.Points[i].Value {
			t.Fatalf("point %d changed under window 1: %v -> %v", i, s.Points[i].Value, p.Value)
		}
	}
}

func TestNormalizerTrailingMean(t *testing.T) {
	n := NewNormalizer(2)
	out := n.Smooth(alignedSeries([]float64{100, 120, 140}))

	want := []float64{100, 110, 130}
	for i, p := range out.Points {
		if p.Value != want[i] {
			t.Fatalf("point %d: expected %v, got %v", i, want[i], p.Value)
		}
	}
}

func TestNormalizerSkipsMissingPoints(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := models.AlignedSeries{ItemID: 2, SourceID: "primary", Domain: models.DomainPrice}
	s.Points = []models.AlignedPoint{
		{Bucket: start, Value: 100},
		{Bucket: start.AddDate(0, 0, 1), Missing: true},
		{Bucket: start.AddDate(0, 0, 2), Value: 120},
	}

	out := NewNormalizer(2).Smooth(s)
	if !out.Points[1].Missing || out.Points[1].Value != 0 {
		t.Fatalf("missing point must stay missing: %+v", out.Points[1])
	}
	// The gap does not reset the window: 120 averages with 100.
	if out.Points[2].Value != 110 {
		t.Fatalf("expected 110 after gap, got %v", out.Points[2].Value)
	}
}

func TestNormalizerLeavesRatesUntouched(t *testing.T) {
	s := alignedSeries([]float64{4.0, 4.2, 4.4})
	s.Domain = models.DomainExchangeRate

	out := NewNormalizer(3).Smooth(s)
	for i, p := range out.Points {
		if p.Value != s.Points[i].Value {
			t.Fatalf("rate point %d changed: %v -> %v", i, s.Points[i].Value, p.Value)
		}
	}
}

func TestNormalizerDoesNotMutateInput(t *testing.T) {
	s := alignedSeries([]float64{100, 120})
	NewNormalizer(2).Smooth(s)
	if s.Points[1].Value != 120 {
		t.Fatalf("input series mutated: %v", s.Points[1].Value)
	}
}
