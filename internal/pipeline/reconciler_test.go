package pipeline

import (
	"math"
	"testing"
	"time"

	"SVUEngine/internal/domain/models"
)

var testBucket = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestReconciler() *Reconciler {
	return NewReconciler([]string{"primary", "secondary", "fallback"}, 0.02, 0.3, nil, nil)
}

func TestSourceConfidenceLadder(t *testing.T) {
	r := newTestReconciler()
	if c := r.SourceConfidence("primary"); c != 0.95 {
		t.Fatalf("primary confidence %v", c)
	}
	if c := r.SourceConfidence("secondary"); math.Abs(c-0.85) > 1e-12 {
		t.Fatalf("secondary confidence %v", c)
	}
	if c := r.SourceConfidence("unknown"); c != 0.40 {
		t.Fatalf("unlisted confidence %v", c)
	}
}

func TestReconcileAgreement(t *testing.T) {
	r := newTestReconciler()
	rp, ok := r.Reconcile(2, 0, models.DomainPrice, testBucket, []SourcePoint{
		{SourceID: "primary", Value: 100},
		{SourceID: "secondary", Value: 101},
	})
	if !ok {
		t.Fatalf("expected reconciled point")
	}
	if rp.Conflicted {
		t.Fatalf("within threshold must not conflict")
	}
	// weighted average between 100 and 101, closer to the primary
	if rp.Value <= 100 || rp.Value >= 101 {
		t.Fatalf("expected value between sources, got %v", rp.Value)
	}
	if rp.Value > 100.5 {
		t.Fatalf("expected value weighted toward primary, got %v", rp.Value)
	}
	if rp.Confidence > 0.95 {
		t.Fatalf("confidence must not exceed max contributor, got %v", rp.Confidence)
	}
}

func TestReconcileConflictPrefersPriority(t *testing.T) {
	r := newTestReconciler()
	rp, ok := r.Reconcile(2, 0, models.DomainPrice, testBucket, []SourcePoint{
		{SourceID: "secondary", Value: 150},
		{SourceID: "primary", Value: 100},
	})
	if !ok {
		t.Fatalf("expected reconciled point")
	}
	if !rp.Conflicted {
		t.Fatalf("expected conflict flag")
	}
	if rp.Value != 100 {
		t.Fatalf("expected primary's value, got %v", rp.Value)
	}
	if rp.Confidence >= 0.95 {
		t.Fatalf("conflict must reduce confidence, got %v", rp.Confidence)
	}
}

func TestReconcileSingleSource(t *testing.T) {
	r := newTestReconciler()
	rp, ok := r.Reconcile(2, 0, models.DomainPrice, testBucket, []SourcePoint{
		{SourceID: "fallback", Value: 42},
	})
	if !ok {
		t.Fatalf("expected reconciled point")
	}
	if rp.Value != 42 || rp.Confidence != 0.75 {
		t.Fatalf("unexpected point %+v", rp)
	}
}

func TestReconcileRejectsBelowMinConfidence(t *testing.T) {
	r := NewReconciler([]string{"primary"}, 0.02, 0.5, nil, nil)
	_, ok := r.Reconcile(2, 0, models.DomainPrice, testBucket, []SourcePoint{
		{SourceID: "unknown", Value: 42},
	})
	if ok {
		t.Fatalf("unlisted source at 0.40 must fall below 0.5 minimum")
	}
}

func TestReconcileEmpty(t *testing.T) {
	r := newTestReconciler()
	if _, ok := r.Reconcile(2, 0, models.DomainPrice, testBucket, nil); ok {
		t.Fatalf("no points must yield no value")
	}
}

func TestReconcileDeterministic(t *testing.T) {
	r := newTestReconciler()
	a, _ := r.Reconcile(2, 0, models.DomainPrice, testBucket, []SourcePoint{
		{SourceID: "primary", Value: 100},
		{SourceID: "secondary", Value: 101},
		{SourceID: "fallback", Value: 100.5},
	})
	b, _ := r.Reconcile(2, 0, models.DomainPrice, testBucket, []SourcePoint{
		{SourceID: "fallback", Value: 100.5},
		{SourceID: "primary", Value: 100},
		{SourceID: "secondary", Value: 101},
	})
	if a.Value != b.Value || a.Confidence != b.Confidence {
		t.Fatalf("input order changed result: %+v vs %+v", a, b)
	}
}
