package graph

import (
	"math"
	"testing"
	"time"

	"SVUEngine/internal/domain/models"
)

var testBucket = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func pricePoint(item int64, value, conf float64) models.ReconciledPoint {
	return models.ReconciledPoint{ItemID: item, Domain: models.DomainPrice, Bucket: testBucket, Value: value, Confidence: conf}
}

func ratePoint(item, quote int64, value, conf float64) models.ReconciledPoint {
	return models.ReconciledPoint{ItemID: item, QuoteItemID: quote, Domain: models.DomainExchangeRate, Bucket: testBucket, Value: value, Confidence: conf}
}

func findEdge(g *ValueGraph, from, to int64) (Edge, bool) {
	fi, ti := g.NodeIndex(from), g.NodeIndex(to)
	for _, e := range g.Edges {
		if e.From == fi && e.To == ti {
			return e, true
		}
	}
	return Edge{}, false
}

func TestBuildPriceEdges(t *testing.T) {
	b := NewBuilder(1, 0.02, nil)
	g, reason := b.Build(testBucket, []models.ReconciledPoint{
		pricePoint(1, 50, 0.95),
		pricePoint(2, 100, 0.85),
	})
	if reason != models.UnsolvedNone {
		t.Fatalf("unexpected reason %s", reason)
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(g.Nodes))
	}
	// canonical direction is low item -> high item; 1->2 carries the
	// inverse of price_2/price_1
	e, ok := findEdge(g, 1, 2)
	if !ok {
		t.Fatalf("missing edge 1->2")
	}
	if math.Abs(e.Ratio-0.5) > 1e-12 {
		t.Fatalf("expected ratio 0.5, got %v", e.Ratio)
	}
	if math.Abs(e.Confidence-0.85) > 1e-12 {
		t.Fatalf("expected confidence min(0.85,0.95), got %v", e.Confidence)
	}
}

func TestBuildNoBasePrice(t *testing.T) {
	b := NewBuilder(1, 0.02, nil)
	_, reason := b.Build(testBucket, []models.ReconciledPoint{
		pricePoint(2, 100, 0.85),
		pricePoint(3, 50, 0.85),
	})
	if reason != models.UnsolvedNoData {
		t.Fatalf("missing base must be no_data, got %s", reason)
	}
}

func TestBuildRateEdges(t *testing.T) {
	b := NewBuilder(1, 0.02, nil)
	g, reason := b.Build(testBucket, []models.ReconciledPoint{
		ratePoint(2, 1, 0.25, 0.9),
	})
	if reason != models.UnsolvedNone {
		t.Fatalf("unexpected reason %s", reason)
	}
	e, ok := findEdge(g, 1, 2)
	if !ok {
		t.Fatalf("missing collapsed edge 1->2")
	}
	// edge 2->1 ratio 0.25 becomes 1->2 ratio 4 in canonical direction
	if math.Abs(e.Ratio-4) > 1e-9 {
		t.Fatalf("expected ratio 4, got %v", e.Ratio)
	}
}

func TestBuildCollapsesReciprocalRates(t *testing.T) {
	b := NewBuilder(1, 0.02, nil)
	g, reason := b.Build(testBucket, []models.ReconciledPoint{
		ratePoint(2, 1, 0.25, 0.9),
		ratePoint(1, 2, 4.0, 0.9),
	})
	if reason != models.UnsolvedNone {
		t.Fatalf("unexpected reason %s", reason)
	}
	if len(g.Edges) != 1 {
		t.Fatalf("reciprocal rates must collapse to 1 edge, got %d", len(g.Edges))
	}
	if math.Abs(g.Edges[0].Ratio-4) > 1e-9 {
		t.Fatalf("expected combined ratio 4, got %v", g.Edges[0].Ratio)
	}
	if g.Edges[0].Confidence > 0.9 {
		t.Fatalf("combined confidence above max contributor: %v", g.Edges[0].Confidence)
	}
}

func TestBuildAuditsInconsistentReciprocal(t *testing.T) {
	audit := &fakeAudit{}
	b := NewBuilder(1, 0.01, audit)
	// r_ab * r_ba = 4.0 * 0.3 = 1.2, well outside tolerance
	_, _ = b.Build(testBucket, []models.ReconciledPoint{
		ratePoint(2, 1, 0.3, 0.9),
		ratePoint(1, 2, 4.0, 0.9),
	})
	if len(audit.events) != 1 || audit.events[0].Kind != models.AuditRateInconsistency {
		t.Fatalf("expected one rate_inconsistency event, got %+v", audit.events)
	}
}

func TestBuildSynthesizesSingleHop(t *testing.T) {
	b := NewBuilder(1, 0.02, nil)
	// 2->1 and 3->1 share quote 1: synthesize 2<->3
	g, reason := b.Build(testBucket, []models.ReconciledPoint{
		ratePoint(2, 1, 4.0, 0.9),
		ratePoint(3, 1, 2.0, 0.8),
	})
	if reason != models.UnsolvedNone {
		t.Fatalf("unexpected reason %s", reason)
	}
	e, ok := findEdge(g, 2, 3)
	if !ok {
		t.Fatalf("missing synthesized edge 2->3")
	}
	if math.Abs(e.Ratio-2) > 1e-9 {
		t.Fatalf("expected synthesized ratio 2, got %v", e.Ratio)
	}
	if math.Abs(e.Confidence-0.72) > 1e-9 {
		t.Fatalf("expected chained confidence 0.72, got %v", e.Confidence)
	}
}

func TestBuildEmptyBucket(t *testing.T) {
	b := NewBuilder(1, 0.02, nil)
	_, reason := b.Build(testBucket, nil)
	if reason != models.UnsolvedNoData {
		t.Fatalf("expected no_data, got %s", reason)
	}
}

type fakeAudit struct {
	events []models.AuditEvent
}

func (f *fakeAudit) Record(ev models.AuditEvent) { f.events = append(f.events, ev) }

func (f *fakeAudit) Events(itemID int64, kind string, limit int) []models.AuditEvent {
	return f.events
}
