package graph

import (
	"math"
	"testing"

	"SVUEngine/internal/domain/models"
)

func buildGraph(t *testing.T, points []models.ReconciledPoint) *ValueGraph {
	t.Helper()
	b := NewBuilder(1, 0.02, nil)
	g, reason := b.Build(testBucket, points)
	if reason != models.UnsolvedNone {
		t.Fatalf("build failed: %s", reason)
	}
	return g
}

func TestSolveBaseAnchorIsOne(t *testing.T) {
	g := buildGraph(t, []models.ReconciledPoint{
		pricePoint(1, 50, 0.95),
		pricePoint(2, 100, 0.85),
	})
	s := NewWLSSolver(1e8, 1.0)
	res := s.Solve(g, 1)
	if res.State != models.BucketSolved {
		t.Fatalf("expected solved, got %s (%s)", res.State, res.Reason)
	}
	base, ok := res.Anchors[1]
	if !ok || base.Value != 1.0 || base.Residual != 0 {
		t.Fatalf("base anchor must be exactly 1.0 with zero residual: %+v", base)
	}
}

func TestSolveSingleEdge(t *testing.T) {
	g := buildGraph(t, []models.ReconciledPoint{
		pricePoint(1, 50, 0.95),
		pricePoint(2, 100, 0.85),
	})
	s := NewWLSSolver(1e8, 1.0)
	res := s.Solve(g, 1)
	a, ok := res.Anchors[2]
	if !ok {
		t.Fatalf("item 2 not solved")
	}
	if math.Abs(a.Value-2.0) > 1e-9 {
		t.Fatalf("expected anchor 2.0, got %v", a.Value)
	}
	if a.Residual > 1e-9 {
		t.Fatalf("single consistent edge must have zero residual, got %v", a.Residual)
	}
}

func TestSolveTransitiveChain(t *testing.T) {
	// 2->1 rate 4, 3->2 rate 0.5: anchor(3) = 4 * 0.5 = 2
	g := buildGraph(t, []models.ReconciledPoint{
		ratePoint(2, 1, 4.0, 0.9),
		ratePoint(3, 2, 0.5, 0.9),
	})
	s := NewWLSSolver(1e8, 1.0)
	res := s.Solve(g, 1)
	if res.State != models.BucketSolved {
		t.Fatalf("expected solved, got %s", res.State)
	}
	a2, a3 := res.Anchors[2], res.Anchors[3]
	if math.Abs(a2.Value-4.0) > 1e-9 {
		t.Fatalf("expected anchor(2)=4, got %v", a2.Value)
	}
	if math.Abs(a3.Value-2.0) > 1e-9 {
		t.Fatalf("expected anchor(3)=2, got %v", a3.Value)
	}
}

func TestSolveDisconnectedComponent(t *testing.T) {
	// items 4 and 5 relate only to each other, not to the base
	g := buildGraph(t, []models.ReconciledPoint{
		ratePoint(2, 1, 4.0, 0.9),
		ratePoint(4, 5, 2.0, 0.9),
	})
	s := NewWLSSolver(1e8, 1.0)
	res := s.Solve(g, 1)
	if res.State != models.BucketSolved {
		t.Fatalf("base component should still solve, got %s", res.State)
	}
	if _, ok := res.Anchors[4]; ok {
		t.Fatalf("disconnected item must not get an anchor")
	}
	if res.Unsolved[4] != models.UnsolvedNoBaseConnectivity || res.Unsolved[5] != models.UnsolvedNoBaseConnectivity {
		t.Fatalf("disconnected items must report no_base_connectivity: %+v", res.Unsolved)
	}
}

func TestSolveOverdeterminedResidual(t *testing.T) {
	// Two contradictory constraints for item 2: direct rate 4, and a path
	// through item 3 implying 4.4; residual must be nonzero.
	g := buildGraph(t, []models.ReconciledPoint{
		ratePoint(2, 1, 4.0, 0.9),
		ratePoint(3, 1, 2.0, 0.9),
		ratePoint(2, 3, 2.2, 0.9),
	})
	s := NewWLSSolver(1e8, 1.0)
	res := s.Solve(g, 1)
	if res.State != models.BucketSolved {
		t.Fatalf("expected solved, got %s", res.State)
	}
	a2 := res.Anchors[2]
	if a2.Value <= 4.0 || a2.Value >= 4.4 {
		t.Fatalf("anchor(2) should land between the constraints, got %v", a2.Value)
	}
	if a2.Residual <= 0 {
		t.Fatalf("contradictory constraints must leave residual, got %v", a2.Residual)
	}
}

func TestSolveDeterministic(t *testing.T) {
	points := []models.ReconciledPoint{
		ratePoint(2, 1, 4.0, 0.9),
		ratePoint(3, 1, 2.0, 0.8),
		ratePoint(2, 3, 2.1, 0.7),
	}
	s := NewWLSSolver(1e8, 1.0)
	first := s.Solve(buildGraph(t, points), 1)
	for i := 0; i < 5; i++ {
		again := s.Solve(buildGraph(t, points), 1)
		for id, a := range first.Anchors {
			b := again.Anchors[id]
			if a.Value != b.Value || a.Residual != b.Residual {
				t.Fatalf("solve not deterministic for item %d: %v vs %v", id, a.Value, b.Value)
			}
		}
	}
}

func TestSolveEmptyGraph(t *testing.T) {
	s := NewWLSSolver(1e8, 1.0)
	res := s.Solve(nil, 1)
	if res.State != models.BucketUnsolved || res.Reason != models.UnsolvedNoData {
		t.Fatalf("nil graph must be unsolved no_data, got %s %s", res.State, res.Reason)
	}
}

func TestSolveConditionBoundRejectsBucket(t *testing.T) {
	// A solvable chain under an impossibly tight condition bound: the whole
	// bucket is rejected, not just individual items.
	g := buildGraph(t, []models.ReconciledPoint{
		ratePoint(2, 1, 4.0, 0.9),
		ratePoint(3, 2, 0.5, 0.9),
	})
	s := NewWLSSolver(1e-9, 1.0)
	res := s.Solve(g, 1)
	if res.State != models.BucketUnsolved || res.Reason != models.UnsolvedIllConditioned {
		t.Fatalf("expected unsolved ill_conditioned, got %s (%s)", res.State, res.Reason)
	}
	if _, ok := res.Anchors[1]; ok {
		t.Fatalf("ill-conditioned bucket must not keep the base anchor")
	}
	if res.Unsolved[2] != models.UnsolvedIllConditioned || res.Unsolved[3] != models.UnsolvedIllConditioned {
		t.Fatalf("component items must report ill_conditioned: %+v", res.Unsolved)
	}
}

func TestSolveResidualVarianceBound(t *testing.T) {
	// Wildly contradictory constraints with a tight bound reject the item.
	g := buildGraph(t, []models.ReconciledPoint{
		ratePoint(2, 1, 4.0, 0.9),
		ratePoint(3, 1, 2.0, 0.9),
		ratePoint(2, 3, 20.0, 0.9),
	})
	s := NewWLSSolver(1e8, 0.01)
	res := s.Solve(g, 1)
	if len(res.Unsolved) == 0 {
		t.Fatalf("expected items rejected by residual bound")
	}
	for id, reason := range res.Unsolved {
		if reason != models.UnsolvedIllConditioned {
			t.Fatalf("item %d: expected ill_conditioned, got %s", id, reason)
		}
	}
}
