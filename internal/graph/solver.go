package graph

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"SVUEngine/internal/domain/models"
)

// Result is the outcome of solving one bucket's value graph.
type Result struct {
	State    models.BucketState
	Reason   models.UnsolvedReason
	Anchors  map[int64]models.Anchor
	Unsolved map[int64]models.UnsolvedReason
}

// Solver computes globally consistent anchors from a value graph. The
// weighted-least-squares implementation below is the reference; a learned
// model can substitute behind the same contract.
type Solver interface {
	Solve(g *ValueGraph, baseItemID int64) Result
}

// WLSSolver treats each edge's log ratio as a noisy linear constraint
// log(anchor_from) - log(anchor_to) = log(ratio), weighted by confidence,
// and solves the normal equations with log(anchor_base) fixed at zero.
// Only the connected component containing the base item is solved; items in
// other components are reported unsolved, never defaulted.
type WLSSolver struct {
	conditionBound   float64 // factorization condition number sanity bound
	residualVarBound float64 // per-item weighted residual variance bound
}

// NewWLSSolver creates the reference solver with the given sanity bounds.
func NewWLSSolver(conditionBound, residualVarBound float64) *WLSSolver {
	return &WLSSolver{conditionBound: conditionBound, residualVarBound: residualVarBound}
}

// Solve is deterministic and CPU-only: identical graphs yield identical
// anchors and residuals. The solve is atomic per bucket, either fully
// applied or fully discarded.
func (s *WLSSolver) Solve(g *ValueGraph, baseItemID int64) Result {
	res := Result{
		Anchors:  make(map[int64]models.Anchor),
		Unsolved: make(map[int64]models.UnsolvedReason),
	}
	if g == nil || len(g.Nodes) == 0 || len(g.Edges) == 0 {
		res.State = models.BucketUnsolved
		res.Reason = models.UnsolvedNoData
		return res
	}
	base := g.NodeIndex(baseItemID)
	if base < 0 {
		res.State = models.BucketUnsolved
		res.Reason = models.UnsolvedNoData
		for _, id := range g.Nodes {
			res.Unsolved[id] = models.UnsolvedNoData
		}
		return res
	}

	component := baseComponent(g, base)
	for i, id := range g.Nodes {
		if !component[i] {
			res.Unsolved[id] = models.UnsolvedNoBaseConnectivity
		}
	}

	// Unknowns: component nodes except the base, in arena order.
	unknown := make([]int, 0, len(g.Nodes))
	col := make(map[int]int, len(g.Nodes))
	for i := range g.Nodes {
		if component[i] && i != base {
			col[i] = len(unknown)
			unknown = append(unknown, i)
		}
	}

	solvedAt := time.Now().UTC()
	res.Anchors[baseItemID] = models.Anchor{
		ItemID:   baseItemID,
		Bucket:   g.Bucket,
		Value:    1.0,
		Residual: 0,
		SolvedAt: solvedAt,
	}
	if len(unknown) == 0 {
		res.State = models.BucketSolved
		return res
	}

	n := len(unknown)
	normal := mat.NewSymDense(n, nil)
	rhs := mat.NewVecDense(n, nil)
	for _, e := range g.Edges {
		if !component[e.From] || !component[e.To] {
			continue
		}
		w := e.Confidence
		d := math.Log(e.Ratio)
		ia, aOK := col[e.From]
		ib, bOK := col[e.To]
		switch {
		case aOK && bOK:
			lo, hi := ia, ib
			if lo > hi {
				lo, hi = hi, lo
			}
			normal.SetSym(ia, ia, normal.At(ia, ia)+w)
			normal.SetSym(ib, ib, normal.At(ib, ib)+w)
			normal.SetSym(lo, hi, normal.At(lo, hi)-w)
			rhs.SetVec(ia, rhs.AtVec(ia)+w*d)
			rhs.SetVec(ib, rhs.AtVec(ib)-w*d)
		case aOK: // To is the base, log(anchor_base) = 0
			normal.SetSym(ia, ia, normal.At(ia, ia)+w)
			rhs.SetVec(ia, rhs.AtVec(ia)+w*d)
		case bOK: // From is the base
			normal.SetSym(ib, ib, normal.At(ib, ib)+w)
			rhs.SetVec(ib, rhs.AtVec(ib)-w*d)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(normal); !ok {
		return s.illConditioned(g, res, component, base)
	}
	if s.conditionBound > 0 && chol.Cond() > s.conditionBound {
		return s.illConditioned(g, res, component, base)
	}

	var x mat.VecDense
	if err := chol.SolveVecTo(&x, rhs); err != nil {
		return s.illConditioned(g, res, component, base)
	}

	// Log anchors per arena index; base fixed at 0.
	logAnchor := make(map[int]float64, n+1)
	logAnchor[base] = 0
	for k, i := range unknown {
		logAnchor[i] = x.AtVec(k)
	}

	// Per-item weighted residual variance over incident edges: a quality
	// signal, and a per-item rejection guard against near-singular systems
	// fed by sparse or contradictory edges.
	resSum := make(map[int]float64, n+1)
	wSum := make(map[int]float64, n+1)
	for _, e := range g.Edges {
		if !component[e.From] || !component[e.To] {
			continue
		}
		r := logAnchor[e.From] - logAnchor[e.To] - math.Log(e.Ratio)
		wr := e.Confidence * r * r
		resSum[e.From] += wr
		wSum[e.From] += e.Confidence
		resSum[e.To] += wr
		wSum[e.To] += e.Confidence
	}

	for _, i := range unknown {
		id := g.Nodes[i]
		variance := 0.0
		if wSum[i] > 0 {
			variance = resSum[i] / wSum[i]
		}
		if s.residualVarBound > 0 && variance > s.residualVarBound {
			res.Unsolved[id] = models.UnsolvedIllConditioned
			continue
		}
		res.Anchors[id] = models.Anchor{
			ItemID:   id,
			Bucket:   g.Bucket,
			Value:    math.Exp(logAnchor[i]),
			Residual: math.Sqrt(variance),
			SolvedAt: solvedAt,
		}
	}

	res.State = models.BucketSolved
	if len(res.Anchors) <= 1 && len(res.Unsolved) > 0 {
		res.State = models.BucketUnsolved
		res.Reason = models.UnsolvedIllConditioned
	}
	return res
}

func (s *WLSSolver) illConditioned(g *ValueGraph, res Result, component []bool, base int) Result {
	res.State = models.BucketUnsolved
	res.Reason = models.UnsolvedIllConditioned
	for i, id := range g.Nodes {
		if component[i] && i != base {
			res.Unsolved[id] = models.UnsolvedIllConditioned
		}
	}
	delete(res.Anchors, g.Nodes[base])
	return res
}

// baseComponent marks nodes reachable from the base treating edges as
// undirected.
func baseComponent(g *ValueGraph, base int) []bool {
	adj := make([][]int, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}
	seen := make([]bool, len(g.Nodes))
	queue := []int{base}
	seen[base] = true
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, u := range adj[v] {
			if !seen[u] {
				seen[u] = true
				queue = append(queue, u)
			}
		}
	}
	return seen
}
