// Package graph builds the per-bucket value graph and solves it for
// globally consistent anchors relative to the base item.
package graph

import (
	"fmt"
	"math"
	"time"

	"SVUEngine/internal/domain/models"
	domrepo "SVUEngine/internal/domain/repository"
)

// Edge is a directed relative-value constraint between two arena nodes:
// value(From) / value(To) observed as Ratio with the given confidence.
type Edge struct {
	From       int
	To         int
	Ratio      float64
	Confidence float64
}

// ValueGraph is the weighted value graph for a single time bucket. Nodes
// live in a per-bucket arena indexed by position; the graph is rebuilt every
// run and discarded after solving, so no cross-bucket pointers exist.
type ValueGraph struct {
	Bucket time.Time
	Nodes  []int64 // arena index -> item id
	Edges  []Edge

	index map[int64]int
}

func newValueGraph(bucket time.Time) *ValueGraph {
	return &ValueGraph{Bucket: bucket, index: make(map[int64]int)}
}

// NodeIndex returns the arena index for an item, or -1.
func (g *ValueGraph) NodeIndex(itemID int64) int {
	if i, ok := g.index[itemID]; ok {
		return i
	}
	return -1
}

func (g *ValueGraph) node(itemID int64) int {
	if i, ok := g.index[itemID]; ok {
		return i
	}
	i := len(g.Nodes)
	g.Nodes = append(g.Nodes, itemID)
	g.index[itemID] = i
	return i
}

// Builder derives a ValueGraph from the bucket's reconciled points.
type Builder struct {
	baseItemID      int64
	rateConsistency float64 // reciprocal-rate tolerance for audit
	audit           domrepo.AuditLog
}

// NewBuilder creates a graph builder anchored at baseItemID.
func NewBuilder(baseItemID int64, rateConsistency float64, audit domrepo.AuditLog) *Builder {
	return &Builder{baseItemID: baseItemID, rateConsistency: rateConsistency, audit: audit}
}

// Build creates the bucket's value graph. Price points relate an item to the
// base item through their common unit; exchange-rate points relate an item
// to its quote item directly. Duplicate edges between the same pair are
// collapsed by confidence-weighted averaging in log space so correlated
// sources are not double-counted. A pair of items related only through a
// common quote item gets a synthesized single-hop edge whose confidence is
// the product of the chain's confidences.
//
// Returns UnsolvedNoData when the bucket has no usable points or when base
// item data is entirely missing: the bucket must never be solved against a
// stale or default base.
func (b *Builder) Build(bucket time.Time, points []models.ReconciledPoint) (*ValueGraph, models.UnsolvedReason) {
	g := newValueGraph(bucket)
	if len(points) == 0 {
		return g, models.UnsolvedNoData
	}

	var basePrice *models.ReconciledPoint
	var prices []models.ReconciledPoint
	var rates []models.ReconciledPoint
	for i := range points {
		p := points[i]
		if p.Value <= 0 || p.Confidence <= 0 {
			continue
		}
		switch p.Domain {
		case models.DomainPrice:
			if p.ItemID == b.baseItemID {
				bp := p
				basePrice = &bp
			}
			prices = append(prices, p)
		case models.DomainExchangeRate:
			rates = append(rates, p)
		}
	}

	type rawEdge struct {
		fromItem, toItem int64
		ratio, conf      float64
	}
	var raw []rawEdge

	// Price edges: item -> base, ratio = price_item / price_base. Requires
	// base price data in the same bucket.
	if basePrice != nil {
		for _, p := range prices {
			if p.ItemID == b.baseItemID {
				continue
			}
			raw = append(raw, rawEdge{
				fromItem: p.ItemID,
				toItem:   b.baseItemID,
				ratio:    p.Value / basePrice.Value,
				conf:     math.Min(p.Confidence, basePrice.Confidence),
			})
		}
	}

	// Rate edges: item -> quote, ratio as reported.
	for _, p := range rates {
		raw = append(raw, rawEdge{fromItem: p.ItemID, toItem: p.QuoteItemID, ratio: p.Value, conf: p.Confidence})
	}

	// Synthesized single-hop edges through a common quote item: a->c and
	// b->c imply a->b = r_ac / r_bc with confidence decayed by the chain.
	direct := make(map[[2]int64]bool, len(raw))
	for _, e := range raw {
		direct[pairKey(e.fromItem, e.toItem)] = true
	}
	byQuote := make(map[int64][]models.ReconciledPoint)
	for _, p := range rates {
		byQuote[p.QuoteItemID] = append(byQuote[p.QuoteItemID], p)
	}
	for _, group := range byQuote {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, c := group[i], group[j]
				if a.ItemID == c.ItemID || direct[pairKey(a.ItemID, c.ItemID)] {
					continue
				}
				raw = append(raw, rawEdge{
					fromItem: a.ItemID,
					toItem:   c.ItemID,
					ratio:    a.Value / c.Value,
					conf:     a.Confidence * c.Confidence,
				})
			}
		}
	}

	if len(raw) == 0 {
		return g, models.UnsolvedNoData
	}

	// Collapse redundant edges per unordered pair: canonical direction is
	// (low item -> high item); reverse edges contribute their inverse ratio.
	// Combined log ratio is the confidence-weighted mean; combined confidence
	// is the weighted mean of contributors (never above the maximum).
	type agg struct {
		wSum, logSum, confSum, maxConf float64
		logs                           []float64
		confs                          []float64
	}
	combined := make(map[[2]int64]*agg)
	order := make([][2]int64, 0, len(raw))
	for _, e := range raw {
		key := pairKey(e.fromItem, e.toItem)
		logRatio := math.Log(e.ratio)
		if e.fromItem != key[0] {
			logRatio = -logRatio
		}
		a, ok := combined[key]
		if !ok {
			a = &agg{}
			combined[key] = a
			order = append(order, key)
		}
		a.wSum += e.conf
		a.logSum += e.conf * logRatio
		a.confSum += e.conf * e.conf
		if e.conf > a.maxConf {
			a.maxConf = e.conf
		}
		a.logs = append(a.logs, logRatio)
		a.confs = append(a.confs, e.conf)
	}

	for _, key := range order {
		a := combined[key]
		b.auditInconsistency(bucket, key, a.logs)
		conf := a.confSum / a.wSum
		if conf > a.maxConf {
			conf = a.maxConf
		}
		g.Edges = append(g.Edges, Edge{
			From:       g.node(key[0]),
			To:         g.node(key[1]),
			Ratio:      math.Exp(a.logSum / a.wSum),
			Confidence: conf,
		})
	}

	if g.NodeIndex(b.baseItemID) < 0 {
		// The graph must contain the base whenever any other item is present.
		return g, models.UnsolvedNoData
	}
	return g, models.UnsolvedNone
}

// auditInconsistency records a rate_inconsistency event when redundant edges
// for the same pair disagree beyond tolerance (e.g. |r_ab*r_ba - 1| too
// large for a reciprocal pair).
func (b *Builder) auditInconsistency(bucket time.Time, key [2]int64, logs []float64) {
	if b.audit == nil || len(logs) < 2 || b.rateConsistency <= 0 {
		return
	}
	lo, hi := logs[0], logs[0]
	for _, l := range logs {
		if l < lo {
			lo = l
		}
		if l > hi {
			hi = l
		}
	}
	// In log space, |r_ab * r_ba - 1| > eps is |log r_ab + log r_ba| > ~eps.
	if hi-lo > b.rateConsistency {
		b.audit.Record(models.AuditEvent{
			Kind:   models.AuditRateInconsistency,
			ItemID: key[0],
			Bucket: bucket,
			Reason: "redundant_edges_disagree",
			Detail: fmt.Sprintf("pair=(%d,%d) log_spread=%.4f", key[0], key[1], hi-lo),
			At:     time.Now().UTC(),
		})
	}
}

func pairKey(a, c int64) [2]int64 {
	if a < c {
		return [2]int64{a, c}
	}
	return [2]int64{c, a}
}
