package pipeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"SVUEngine/internal/domain/models"
	domrepo "SVUEngine/internal/domain/repository"
)

// Source confidence ladder: listed priority sources step down from the top
// rank; unlisted sources get the default.
const (
	topSourceConfidence     = 0.95
	sourceConfidenceStep    = 0.10
	minListedConfidence     = 0.50
	unlistedSourceConfid    = 0.40
	conflictPenaltyExponent = 1.0
)

// SourcePoint is one source's surviving (validated, non-anomalous) value
// for an (item, bucket).
type SourcePoint struct {
	SourceID string
	Value    float64
}

// Reconciler merges multiple sources' points for the same (item, bucket)
// into one confidence-weighted value, resolving conflicts by priority and
// consistency thresholds.
type Reconciler struct {
	rank                 map[string]int // source -> priority rank, 0 = highest
	consistencyThreshold float64
	minConfidence        float64
	audit                domrepo.AuditLog
	metrics              domrepo.Metrics
}

// NewReconciler creates a Reconciler. prioritySources is ordered, highest
// trust first.
func NewReconciler(prioritySources []string, consistencyThreshold, minConfidence float64, audit domrepo.AuditLog, metrics domrepo.Metrics) *Reconciler {
	rank := make(map[string]int, len(prioritySources))
	for i, s := range prioritySources {
		if _, ok := rank[s]; !ok {
			rank[s] = i
		}
	}
	return &Reconciler{
		rank:                 rank,
		consistencyThreshold: consistencyThreshold,
		minConfidence:        minConfidence,
		audit:                audit,
		metrics:              metrics,
	}
}

// SourceConfidence returns the base trust score for a source derived from
// its priority rank.
func (r *Reconciler) SourceConfidence(sourceID string) float64 {
	i, listed := r.rank[sourceID]
	if !listed {
		return unlistedSourceConfid
	}
	c := topSourceConfidence - float64(i)*sourceConfidenceStep
	if c < minListedConfidence {
		c = minListedConfidence
	}
	return c
}

// Reconcile merges the surviving points for one (item, bucket). Returns
// false when no point survives or the merged confidence falls below the
// minimum; a rejected point propagates as missing, never as zero.
func (r *Reconciler) Reconcile(itemID, quoteItemID int64, domain models.Domain, bucket time.Time, points []SourcePoint) (models.ReconciledPoint, bool) {
	if len(points) == 0 {
		return models.ReconciledPoint{}, false
	}

	// Deterministic order: best rank first, then source id.
	sorted := make([]SourcePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		ci, cj := r.SourceConfidence(sorted[i].SourceID), r.SourceConfidence(sorted[j].SourceID)
		if ci != cj {
			return ci > cj
		}
		return sorted[i].SourceID < sorted[j].SourceID
	})

	rp := models.ReconciledPoint{
		ItemID:      itemID,
		QuoteItemID: quoteItemID,
		Domain:      domain,
		Bucket:      bucket,
	}
	for _, p := range sorted {
		rp.Sources = append(rp.Sources, p.SourceID)
	}

	if len(sorted) == 1 {
		rp.Value = sorted[0].Value
		rp.Confidence = r.SourceConfidence(sorted[0].SourceID)
		return r.emit(rp)
	}

	spread, maxConf := r.spread(sorted)

	if spread <= r.consistencyThreshold {
		// Agreement: confidence-weighted average. The merged confidence is
		// the weighted mean of contributors, so it can never exceed the
		// maximum contributing confidence.
		var wSum, vSum, cSum float64
		for _, p := range sorted {
			w := r.SourceConfidence(p.SourceID)
			wSum += w
			vSum += w * p.Value
			cSum += w * w
		}
		rp.Value = vSum / wSum
		rp.Confidence = cSum / wSum
		if rp.Confidence > maxConf {
			rp.Confidence = maxConf
		}
		return r.emit(rp)
	}

	// Disagreement beyond threshold: prefer the highest-priority source and
	// downweight confidence proportionally to the disagreement magnitude.
	rp.Value = sorted[0].Value
	rp.Confidence = r.SourceConfidence(sorted[0].SourceID) / math.Pow(1+spread, conflictPenaltyExponent)
	rp.Conflicted = true
	if r.metrics != nil {
		r.metrics.RecordConflict()
	}
	if r.audit != nil {
		r.audit.Record(models.AuditEvent{
			Kind:     models.AuditConflict,
			ItemID:   itemID,
			SourceID: sorted[0].SourceID,
			Bucket:   bucket,
			Reason:   "sources_disagree",
			Value:    rp.Value,
			Detail:   fmt.Sprintf("spread=%.4f sources=%v", spread, rp.Sources),
			At:       time.Now().UTC(),
		})
	}
	return r.emit(rp)
}

func (r *Reconciler) emit(rp models.ReconciledPoint) (models.ReconciledPoint, bool) {
	if rp.Confidence < r.minConfidence {
		if r.audit != nil {
			r.audit.Record(models.AuditEvent{
				Kind:   models.AuditLowConfidence,
				ItemID: rp.ItemID,
				Bucket: rp.Bucket,
				Reason: "below_min_confidence",
				Value:  rp.Value,
				Detail: fmt.Sprintf("confidence=%.4f", rp.Confidence),
				At:     time.Now().UTC(),
			})
		}
		if r.metrics != nil {
			r.metrics.RecordRejection("below_min_confidence")
		}
		return models.ReconciledPoint{}, false
	}
	return rp, true
}

// spread returns the maximum relative difference across the points and the
// highest contributing source confidence.
func (r *Reconciler) spread(points []SourcePoint) (float64, float64) {
	lo, hi := points[0].Value, points[0].Value
	maxConf := 0.0
	for _, p := range points {
		if p.Value < lo {
			lo = p.Value
		}
		if p.Value > hi {
			hi = p.Value
		}
		if c := r.SourceConfidence(p.SourceID); c > maxConf {
			maxConf = c
		}
	}
	mid := (lo + hi) / 2
	if mid == 0 {
		return 0, maxConf
	}
	return (hi - lo) / math.Abs(mid), maxConf
}
