package pipeline

import (
	"math"
	"time"

	"SVUEngine/internal/domain/models"
	domrepo "SVUEngine/internal/domain/repository"
	"SVUEngine/pkg/config"
)

// DomainRules holds the numeric bounds and gap tolerances per observation
// domain plus the global validation window. Built once from config and
// shared read-only across workers.
type DomainRules struct {
	PriceMin    float64
	PriceMax    float64
	PriceMaxGap time.Duration
	RateMin     float64
	RateMax     float64
	RateMaxGap  time.Duration
	WindowStart time.Time
	WindowEnd   time.Time
}

// RulesFromConfig derives the rule set from loaded configuration.
func RulesFromConfig(cfg *config.Config) DomainRules {
	start, end := cfg.ValidationWindow()
	return DomainRules{
		PriceMin:    cfg.Price.MinPrice,
		PriceMax:    cfg.Price.MaxPrice,
		PriceMaxGap: cfg.Price.MaxGap,
		RateMin:     cfg.ExchangeRate.MinRate,
		RateMax:     cfg.ExchangeRate.MaxRate,
		RateMaxGap:  cfg.ExchangeRate.MaxGap,
		WindowStart: start,
		WindowEnd:   end,
	}
}

// MaxGap returns the gap tolerance for a domain.
func (r DomainRules) MaxGap(d models.Domain) time.Duration {
	if d == models.DomainExchangeRate {
		return r.RateMaxGap
	}
	return r.PriceMaxGap
}

// Validator enforces per-domain numeric bounds and freshness on raw
// observations. Invalid observations are excluded downstream but retained
// in the audit log; no single bad observation aborts the pipeline.
type Validator struct {
	rules   DomainRules
	audit   domrepo.AuditLog
	metrics domrepo.Metrics
}

// NewValidator creates a Validator. audit and metrics may be nil for
// pure-function use.
func NewValidator(rules DomainRules, audit domrepo.AuditLog, metrics domrepo.Metrics) *Validator {
	return &Validator{rules: rules, audit: audit, metrics: metrics}
}

// Validate checks a single observation against the domain rules.
// Pure and total: never panics, always returns a tagged result.
func (v *Validator) Validate(o models.Observation) models.ValidatedObservation {
	if reason := v.check(o); reason != models.RejectNone {
		return models.ValidatedObservation{Observation: o, Valid: false, Reason: reason}
	}
	return models.ValidatedObservation{Observation: o, Valid: true}
}

func (v *Validator) check(o models.Observation) models.RejectReason {
	if o.ItemID <= 0 || o.SourceID == "" || o.Timestamp.IsZero() {
		return models.RejectMalformed
	}
	if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return models.RejectMalformed
	}
	// Anchors are solved in log space; non-positive values have no log ratio.
	if o.Value <= 0 {
		return models.RejectMalformed
	}
	switch o.Domain {
	case models.DomainPrice:
		if o.Value < v.rules.PriceMin || o.Value > v.rules.PriceMax {
			return models.RejectOutOfRange
		}
	case models.DomainExchangeRate:
		if o.QuoteItemID <= 0 || o.QuoteItemID == o.ItemID {
			return models.RejectMalformed
		}
		if o.Value < v.rules.RateMin || o.Value > v.rules.RateMax {
			return models.RejectOutOfRange
		}
	default:
		return models.RejectMalformed
	}
	if !v.rules.WindowStart.IsZero() && o.Timestamp.Before(v.rules.WindowStart) {
		return models.RejectStale
	}
	if !v.rules.WindowEnd.IsZero() && o.Timestamp.After(v.rules.WindowEnd) {
		return models.RejectStale
	}
	return models.RejectNone
}

// ValidateAll validates a batch, deduplicates by (item, source, timestamp)
// and records rejections for audit. Valid observations keep input order.
func (v *Validator) ValidateAll(obs []models.Observation) []models.ValidatedObservation {
	out := make([]models.ValidatedObservation, 0, len(obs))
	seen := make(map[string]struct{}, len(obs))
	for _, o := range obs {
		vo := v.Validate(o)
		if vo.Valid {
			if _, dup := seen[o.Key()]; dup {
				vo.Valid = false
				vo.Reason = models.RejectDuplicate
			} else {
				seen[o.Key()] = struct{}{}
			}
		}
		if !vo.Valid {
			v.reject(vo)
		}
		out = append(out, vo)
	}
	return out
}

func (v *Validator) reject(vo models.ValidatedObservation) {
	if v.metrics != nil {
		v.metrics.RecordRejection(string(vo.Reason))
	}
	if v.audit != nil {
		v.audit.Record(models.AuditEvent{
			Kind:     models.AuditValidationReject,
			ItemID:   vo.ItemID,
			SourceID: vo.SourceID,
			Reason:   string(vo.Reason),
			Value:    vo.Value,
			At:       time.Now().UTC(),
		})
	}
}
