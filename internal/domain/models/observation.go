package models

import (
	"fmt"
	"time"
)

// Domain tags an observation with the numeric rule set that applies to it.
type Domain string

const (
	DomainPrice        Domain = "price"
	DomainExchangeRate Domain = "exchange_rate"
)

// RejectReason classifies why an observation was excluded from the pipeline.
type RejectReason string

const (
	RejectNone       RejectReason = ""
	RejectOutOfRange RejectReason = "out_of_range"
	RejectStale      RejectReason = "stale"
	RejectMalformed  RejectReason = "malformed"
	RejectDuplicate  RejectReason = "duplicate"
)

// Item is an identifiable valuable thing (currency, commodity, asset).
type Item struct {
	ID     int64  `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Kind   string `json:"kind"` // "currency", "commodity", "crypto", ...
}

// Observation is a raw value reported by a source. Immutable once ingested;
// a later correction from the same source is a new Observation, never a mutation.
// For DomainExchangeRate, Value is the amount of QuoteItemID one unit of
// ItemID buys. For DomainPrice, Value is expressed in Unit.
type Observation struct {
	ItemID      int64     `json:"item_id"`
	SourceID    string    `json:"source_id"`
	QuoteItemID int64     `json:"quote_item_id,omitempty"`
	Domain      Domain    `json:"domain"`
	Timestamp   time.Time `json:"timestamp"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit,omitempty"`
}

// Key is the dedupe identity of an observation.
func (o Observation) Key() string {
	return fmt.Sprintf("%d|%s|%d", o.ItemID, o.SourceID, o.Timestamp.UnixNano())
}

// ValidatedObservation is an Observation after bounds/freshness checks.
type ValidatedObservation struct {
	Observation
	Valid  bool
	Reason RejectReason
}

// AlignedPoint is one bucket of an aligned series. Carried marks a value
// filled from the nearest prior observation within tolerance.
type AlignedPoint struct {
	Bucket  time.Time
	Value   float64
	Missing bool
	Carried bool
}

// AlignedSeries is a per (item, source) stream resampled onto the canonical
// frequency grid. TrendDir is a drift annotation (+1 rising, -1 falling, 0
// unknown) from short/long moving averages over the configured trend windows.
type AlignedSeries struct {
	ItemID      int64
	SourceID    string
	QuoteItemID int64
	Domain      Domain
	Points      []AlignedPoint
	TrendDir    int
}

// AnomalyFlag records a point excluded by the anomaly detector. The point is
// dropped from the source's contribution for that bucket, not from history.
type AnomalyFlag struct {
	ItemID   int64     `json:"item_id"`
	SourceID string    `json:"source_id"`
	Bucket   time.Time `json:"bucket"`
	Value    float64   `json:"value"`
	Mean     float64   `json:"mean"`
	Sigma    float64   `json:"sigma"`
	Score    float64   `json:"score"` // deviation in sigmas
}

// ReconciledPoint is the single trusted value for (item, bucket) after
// multi-source conflict resolution. Confidence is in [0,1] and never exceeds
// the maximum confidence of the contributing sources.
type ReconciledPoint struct {
	ItemID      int64
	QuoteItemID int64
	Domain      Domain
	Bucket      time.Time
	Value       float64
	Confidence  float64
	Sources     []string
	Conflicted  bool
}
