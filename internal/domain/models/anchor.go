package models

import "time"

// Anchor is the solved relative value of an item for one time bucket,
// expressed against the base item. Residual is the solver's weighted
// inconsistency for the item (0 means the item's edges were mutually
// consistent). The only durable artifact of the pipeline.
type Anchor struct {
	ItemID   int64     `json:"item_id"`
	Bucket   time.Time `json:"bucket"`
	Value    float64   `json:"value"`
	Residual float64   `json:"residual"`
	SolvedAt time.Time `json:"solved_at"`
}

// BucketState is the per-bucket solve state machine:
// pending -> graph_built -> solved | unsolved(reason).
type BucketState string

const (
	BucketPending    BucketState = "pending"
	BucketGraphBuilt BucketState = "graph_built"
	BucketSolved     BucketState = "solved"
	BucketUnsolved   BucketState = "unsolved"
)

// UnsolvedReason explains why a bucket (or a single item within it)
// produced no anchor.
type UnsolvedReason string

const (
	UnsolvedNone               UnsolvedReason = ""
	UnsolvedNoData             UnsolvedReason = "no_data"
	UnsolvedNoBaseConnectivity UnsolvedReason = "no_base_connectivity"
	UnsolvedIllConditioned     UnsolvedReason = "ill_conditioned"
)

// BucketStatus is the reportable outcome of one bucket run.
type BucketStatus struct {
	Bucket        time.Time        `json:"bucket"`
	State         BucketState      `json:"state"`
	Reason        UnsolvedReason   `json:"reason,omitempty"`
	Nodes         int              `json:"nodes"`
	Edges         int              `json:"edges"`
	SolvedItems   int              `json:"solved_items"`
	UnsolvedItems map[int64]string `json:"unsolved_items,omitempty"`
}

// AuditEvent is a recoverable pipeline condition kept for reproducibility:
// rejected observations, anomaly flags, reconciliation conflicts and
// rejections, unsolved buckets.
type AuditEvent struct {
	Kind     string    `json:"kind"`
	ItemID   int64     `json:"item_id,omitempty"`
	SourceID string    `json:"source_id,omitempty"`
	Bucket   time.Time `json:"bucket,omitempty"`
	Reason   string    `json:"reason"`
	Value    float64   `json:"value,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// Audit event kinds.
const (
	AuditValidationReject  = "validation_reject"
	AuditAnomaly           = "anomaly"
	AuditConflict          = "reconciliation_conflict"
	AuditLowConfidence     = "reconciliation_rejected"
	AuditRateInconsistency = "rate_inconsistency"
	AuditUnsolved          = "unsolved_bucket"
)
