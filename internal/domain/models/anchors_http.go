package models

// Requests for anchor HTTP endpoints. Defined in domain for consistency and reuse.

type AnchorRangeRequest struct {
	ItemID int64  `query:"item_id" json:"item_id" validate:"required,gt=0"`
	From   string `query:"from" json:"from" validate:"required"`
	To     string `query:"to" json:"to" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=10000"`
}

type LatestAnchorRequest struct {
	ItemID int64 `query:"item_id" json:"item_id" validate:"required,gt=0"`
}

type BucketStatusRequest struct {
	From string `query:"from" json:"from" validate:"omitempty"`
	To   string `query:"to" json:"to" validate:"omitempty"`
}

type AuditRequest struct {
	ItemID int64  `query:"item_id" json:"item_id" validate:"omitempty,gt=0"`
	Kind   string `query:"kind" json:"kind" validate:"omitempty,oneof=validation_reject anomaly reconciliation_conflict reconciliation_rejected rate_inconsistency unsolved_bucket"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}

type RecomputeRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}
