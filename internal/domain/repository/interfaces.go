package repository

import (
	"context"
	"time"

	"SVUEngine/internal/domain/models"
)

// ObservationStream is a pluggable data source yielding raw observations.
// The core imposes no ordering requirement; the collector deduplicates by
// (item_id, source_id, timestamp).
type ObservationStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Observation, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// AnchorStore is the append-only anchor history boundary. Writes are
// idempotent upserts keyed by (item_id, bucket); re-solving a bucket
// overwrites only that bucket's entry.
type AnchorStore interface {
	Init(ctx context.Context) error
	GetLastAnchor(ctx context.Context, itemID int64) (*models.Anchor, error)
	GetAnchors(ctx context.Context, itemID int64, from, to time.Time, limit int) ([]models.Anchor, error)
	PutAnchors(ctx context.Context, anchors []models.Anchor) error
	Health(ctx context.Context) error
	Close() error
}

// AnchorPublisher pushes solved anchors to downstream consumers.
type AnchorPublisher interface {
	Publish(ctx context.Context, a *models.Anchor) error
	PublishBatch(ctx context.Context, anchors []models.Anchor) error
	Close() error
}

// AuditLog records recoverable pipeline conditions with enough context to
// reproduce them. Implementations must never fail the pipeline.
type AuditLog interface {
	Record(ev models.AuditEvent)
	Events(itemID int64, kind string, limit int) []models.AuditEvent
}

// Metrics is the pipeline's observability boundary.
type Metrics interface {
	RecordObservation(sourceID string, domain string)
	RecordRejection(reason string)
	RecordAnomaly(sourceID string)
	RecordConflict()
	RecordBucketOutcome(state string, reason string)
	RecordSolveDuration(seconds float64)
	RecordStoreLatency(op string, seconds float64)
	RecordError(kind string)
}
