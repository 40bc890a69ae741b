package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SVUEngine/internal/domain/models"
	"SVUEngine/internal/domain/repository"
)

// ClickHouseAnchorStore implements AnchorStore for ClickHouse. The table is a
// ReplacingMergeTree keyed by (item_id, bucket) versioned by solved_at, so
// re-solving a bucket upserts rather than duplicates.
type ClickHouseAnchorStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseAnchorStore creates ClickHouse anchor storage.
func NewClickHouseAnchorStore(db *sql.DB, table string) repository.AnchorStore {
	return &ClickHouseAnchorStore{db: db, table: table}
}

func (s *ClickHouseAnchorStore) Init(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		item_id Int64,
		bucket DateTime('UTC'),
		value Float64,
		residual Float64,
		solved_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(solved_at)
	ORDER BY (item_id, bucket)`, s.table)
	_, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return fmt.Errorf("anchor schema: %w", err)
	}
	return nil
}

func (s *ClickHouseAnchorStore) GetLastAnchor(ctx context.Context, itemID int64) (*models.Anchor, error) {
	// FINAL collapses replaced versions not yet merged.
	q := fmt.Sprintf("SELECT item_id, bucket, value, residual, solved_at FROM %s FINAL WHERE item_id = ? ORDER BY bucket DESC LIMIT 1", s.table)
	row := s.db.QueryRowContext(ctx, q, itemID)

	var a models.Anchor
	if err := row.Scan(&a.ItemID, &a.Bucket, &a.Value, &a.Residual, &a.SolvedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (s *ClickHouseAnchorStore) GetAnchors(ctx context.Context, itemID int64, from, to time.Time, limit int) ([]models.Anchor, error) {
	if limit <= 0 {
		limit = 1000
	}
	q := fmt.Sprintf("SELECT item_id, bucket, value, residual, solved_at FROM %s FINAL WHERE item_id = ? AND bucket >= ? AND bucket <= ? ORDER BY bucket ASC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, itemID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anchors []models.Anchor
	for rows.Next() {
		var a models.Anchor
		if err := rows.Scan(&a.ItemID, &a.Bucket, &a.Value, &a.Residual, &a.SolvedAt); err != nil {
			return nil, err
		}
		anchors = append(anchors, a)
	}
	return anchors, rows.Err()
}

func (s *ClickHouseAnchorStore) PutAnchors(ctx context.Context, anchors []models.Anchor) error {
	if len(anchors) == 0 {
		return nil
	}
	// Batch insert using VALUES multi-row to reduce round-trips.
	// Chunk size tuned to 2000 rows per batch.
	const chunkSize = 2000
	for start := 0; start < len(anchors); start += chunkSize {
		end := start + chunkSize
		if end > len(anchors) {
			end = len(anchors)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*5)
		for _, a := range anchors[start:end] {
			if a.ItemID == 0 || a.Bucket.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args,
				a.ItemID,
				a.Bucket.UTC(),
				a.Value,
				a.Residual,
				a.SolvedAt.UTC(),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (item_id, bucket, value, residual, solved_at) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseAnchorStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseAnchorStore) Close() error {
	return nil // Managed by pkg
}
