package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SVUEngine/internal/domain/models"
	"SVUEngine/internal/domain/repository"
	"SVUEngine/internal/service/cache"
)

// CachedAnchorStore fronts an AnchorStore with a bytes cache for the hot
// latest-anchor lookup. Writes invalidate by overwriting, so a stale entry
// lives at most one PutAnchors behind; range queries always hit the store.
type CachedAnchorStore struct {
	store repository.AnchorStore
	cache cache.BytesCache
	ttl   time.Duration
}

// NewCachedAnchorStore wraps store with c. ttl <= 0 disables expiry-based
// eviction and relies on write-through overwrites only.
func NewCachedAnchorStore(store repository.AnchorStore, c cache.BytesCache, ttl time.Duration) repository.AnchorStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedAnchorStore{store: store, cache: c, ttl: ttl}
}

func lastAnchorKey(itemID int64) string {
	return fmt.Sprintf("svu:anchor:last:%d", itemID)
}

func (s *CachedAnchorStore) Init(ctx context.Context) error {
	return s.store.Init(ctx)
}

func (s *CachedAnchorStore) GetLastAnchor(ctx context.Context, itemID int64) (*models.Anchor, error) {
	if b, ok, err := s.cache.GetBytes(ctx, lastAnchorKey(itemID)); err == nil && ok {
		var a models.Anchor
		if err := json.Unmarshal(b, &a); err == nil {
			return &a, nil
		}
	}

	a, err := s.store.GetLastAnchor(ctx, itemID)
	if err != nil || a == nil {
		return a, err
	}
	if b, err := json.Marshal(a); err == nil {
		_ = s.cache.SetBytes(ctx, lastAnchorKey(itemID), b, s.ttl)
	}
	return a, nil
}

func (s *CachedAnchorStore) GetAnchors(ctx context.Context, itemID int64, from, to time.Time, limit int) ([]models.Anchor, error) {
	return s.store.GetAnchors(ctx, itemID, from, to, limit)
}

func (s *CachedAnchorStore) PutAnchors(ctx context.Context, anchors []models.Anchor) error {
	if err := s.store.PutAnchors(ctx, anchors); err != nil {
		return err
	}
	// Write-through: keep only the newest bucket per item.
	latest := make(map[int64]models.Anchor, len(anchors))
	for _, a := range anchors {
		if cur, ok := latest[a.ItemID]; !ok || a.Bucket.After(cur.Bucket) {
			latest[a.ItemID] = a
		}
	}
	for id, a := range latest {
		if cur, ok, err := s.cache.GetBytes(ctx, lastAnchorKey(id)); err == nil && ok {
			var prev models.Anchor
			if json.Unmarshal(cur, &prev) == nil && prev.Bucket.After(a.Bucket) {
				continue
			}
		}
		if b, err := json.Marshal(a); err == nil {
			_ = s.cache.SetBytes(ctx, lastAnchorKey(id), b, s.ttl)
		}
	}
	return nil
}

func (s *CachedAnchorStore) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

func (s *CachedAnchorStore) Close() error {
	return s.store.Close()
}
