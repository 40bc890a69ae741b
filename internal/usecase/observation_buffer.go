package usecase

import (
	"sort"
	"sync"
	"time"

	"SVUEngine/internal/domain/models"
)

// ObservationBuffer is the staging area between ingestion and pipeline runs.
// It deduplicates by (item_id, source_id, timestamp) and serves immutable
// snapshots to the runner; observations are discarded once they age out of
// the retained window.
type ObservationBuffer struct {
	mu      sync.RWMutex
	byKey   map[string]models.Observation
	maxSize int
}

// NewObservationBuffer creates a buffer bounded to maxSize observations
// (oldest evicted first once full).
func NewObservationBuffer(maxSize int) *ObservationBuffer {
	if maxSize <= 0 {
		maxSize = 100_000
	}
	return &ObservationBuffer{byKey: make(map[string]models.Observation), maxSize: maxSize}
}

// Add stores an observation. Returns false for a duplicate of an already
// buffered record.
func (b *ObservationBuffer) Add(o models.Observation) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := o.Key()
	if _, dup := b.byKey[key]; dup {
		return false
	}
	if len(b.byKey) >= b.maxSize {
		b.evictOldestLocked()
	}
	b.byKey[key] = o
	return true
}

func (b *ObservationBuffer) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, o := range b.byKey {
		if oldestKey == "" || o.Timestamp.Before(oldest) {
			oldestKey = k
			oldest = o.Timestamp
		}
	}
	if oldestKey != "" {
		delete(b.byKey, oldestKey)
	}
}

// Snapshot returns buffered observations with timestamps in [from, to] (zero
// bounds mean unbounded), sorted deterministically.
func (b *ObservationBuffer) Snapshot(from, to time.Time) []models.Observation {
	b.mu.RLock()
	out := make([]models.Observation, 0, len(b.byKey))
	for _, o := range b.byKey {
		if !from.IsZero() && o.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && o.Timestamp.After(to) {
			continue
		}
		out = append(out, o)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Len returns the number of buffered observations.
func (b *ObservationBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byKey)
}

// Prune drops observations older than cutoff.
func (b *ObservationBuffer) Prune(cutoff time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for k, o := range b.byKey {
		if o.Timestamp.Before(cutoff) {
			delete(b.byKey, k)
			n++
		}
	}
	return n
}
