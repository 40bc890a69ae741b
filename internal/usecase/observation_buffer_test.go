package usecase

import (
	"testing"
	"time"

	"SVUEngine/internal/domain/models"
)

func obs(item int64, source string, ts time.Time, value float64) models.Observation {
	return models.Observation{
		ItemID:    item,
		SourceID:  source,
		Domain:    models.DomainPrice,
		Timestamp: ts,
		Value:     value,
	}
}

func TestBufferRejectsDuplicates(t *testing.T) {
	b := NewObservationBuffer(0)
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	if !b.Add(obs(2, "primary", ts, 100)) {
		t.Fatalf("first add must succeed")
	}
	if b.Add(obs(2, "primary", ts, 999)) {
		t.Fatalf("same (item, source, timestamp) must be a duplicate")
	}
	if !b.Add(obs(2, "secondary", ts, 100)) {
		t.Fatalf("different source is not a duplicate")
	}
	if b.Len() != 2 {
		t.Fatalf("expected 2 buffered, got %d", b.Len())
	}
}

func TestBufferSnapshotOrderedAndBounded(t *testing.T) {
	b := NewObservationBuffer(0)
	d1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	d3 := d1.AddDate(0, 0, 2)

	b.Add(obs(3, "primary", d2, 50))
	b.Add(obs(2, "secondary", d1, 101))
	b.Add(obs(2, "primary", d3, 103))
	b.Add(obs(2, "primary", d1, 100))

	got := b.Snapshot(time.Time{}, time.Time{})
	if len(got) != 4 {
		t.Fatalf("expected 4 observations, got %d", len(got))
	}
	// ordered by item, then source, then timestamp
	if got[0].ItemID != 2 || got[0].SourceID != "primary" || !got[0].Timestamp.Equal(d1) {
		t.Fatalf("unexpected first observation %+v", got[0])
	}
	if got[1].SourceID != "primary" || !got[1].Timestamp.Equal(d3) {
		t.Fatalf("unexpected second observation %+v", got[1])
	}
	if got[3].ItemID != 3 {
		t.Fatalf("unexpected last observation %+v", got[3])
	}

	ranged := b.Snapshot(d2, d2)
	if len(ranged) != 1 || ranged[0].ItemID != 3 {
		t.Fatalf("range snapshot should hold only day 2: %+v", ranged)
	}
}

func TestBufferEvictsOldestWhenFull(t *testing.T) {
	b := NewObservationBuffer(2)
	d1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	b.Add(obs(2, "primary", d1, 100))
	b.Add(obs(2, "primary", d1.AddDate(0, 0, 1), 101))
	b.Add(obs(2, "primary", d1.AddDate(0, 0, 2), 102))

	if b.Len() != 2 {
		t.Fatalf("expected bounded size 2, got %d", b.Len())
	}
	got := b.Snapshot(time.Time{}, time.Time{})
	if got[0].Value != 101 {
		t.Fatalf("oldest observation should have been evicted: %+v", got)
	}
}

func TestBufferPrune(t *testing.T) {
	b := NewObservationBuffer(0)
	d1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	b.Add(obs(2, "primary", d1, 100))
	b.Add(obs(2, "primary", d1.AddDate(0, 0, 5), 105))

	if n := b.Prune(d1.AddDate(0, 0, 1)); n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", b.Len())
	}
}
