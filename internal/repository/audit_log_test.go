package repository

import (
	"testing"
	"time"

	"SVUEngine/internal/domain/models"
)

func TestAuditLogNewestFirst(t *testing.T) {
	l := NewMemoryAuditLog(10)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		l.Record(models.AuditEvent{
			Kind:   models.AuditValidationReject,
			ItemID: int64(i + 1),
			At:     base.Add(time.Duration(i) * time.Minute),
		})
	}

	got := l.Events(0, "", 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].ItemID != 3 || got[2].ItemID != 1 {
		t.Fatalf("expected newest first, got %+v", got)
	}
}

func TestAuditLogFilters(t *testing.T) {
	l := NewMemoryAuditLog(10)
	l.Record(models.AuditEvent{Kind: models.AuditValidationReject, ItemID: 2})
	l.Record(models.AuditEvent{Kind: models.AuditAnomaly, ItemID: 2})
	l.Record(models.AuditEvent{Kind: models.AuditAnomaly, ItemID: 3})

	if got := l.Events(2, "", 0); len(got) != 2 {
		t.Fatalf("item filter: expected 2 events, got %d", len(got))
	}
	if got := l.Events(0, models.AuditAnomaly, 0); len(got) != 2 {
		t.Fatalf("kind filter: expected 2 events, got %d", len(got))
	}
	if got := l.Events(2, models.AuditAnomaly, 0); len(got) != 1 {
		t.Fatalf("combined filter: expected 1 event, got %d", len(got))
	}
	if got := l.Events(0, "", 1); len(got) != 1 {
		t.Fatalf("limit: expected 1 event, got %d", len(got))
	}
}

func TestAuditLogRingOverwrite(t *testing.T) {
	l := NewMemoryAuditLog(3)
	for i := 1; i <= 5; i++ {
		l.Record(models.AuditEvent{Kind: models.AuditAnomaly, ItemID: int64(i)})
	}

	got := l.Events(0, "", 0)
	if len(got) != 3 {
		t.Fatalf("expected capacity-bounded 3 events, got %d", len(got))
	}
	if got[0].ItemID != 5 || got[1].ItemID != 4 || got[2].ItemID != 3 {
		t.Fatalf("expected 5,4,3 newest first, got %+v", got)
	}
}

func TestAuditLogStampsTime(t *testing.T) {
	l := NewMemoryAuditLog(3)
	l.Record(models.AuditEvent{Kind: models.AuditAnomaly, ItemID: 1})
	got := l.Events(1, "", 1)
	if len(got) != 1 || got[0].At.IsZero() {
		t.Fatalf("expected recorded timestamp, got %+v", got)
	}
}
