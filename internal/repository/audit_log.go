package repository

import (
	"sync"
	"time"

	"SVUEngine/internal/domain/models"
	"SVUEngine/internal/domain/repository"
)

// MemoryAuditLog keeps the most recent audit events in a bounded ring.
// Recording never fails and never blocks the pipeline.
type MemoryAuditLog struct {
	mu     sync.RWMutex
	events []models.AuditEvent
	next   int
	full   bool
}

const defaultAuditCapacity = 10000

// NewMemoryAuditLog creates an audit log retaining up to capacity events
// (oldest overwritten first).
func NewMemoryAuditLog(capacity int) *MemoryAuditLog {
	if capacity <= 0 {
		capacity = defaultAuditCapacity
	}
	return &MemoryAuditLog{events: make([]models.AuditEvent, capacity)}
}

func (l *MemoryAuditLog) Record(ev models.AuditEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	l.mu.Lock()
	l.events[l.next] = ev
	l.next++
	if l.next == len(l.events) {
		l.next = 0
		l.full = true
	}
	l.mu.Unlock()
}

// Events returns matching events newest first. Zero itemID and empty kind
// match everything; limit <= 0 means no limit.
func (l *MemoryAuditLog) Events(itemID int64, kind string, limit int) []models.AuditEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.next
	if l.full {
		n = len(l.events)
	}
	out := make([]models.AuditEvent, 0, n)
	// Walk backwards from the most recent slot.
	for i := 0; i < n; i++ {
		idx := l.next - 1 - i
		if idx < 0 {
			idx += len(l.events)
		}
		ev := l.events[idx]
		if itemID != 0 && ev.ItemID != itemID {
			continue
		}
		if kind != "" && ev.Kind != kind {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

var _ repository.AuditLog = (*MemoryAuditLog)(nil)
