package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SVUEngine/internal/domain/models"
)

type noopMetrics struct{}

func (noopMetrics) RecordObservation(string, string) {}
func (noopMetrics) RecordRejection(string) {}
func (noopMetrics) RecordAnomaly(string) {}
func (noopMetrics) RecordConflict() {}
func (noopMetrics) RecordBucketOutcome(string, string) {}
func (noopMetrics) RecordSolveDuration(float64) {}
func (noopMetrics) RecordStoreLatency(string, float64) {}
func (noopMetrics) RecordError(string) {}

// flakyProc fails while fail is set and signals done on each success.
type flakyProc struct {
	mu   sync.Mutex
	fail bool
	got  []*models.Observation
	done chan struct{}
}

func newFlakyProc() *flakyProc {
	return &flakyProc{done: make(chan struct{}, 1)}
}

func (f *flakyProc) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *flakyProc) Process(_ context.Context, o *models.Observation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("downstream down")
	}
	f.got = append(f.got, o)
	select {
	case f.done <- struct{}{}:
	default:
	}
	return nil
}

func ingestObs(item int64, source string, value float64) *models.Observation {
	return &models.Observation{
		ItemID:    item,
		SourceID:  source,
		Domain:    models.DomainPrice,
		Timestamp: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Value:     value,
	}
}

func TestIngestPipelineForwardsCleanRecords(t *testing.T) {
	proc := newFlakyProc()
	p := NewIngestPipeline(proc, noopMetrics{})

	if err := p.Process(context.Background(), ingestObs(2, "primary", 100)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(proc.got) != 1 {
		t.Fatalf("forwarded %d observations, want 1", len(proc.got))
	}
}

func TestIngestPipelineRejectsBrokenRecords(t *testing.T) {
	proc := newFlakyProc()
	p := NewIngestPipeline(proc, noopMetrics{})

	cases := []*models.Observation{
		nil,
		{SourceID: "primary", Timestamp: time.Now()},
		{ItemID: 2, Timestamp: time.Now()},
		{ItemID: 2, SourceID: "primary"},
	}
	for i, o := range cases {
		if err := p.Process(context.Background(), o); err == nil {
			t.Fatalf("case %d: broken record accepted", i)
		}
	}
	if len(proc.got) != 0 {
		t.Fatalf("broken records reached downstream: %d", len(proc.got))
	}
}

func TestIngestPipelineFlushesAfterRestart(t *testing.T) {
	proc := newFlakyProc()
	p := NewIngestPipeline(proc, noopMetrics{})
	ctx := context.Background()

	p.Start(ctx)
	p.Stop()

	// Downstream errors push the observation onto the retry buffer.
	proc.setFail(true)
	if err := p.Process(ctx, ingestObs(2, "primary", 100)); err == nil {
		t.Fatalf("expected downstream error")
	}

	proc.setFail(false)
	p.Start(ctx)
	defer p.Stop()

	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("buffered observation never flushed after restart")
	}
	proc.mu.Lock()
	n := len(proc.got)
	proc.mu.Unlock()
	if n != 1 {
		t.Fatalf("flushed %d observations, want 1", n)
	}
}
