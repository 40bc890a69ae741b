package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SVUEngine/internal/domain/models"
	domrepo "SVUEngine/internal/domain/repository"
)

// Proc is the minimal downstream interface the ingest pipeline needs.
type Proc interface {
	Process(ctx context.Context, o *models.Observation) error
}

// IngestPipeline sits between a source adapter and the observation buffer.
// It screens structurally broken records, throttles per source, and buffers
// when downstream is temporarily unavailable.
type IngestPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	maxRPS  int
	bufSize int
	bufCh   chan *models.Observation
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	// per-source token window for throttling
	window map[string][]time.Time
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max observations per second per source.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size used when downstream errors.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIngestPipeline creates a pipeline in front of proc.
func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:    proc,
		metrics: metrics,
		maxRPS:  50,
		bufSize: 2000,
		window:  make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Observation, p.bufSize)
	return p
}

// Start launches background flushing of buffered observations. Each Start
// after a Stop spawns a fresh flush loop over the surviving buffer.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-stopCh:
				return
			case o := <-p.bufCh:
				if o == nil {
					continue
				}
				if err := p.proc.Process(ctx, o); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("ingest_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- o:
					default:
						p.metrics.RecordError("ingest_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop halts background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	stopCh := p.stopCh
	p.mu.Unlock()
	close(stopCh)
}

// Process screens, throttles, and forwards an observation, buffering on
// downstream errors. Full domain validation happens later in the pipeline
// run; this only rejects records too broken to buffer.
func (p *IngestPipeline) Process(ctx context.Context, o *models.Observation) error {
	now := time.Now()
	if err := screen(o); err != nil {
		p.metrics.RecordError("ingest_screen")
		return err
	}
	if !p.allow(o.SourceID, now) {
		p.metrics.RecordError("ingest_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, o); err != nil {
		p.metrics.RecordError("ingest_process")
		select {
		case p.bufCh <- o:
		default:
			p.metrics.RecordError("ingest_buffer_full")
		}
		return fmt.Errorf("ingest downstream: %w", err)
	}
	return nil
}

func screen(o *models.Observation) error {
	if o == nil {
		return fmt.Errorf("observation is nil")
	}
	if o.ItemID <= 0 {
		return fmt.Errorf("observation item_id missing")
	}
	if o.SourceID == "" {
		return fmt.Errorf("observation source_id missing")
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("observation timestamp missing")
	}
	return nil
}

// allow keeps a one-second sliding window per source.
func (p *IngestPipeline) allow(sourceID string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := now.Add(-time.Second)
	w := p.window[sourceID]
	keep := w[:0]
	for _, t := range w {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	if len(keep) >= p.maxRPS {
		p.window[sourceID] = keep
		return false
	}
	p.window[sourceID] = append(keep, now)
	return true
}
