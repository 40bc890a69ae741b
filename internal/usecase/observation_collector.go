package usecase

import (
	"context"

	"SVUEngine/internal/domain/models"
	drepo "SVUEngine/internal/domain/repository"
	mid "SVUEngine/internal/middleware"
)

// BufferSink lands observations in the staging buffer. It is the terminal
// Proc of the ingest chain.
type BufferSink struct {
	buffer  *ObservationBuffer
	metrics drepo.Metrics
}

// NewBufferSink creates a sink writing into buffer.
func NewBufferSink(buffer *ObservationBuffer, metrics drepo.Metrics) *BufferSink {
	return &BufferSink{buffer: buffer, metrics: metrics}
}

// Process buffers one observation. Duplicates are counted, not errors.
func (s *BufferSink) Process(_ context.Context, o *models.Observation) error {
	if o == nil {
		return nil
	}
	if !s.buffer.Add(*o) {
		s.metrics.RecordRejection(string(models.RejectDuplicate))
		return nil
	}
	s.metrics.RecordObservation(o.SourceID, string(o.Domain))
	return nil
}

var _ mid.Proc = (*BufferSink)(nil)

// ObservationCollector collects observations from a stream source and lands
// them in the staging buffer through the ingest pipeline.
type ObservationCollector struct {
	stream  drepo.ObservationStream
	sink    *BufferSink
	metrics drepo.Metrics
	pipe    *mid.IngestPipeline
}

// NewObservationCollector creates a new ObservationCollector instance.
func NewObservationCollector(stream drepo.ObservationStream, sink *BufferSink, metrics drepo.Metrics, pipe *mid.IngestPipeline) *ObservationCollector {
	return &ObservationCollector{stream: stream, sink: sink, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the observation stream is connected.
func (c *ObservationCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *ObservationCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	obCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, obCh, errCh)
	return nil
}

func (c *ObservationCollector) consume(ctx context.Context, obCh <-chan *models.Observation, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case o := <-obCh:
			if o == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, o)
			} else {
				_ = c.sink.Process(ctx, o)
			}
		}
	}
}

func (c *ObservationCollector) Stop() error { return c.stream.Close() }

// Sink returns the terminal buffer sink for wiring other ingest paths.
func (c *ObservationCollector) Sink() *BufferSink { return c.sink }

// Shutdown stops the pipeline and closes the stream.
func (c *ObservationCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
