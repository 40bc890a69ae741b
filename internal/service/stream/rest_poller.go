package stream

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SVUEngine/internal/domain/models"
	drepo "SVUEngine/internal/domain/repository"
	"SVUEngine/pkg/config"
	xhttp "SVUEngine/pkg/http"
)

// RESTPoller implements ObservationStream by polling HTTP sources. Used for
// feeds that expose a pull endpoint instead of a WebSocket. Each source is
// polled on the shared interval; retry policy comes from per-source config.
type RESTPoller struct {
	sources  map[string]config.SourceConfig
	interval time.Duration

	mu        sync.Mutex
	connected bool
	stopCh    chan struct{}
}

// NewRESTPoller creates a polling ObservationStream over the configured
// sources.
func NewRESTPoller(sources map[string]config.SourceConfig, interval time.Duration) drepo.ObservationStream {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RESTPoller{sources: sources, interval: interval}
}

// Connect validates the source configuration.
func (p *RESTPoller) Connect(_ context.Context) error {
	if len(p.sources) == 0 {
		return fmt.Errorf("rest poller: no sources configured")
	}
	for name, sc := range p.sources {
		if sc.BaseURL == "" {
			return fmt.Errorf("rest poller: source %s has no base_url", name)
		}
	}
	p.mu.Lock()
	p.connected = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()
	return nil
}

// Subscribe is a no-op for polled sources.
func (p *RESTPoller) Subscribe(_ context.Context) error {
	if !p.IsConnected() {
		return fmt.Errorf("rest poller: not connected")
	}
	return nil
}

// Read polls every source on the shared interval and emits decoded
// observations.
func (p *RESTPoller) Read(ctx context.Context) (<-chan *models.Observation, <-chan error) {
	obs := make(chan *models.Observation, 1024)
	errs := make(chan error, 1)

	names := make([]string, 0, len(p.sources))
	for name := range p.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	go func() {
		defer close(obs)
		defer close(errs)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				for _, name := range names {
					p.pollSource(ctx, name, p.sources[name], obs, errs)
				}
			}
		}
	}()

	return obs, errs
}

func (p *RESTPoller) pollSource(ctx context.Context, name string, sc config.SourceConfig, obs chan<- *models.Observation, errs chan<- error) {
	client := xhttp.NewClient(xhttp.WithTimeout(sc.Timeout))

	var batch []wsObservation
	var err error
	attempts := sc.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		err = client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    sc.BaseURL,
		}, &batch)
		if err == nil {
			break
		}
		if i+1 < attempts && sc.RetryDelay > 0 {
			time.Sleep(sc.RetryDelay)
		}
	}
	if err != nil {
		select {
		case errs <- fmt.Errorf("poll %s: %w", name, err):
		default:
		}
		return
	}

	for _, d := range batch {
		ts := d.TS
		if ts > 1e11 { // ms
			ts = ts / 1000
		}
		sourceID := d.SourceID
		if sourceID == "" {
			sourceID = name
		}
		o := &models.Observation{
			ItemID:      d.ItemID,
			SourceID:    sourceID,
			QuoteItemID: d.QuoteItemID,
			Domain:      models.Domain(d.Domain),
			Timestamp:   time.Unix(ts, 0).UTC(),
			Value:       d.Value,
			Unit:        d.Unit,
		}
		select {
		case obs <- o:
		default:
			// drop on backpressure
		}
	}
}

// Reconnect re-validates configuration; polling has no persistent link.
func (p *RESTPoller) Reconnect(ctx context.Context) error {
	_ = p.Close()
	return p.Connect(ctx)
}

// Close stops polling.
func (p *RESTPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		p.connected = false
		close(p.stopCh)
	}
	return nil
}

// IsConnected indicates status.
func (p *RESTPoller) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}
