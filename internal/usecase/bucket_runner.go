package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SVUEngine/internal/domain/models"
	domrepo "SVUEngine/internal/domain/repository"
	"SVUEngine/internal/graph"
	"SVUEngine/internal/pipeline"
	applogger "SVUEngine/pkg/logger"
)

// Runner drives one full pipeline pass: validate -> align -> filter ->
// reconcile -> build graph -> solve -> persist anchors. Alignment is
// sequential per (item, source) stream; everything per-bucket after the
// barrier runs in parallel with no shared mutable state between buckets.
type Runner struct {
	freq       domrepo.Frequency
	baseItemID int64
	workers    int
	batchSize  int

	validator  *pipeline.Validator
	aligner    *pipeline.Aligner
	anomaly    *pipeline.AnomalyDetector
	normalizer *pipeline.Normalizer
	reconciler *pipeline.Reconciler
	builder    *graph.Builder
	solver     graph.Solver

	buf     *ObservationBuffer
	store   domrepo.AnchorStore
	pub     domrepo.AnchorPublisher
	audit   domrepo.AuditLog
	metrics domrepo.Metrics
	log     *applogger.Logger

	mu       sync.RWMutex
	statuses map[int64]models.BucketStatus // bucket unix -> status
}

// RunnerDeps bundles the pipeline stages and sinks for construction.
type RunnerDeps struct {
	Frequency  domrepo.Frequency
	BaseItemID int64
	Workers    int
	BatchSize  int

	Validator  *pipeline.Validator
	Aligner    *pipeline.Aligner
	Anomaly    *pipeline.AnomalyDetector
	Normalizer *pipeline.Normalizer
	Reconciler *pipeline.Reconciler
	Builder    *graph.Builder
	Solver     graph.Solver

	Buffer    *ObservationBuffer
	Store     domrepo.AnchorStore
	Publisher domrepo.AnchorPublisher
	Audit     domrepo.AuditLog
	Metrics   domrepo.Metrics
	Logger    *applogger.Logger
}

// NewRunner creates a Runner.
func NewRunner(d RunnerDeps) *Runner {
	workers := d.Workers
	if workers <= 0 {
		workers = 4
	}
	batch := d.BatchSize
	if batch <= 0 {
		batch = 500
	}
	return &Runner{
		freq:       d.Frequency,
		baseItemID: d.BaseItemID,
		workers:    workers,
		batchSize:  batch,
		validator:  d.Validator,
		aligner:    d.Aligner,
		anomaly:    d.Anomaly,
		normalizer: d.Normalizer,
		reconciler: d.Reconciler,
		builder:    d.Builder,
		solver:     d.Solver,
		buf:        d.Buffer,
		store:      d.Store,
		pub:        d.Publisher,
		audit:      d.Audit,
		metrics:    d.Metrics,
		log:        d.Logger,
		statuses:   make(map[int64]models.BucketStatus),
	}
}

// RunReport summarizes one pipeline pass.
type RunReport struct {
	Observations   int `json:"observations"`
	Buckets        int `json:"buckets"`
	SolvedBuckets  int `json:"solved_buckets"`
	AnchorsWritten int `json:"anchors_written"`
	AnomalyFlags   int `json:"anomaly_flags"`
}

// RunOnce processes everything currently buffered.
func (r *Runner) RunOnce(ctx context.Context) (RunReport, error) {
	return r.RunRange(ctx, time.Time{}, time.Time{})
}

// RunRange processes buffered observations within [from, to]. Re-running a
// range is idempotent: anchor writes are upserts keyed by (item, bucket).
func (r *Runner) RunRange(ctx context.Context, from, to time.Time) (RunReport, error) {
	return r.Run(ctx, r.buf.Snapshot(from, to))
}

// Run executes the pipeline over the given observations.
func (r *Runner) Run(ctx context.Context, obs []models.Observation) (RunReport, error) {
	report := RunReport{Observations: len(obs)}
	if len(obs) == 0 {
		return report, nil
	}

	validated := r.validator.ValidateAll(obs)
	series := r.aligner.Align(validated)

	// Stage 1 fan-out: anomaly filtering and price smoothing are
	// independent per stream.
	clean := make([]models.AlignedSeries, len(series))
	flagCounts := make([]int, len(series))
	r.forEach(ctx, len(series), func(i int) {
		cs, flags := r.anomaly.Filter(series[i])
		if r.normalizer != nil {
			cs = r.normalizer.Smooth(cs)
		}
		clean[i] = cs
		flagCounts[i] = len(flags)
	})
	for _, n := range flagCounts {
		report.AnomalyFlags += n
	}

	// Barrier: everything after this point is per-bucket and independent.
	buckets := r.bucketize(clean)
	report.Buckets = len(buckets)
	if len(buckets) == 0 {
		return report, nil
	}

	keys := make([]time.Time, 0, len(buckets))
	for b := range buckets {
		keys = append(keys, b)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	outcomes := make([]bucketOutcome, len(keys))
	r.forEach(ctx, len(keys), func(i int) {
		outcomes[i] = r.processBucket(keys[i], buckets[keys[i]])
	})

	var anchors []models.Anchor
	for _, o := range outcomes {
		if o.solved {
			report.SolvedBuckets++
		}
		anchors = append(anchors, o.anchors...)
	}

	if err := r.persist(ctx, anchors); err != nil {
		return report, err
	}
	report.AnchorsWritten = len(anchors)

	if r.log != nil {
		r.log.Info("pipeline run complete",
			applogger.Int("observations", report.Observations),
			applogger.Int("buckets", report.Buckets),
			applogger.Int("solved", report.SolvedBuckets),
			applogger.Int("anchors", report.AnchorsWritten),
		)
	}
	return report, nil
}

// pointGroup identifies one reconcilable (item, domain, quote) within a bucket.
type pointGroup struct {
	itemID  int64
	domain  models.Domain
	quoteID int64
}

// bucketize pivots clean series into per-bucket source points.
func (r *Runner) bucketize(series []models.AlignedSeries) map[time.Time]map[pointGroup][]pipeline.SourcePoint {
	out := make(map[time.Time]map[pointGroup][]pipeline.SourcePoint)
	for _, s := range series {
		g := pointGroup{itemID: s.ItemID, domain: s.Domain, quoteID: s.QuoteItemID}
		for _, p := range s.Points {
			if p.Missing {
				continue
			}
			m, ok := out[p.Bucket]
			if !ok {
				m = make(map[pointGroup][]pipeline.SourcePoint)
				out[p.Bucket] = m
			}
			m[g] = append(m[g], pipeline.SourcePoint{SourceID: s.SourceID, Value: p.Value})
		}
	}
	return out
}

type bucketOutcome struct {
	solved  bool
	anchors []models.Anchor
}

// processBucket runs reconcile -> build -> solve for one bucket. The solve
// is atomic: a context cancellation takes effect between buckets, never
// inside one.
func (r *Runner) processBucket(bucket time.Time, groups map[pointGroup][]pipeline.SourcePoint) bucketOutcome {
	r.setStatus(models.BucketStatus{Bucket: bucket, State: models.BucketPending})

	order := make([]pointGroup, 0, len(groups))
	for g := range groups {
		order = append(order, g)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].itemID != order[j].itemID {
			return order[i].itemID < order[j].itemID
		}
		if order[i].domain != order[j].domain {
			return order[i].domain < order[j].domain
		}
		return order[i].quoteID < order[j].quoteID
	})

	points := make([]models.ReconciledPoint, 0, len(order))
	for _, g := range order {
		rp, ok := r.reconciler.Reconcile(g.itemID, g.quoteID, g.domain, bucket, groups[g])
		if ok {
			points = append(points, rp)
		}
	}

	vg, reason := r.builder.Build(bucket, points)
	if reason != models.UnsolvedNone {
		r.markUnsolved(bucket, reason, vg)
		return bucketOutcome{}
	}
	r.setStatus(models.BucketStatus{
		Bucket: bucket,
		State:  models.BucketGraphBuilt,
		Nodes:  len(vg.Nodes),
		Edges:  len(vg.Edges),
	})

	start := time.Now()
	res := r.solver.Solve(vg, r.baseItemID)
	if r.metrics != nil {
		r.metrics.RecordSolveDuration(time.Since(start).Seconds())
	}

	status := models.BucketStatus{
		Bucket:      bucket,
		State:       res.State,
		Reason:      res.Reason,
		Nodes:       len(vg.Nodes),
		Edges:       len(vg.Edges),
		SolvedItems: len(res.Anchors),
	}
	if len(res.Unsolved) > 0 {
		status.UnsolvedItems = make(map[int64]string, len(res.Unsolved))
		for id, why := range res.Unsolved {
			status.UnsolvedItems[id] = string(why)
			if r.audit != nil {
				r.audit.Record(models.AuditEvent{
					Kind:   models.AuditUnsolved,
					ItemID: id,
					Bucket: bucket,
					Reason: string(why),
					At:     time.Now().UTC(),
				})
			}
		}
	}
	r.setStatus(status)
	if r.metrics != nil {
		r.metrics.RecordBucketOutcome(string(res.State), string(res.Reason))
	}

	if res.State != models.BucketSolved {
		return bucketOutcome{}
	}
	anchors := make([]models.Anchor, 0, len(res.Anchors))
	ids := make([]int64, 0, len(res.Anchors))
	for id := range res.Anchors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		anchors = append(anchors, res.Anchors[id])
	}
	return bucketOutcome{solved: true, anchors: anchors}
}

func (r *Runner) markUnsolved(bucket time.Time, reason models.UnsolvedReason, vg *graph.ValueGraph) {
	nodes, edges := 0, 0
	if vg != nil {
		nodes, edges = len(vg.Nodes), len(vg.Edges)
	}
	r.setStatus(models.BucketStatus{
		Bucket: bucket,
		State:  models.BucketUnsolved,
		Reason: reason,
		Nodes:  nodes,
		Edges:  edges,
	})
	if r.audit != nil {
		r.audit.Record(models.AuditEvent{
			Kind:   models.AuditUnsolved,
			Bucket: bucket,
			Reason: string(reason),
			At:     time.Now().UTC(),
		})
	}
	if r.metrics != nil {
		r.metrics.RecordBucketOutcome(string(models.BucketUnsolved), string(reason))
	}
}

// persist writes anchors in batches with bounded retries. Writes are
// idempotent upserts, so a retry after partial failure is safe. A store
// failure aborts only the affected run, never the process.
func (r *Runner) persist(ctx context.Context, anchors []models.Anchor) error {
	if len(anchors) == 0 || r.store == nil {
		return nil
	}
	for start := 0; start < len(anchors); start += r.batchSize {
		end := start + r.batchSize
		if end > len(anchors) {
			end = len(anchors)
		}
		batch := anchors[start:end]

		var err error
		for attempt := 1; attempt <= 3; attempt++ {
			t0 := time.Now()
			err = r.store.PutAnchors(ctx, batch)
			if r.metrics != nil {
				r.metrics.RecordStoreLatency("put_anchors", time.Since(t0).Seconds())
			}
			if err == nil {
				break
			}
			if r.metrics != nil {
				r.metrics.RecordError("store_write")
			}
			select {
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			return fmt.Errorf("persist anchors: %w", err)
		}
	}

	if r.pub != nil {
		if err := r.pub.PublishBatch(ctx, anchors); err != nil {
			// Downstream publish is best-effort; the store holds the truth.
			if r.metrics != nil {
				r.metrics.RecordError("publish")
			}
			if r.log != nil {
				r.log.Warn("anchor publish failed", applogger.Error(err))
			}
		}
	}
	return nil
}

// forEach runs fn over n items with the runner's worker pool. Cancellation
// is honored between items only.
func (r *Runner) forEach(ctx context.Context, n int, fn func(i int)) {
	if n == 0 {
		return
	}
	workers := r.workers
	if workers > n {
		workers = n
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
}

func (r *Runner) setStatus(s models.BucketStatus) {
	r.mu.Lock()
	r.statuses[s.Bucket.Unix()] = s
	r.mu.Unlock()
}

// BucketStatuses returns tracked statuses within [from, to], ordered by bucket.
func (r *Runner) BucketStatuses(from, to time.Time) []models.BucketStatus {
	r.mu.RLock()
	out := make([]models.BucketStatus, 0, len(r.statuses))
	for _, s := range r.statuses {
		if !from.IsZero() && s.Bucket.Before(from) {
			continue
		}
		if !to.IsZero() && s.Bucket.After(to) {
			continue
		}
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket.Before(out[j].Bucket) })
	return out
}
