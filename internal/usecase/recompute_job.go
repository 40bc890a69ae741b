package usecase

import (
	"context"
	"fmt"

	xlogger "SVUEngine/pkg/logger"
	"SVUEngine/pkg/queue"
	"SVUEngine/pkg/util"
)

// RecomputeJobType is the queue message type for range recomputation.
const RecomputeJobType = "recompute_range"

// RecomputePayload is the queued recompute request.
type RecomputePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RecomputeJob replays buffered observations through the pipeline for a
// requested window. Re-solved buckets overwrite their anchors in place.
type RecomputeJob struct {
	runner *Runner
	logger *xlogger.Logger
}

func NewRecomputeJob(runner *Runner, logger *xlogger.Logger) *RecomputeJob {
	return &RecomputeJob{runner: runner, logger: logger}
}

func (j *RecomputeJob) Name() string { return "recompute" }

func (j *RecomputeJob) Type() string { return RecomputeJobType }

func (j *RecomputeJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RecomputePayload](payload)
	if err != nil {
		return fmt.Errorf("recompute payload: %w", err)
	}
	from, ok := util.ParseTime(p.From)
	if !ok {
		return fmt.Errorf("recompute payload: invalid from '%s'", p.From)
	}
	to, ok := util.ParseTime(p.To)
	if !ok {
		return fmt.Errorf("recompute payload: invalid to '%s'", p.To)
	}

	report, err := j.runner.RunRange(ctx, from, to)
	if err != nil {
		return err
	}
	j.logger.Info("recompute finished",
		xlogger.Int("observations", report.Observations),
		xlogger.Int("buckets", report.Buckets),
		xlogger.Int("solved", report.SolvedBuckets),
		xlogger.Int("anchors", report.AnchorsWritten))
	return nil
}

var _ queue.Job = (*RecomputeJob)(nil)
