package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-cms/meridian/internal/approval"
	jobmetrics "github.com/meridian-cms/meridian/internal/jobs"
)

// EscalationSweepJob runs one pass of the approval SLA sweep.
type EscalationSweepJob struct {
	Sweeper *approval.Sweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewEscalationSweepJob initialises the sweep handler.
func NewEscalationSweepJob(sweeper *approval.Sweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *EscalationSweepJob {
	return &EscalationSweepJob{Sweeper: sweeper, Logger: logger, Metrics: metrics}
}

// Handle executes the sweep.
func (j *EscalationSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("escalation sweep: handler not configured")
	}
	tracker := j.metrics().Track(TaskEscalationSweep)
	stats, err := j.Sweeper.Sweep(ctx)
	j.metrics().AddEscalations("escalated", stats.Escalated)
	j.metrics().AddEscalations("auto_approved", stats.AutoApproved)
	j.metrics().AddEscalations("auto_rejected", stats.AutoRejected)
	j.metrics().AddEscalations("expired", stats.Expired)
	j.metrics().AddEscalations("skipped", stats.Skipped)
	if j.Logger != nil {
		j.Logger.Info("escalation sweep",
			slog.Int("scanned", stats.Scanned),
			slog.Int("escalated", stats.Escalated),
			slog.Int("autoApproved", stats.AutoApproved),
			slog.Int("autoRejected", stats.AutoRejected),
			slog.Int("expired", stats.Expired),
			slog.Int("skipped", stats.Skipped))
	}
	return tracker.End(err)
}

func (j *EscalationSweepJob) metrics() *jobmetrics.Metrics {
	if j == nil {
		return nil
	}
	return j.Metrics
}
