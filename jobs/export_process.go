package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/meridian-cms/meridian/internal/export"
	jobmetrics "github.com/meridian-cms/meridian/internal/jobs"
)

// ExportProcessJob generates the artifact for a queued export job.
type ExportProcessJob struct {
	Service *export.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewExportProcessJob initialises the export processing handler.
func NewExportProcessJob(service *export.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExportProcessJob {
	return &ExportProcessJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes export processing. Jobs still waiting on approval are left
// pending and retried by a later enqueue.
func (j *ExportProcessJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("export process: handler not configured")
	}
	var payload ExportProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	id, err := uuid.Parse(payload.JobID)
	if err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskExportProcess)
	err = j.Service.Process(ctx, id)
	if errors.Is(err, export.ErrAwaitingApproval) {
		if j.Logger != nil {
			j.Logger.Info("export awaiting approval", slog.String("job", payload.JobID))
		}
		_ = tracker.End(nil)
		return asynq.SkipRetry
	}
	return tracker.End(err)
}

// HandleDispatch runs the gated-export dispatch sweep. It picks up approvals
// decided by humans on other nodes as well as auto-approvals from the
// escalation sweeper, so a runnable job never stays pending.
func (j *ExportProcessJob) HandleDispatch(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("export dispatch: handler not configured")
	}
	tracker := j.metrics().Track(TaskExportDispatch)
	dispatched, err := j.Service.DispatchApproved(ctx)
	if err == nil && dispatched > 0 && j.Logger != nil {
		j.Logger.Info("export dispatch sweep", slog.Int("dispatched", dispatched))
	}
	return tracker.End(err)
}

func (j *ExportProcessJob) metrics() *jobmetrics.Metrics {
	if j == nil {
		return nil
	}
	return j.Metrics
}

// ExportEnqueuer adapts the queue client to the export service.
type ExportEnqueuer struct {
	Client *Client
}

// EnqueueExport schedules background processing of an export job.
func (e *ExportEnqueuer) EnqueueExport(ctx context.Context, id uuid.UUID) error {
	if e == nil || e.Client == nil {
		return errors.New("export enqueuer: not configured")
	}
	_, err := e.Client.EnqueueExport(ctx, id.String())
	return err
}
