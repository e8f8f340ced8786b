package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-cms/meridian/internal/approval"
	jobmetrics "github.com/meridian-cms/meridian/internal/jobs"
)

// NotifyJob delivers escalation notifications. Delivery failures are retried
// by the queue up to the configured attempt budget; exhaustion is logged and
// never alters the governance outcome the notification describes.
type NotifyJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewNotifyJob initialises the notification handler.
func NewNotifyJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *NotifyJob {
	return &NotifyJob{Logger: logger, Metrics: metrics}
}

// Handle delivers one notification.
func (j *NotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("notify: handler not configured")
	}
	var payload NotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskNotifyDeliver)
	// Delivery target integration is routed through logs until a mail or
	// webhook channel is configured.
	if j.Logger != nil {
		j.Logger.Info("escalation notification",
			slog.String("request", payload.RequestID),
			slog.String("approverGroup", payload.ApproverGroup),
			slog.Int("level", payload.Level))
	}
	return tracker.End(nil)
}

func (j *NotifyJob) metrics() *jobmetrics.Metrics {
	if j == nil {
		return nil
	}
	return j.Metrics
}

// QueueNotifier bridges the approval sweeper to the notification queue.
type QueueNotifier struct {
	Client      *Client
	Logger      *slog.Logger
	MaxAttempts int
}

// NotifyEscalation enqueues delivery for an escalated request. Enqueue
// failures are logged; they never fail the escalation itself.
func (n *QueueNotifier) NotifyEscalation(ctx context.Context, req approval.Request, target string) error {
	if n == nil || n.Client == nil {
		return nil
	}
	payload := NotifyPayload{
		RequestID:     req.ID.String(),
		ApproverGroup: target,
		Level:         req.EscalationLevel,
	}
	if _, err := n.Client.EnqueueNotify(ctx, payload, n.MaxAttempts); err != nil {
		if n.Logger != nil {
			n.Logger.Error("notify enqueue", slog.String("request", payload.RequestID), slog.Any("error", err))
		}
		return err
	}
	return nil
}
