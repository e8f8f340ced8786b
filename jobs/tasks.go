package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueGovernance is the queue name for governance background jobs.
	QueueGovernance = "governance"
	// TaskEscalationSweep scans open approval requests for SLA breach.
	TaskEscalationSweep = "approval:escalation_sweep"
	// TaskExportProcess generates the artifact for an export job.
	TaskExportProcess = "export:process"
	// TaskExportDispatch re-enqueues gated exports whose approvals were decided.
	TaskExportDispatch = "export:dispatch_sweep"
	// TaskNotifyDeliver delivers one escalation notification.
	TaskNotifyDeliver = "notify:deliver"
)

// NewEscalationSweepTask constructs the periodic sweep task.
func NewEscalationSweepTask() *asynq.Task {
	return asynq.NewTask(TaskEscalationSweep, nil)
}

// NewExportDispatchTask constructs the periodic gated-export dispatch task.
func NewExportDispatchTask() *asynq.Task {
	return asynq.NewTask(TaskExportDispatch, nil)
}

// ExportProcessPayload identifies the export job to process.
type ExportProcessPayload struct {
	JobID string `json:"jobId"`
}

// NewExportProcessTask constructs an export processing task.
func NewExportProcessTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(ExportProcessPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExportProcess, data), nil
}

// NotifyPayload describes an escalation notification to deliver.
type NotifyPayload struct {
	RequestID     string `json:"requestId"`
	ApproverGroup string `json:"approverGroup"`
	Level         int    `json:"level"`
}

// NewNotifyTask constructs a notification delivery task.
func NewNotifyTask(payload NotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyDeliver, data), nil
}
