package approval

import (
	"time"

	"github.com/google/uuid"
)

// Status enumerates approval request states.
type Status string

const (
	// StatusPending awaits a first decision.
	StatusPending Status = "pending"
	// StatusEscalated was re-routed after an SLA breach.
	StatusEscalated Status = "escalated"
	// StatusApproved is terminal.
	StatusApproved Status = "approved"
	// StatusRejected is terminal.
	StatusRejected Status = "rejected"
	// StatusCancelled is terminal; only the requester may cancel.
	StatusCancelled Status = "cancelled"
	// StatusExpired is terminal; reached at max escalation with no decision.
	StatusExpired Status = "expired"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled, StatusExpired:
		return true
	case StatusPending, StatusEscalated:
		return false
	}
	return false
}

// Decision enumerates step outcomes.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Request is a multi-step approval of a gated action.
type Request struct {
	ID              uuid.UUID
	Requester       string
	ResourceType    string
	Action          string
	Status          Status
	RiskScore       int
	Metadata        map[string]any
	EscalationLevel int
	ApproverGroup   string
	SLADeadline     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Steps           []Step
}

// Step records one approver decision on a request.
type Step struct {
	ID           int64
	RequestID    uuid.UUID
	ApproverRole string
	Approver     string
	Decision     Decision
	Note         string
	DecidedAt    time.Time
}

// EscalationRule selects SLA and routing for requests by type and resource.
type EscalationRule struct {
	ID           int64
	RequestType  string
	ResourceType string
	SLAHours     float64
	EscalateTo   string
	MaxLevel     int
	AutoApprove  bool
	AutoReject   bool
}

// EffectiveSLA returns the time budget at the given escalation level: the
// base SLA halves with every level (slaHours × 0.5^level).
func (r EscalationRule) EffectiveSLA(level int) time.Duration {
	hours := r.SLAHours
	for i := 0; i < level; i++ {
		hours *= 0.5
	}
	return time.Duration(float64(time.Hour) * hours)
}
