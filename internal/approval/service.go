package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrNotRequester indicates a cancel attempt by someone other than the
// original requester.
var ErrNotRequester = errors.New("approval: only the requester may cancel")

// RepositoryPort defines data access methods for approvals.
type RepositoryPort interface {
	Create(ctx context.Context, req Request) error
	Get(ctx context.Context, id uuid.UUID) (Request, error)
	ListByStatus(ctx context.Context, statuses []Status) ([]Request, error)
	TransitionIfCurrent(ctx context.Context, id uuid.UUID, from []Status, to Status, now time.Time) (bool, error)
	EscalateIfCurrent(ctx context.Context, id uuid.UUID, from []Status, newLevel int, target string, deadline, now time.Time) (bool, error)
	AddStep(ctx context.Context, step Step) error
	FindRule(ctx context.Context, requestType, resourceType string) (EscalationRule, error)
}

// AuditSink receives governance events. Denied-precondition attempts are
// recorded here instead of being propagated as hard errors.
type AuditSink interface {
	RecordEvent(ctx context.Context, actor, action, resource, resourceID string, meta map[string]any) error
}

// Service governs the approval workflow.
type Service struct {
	repo       RepositoryPort
	audit      AuditSink
	logger     *slog.Logger
	now        func() time.Time
	onApproved func(ctx context.Context, req Request)

	defaultSLAHours float64
}

// NewService builds Service instance. The clock is injectable for tests.
func NewService(repo RepositoryPort, audit AuditSink, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: now, defaultSLAHours: 24}
}

// CreateParams describes a new approval request.
type CreateParams struct {
	Requester    string
	ResourceType string
	Action       string
	RiskScore    int
	Metadata     map[string]any
}

// Create opens a pending request. The SLA deadline comes from the matching
// escalation rule, or a 24h default when no rule exists.
func (s *Service) Create(ctx context.Context, p CreateParams) (Request, error) {
	if p.Requester == "" {
		return Request{}, errors.New("approval: requester required")
	}
	now := s.now().UTC()
	slaHours := s.defaultSLAHours
	approverGroup := ""
	rule, err := s.repo.FindRule(ctx, p.Action, p.ResourceType)
	switch {
	case err == nil:
		slaHours = rule.SLAHours
		approverGroup = rule.EscalateTo
	case errors.Is(err, ErrNotFound):
	default:
		return Request{}, err
	}
	req := Request{
		ID:            uuid.New(),
		Requester:     p.Requester,
		ResourceType:  p.ResourceType,
		Action:        p.Action,
		Status:        StatusPending,
		RiskScore:     p.RiskScore,
		Metadata:      p.Metadata,
		ApproverGroup: approverGroup,
		SLADeadline:   now.Add(time.Duration(float64(time.Hour) * slaHours)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Get fetches a request with its steps.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return s.repo.Get(ctx, id)
}

// ListOpen returns all non-terminal requests.
func (s *Service) ListOpen(ctx context.Context) ([]Request, error) {
	return s.repo.ListByStatus(ctx, []Status{StatusPending, StatusEscalated})
}

// Decide applies an authorized approve/reject decision. Attempts against a
// terminal request are rejected locally, recorded as a denied-precondition
// event in the audit trail, and returned as ErrTerminalState.
func (s *Service) Decide(ctx context.Context, id uuid.UUID, approver, approverRole string, decision Decision, note string) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	target := StatusApproved
	if decision == DecisionRejected {
		target = StatusRejected
	}
	if err := checkTransition(req.Status, target); err != nil {
		s.auditDenied(ctx, approver, req, string(target))
		return Request{}, err
	}
	now := s.now().UTC()
	applied, err := s.repo.TransitionIfCurrent(ctx, id, []Status{StatusPending, StatusEscalated}, target, now)
	if err != nil {
		return Request{}, err
	}
	if !applied {
		// Lost the race against a sweep or another approver.
		s.auditDenied(ctx, approver, req, string(target))
		return Request{}, ErrTerminalState
	}
	step := Step{
		RequestID:    id,
		ApproverRole: approverRole,
		Approver:     approver,
		Decision:     decision,
		Note:         note,
		DecidedAt:    now,
	}
	if err := s.repo.AddStep(ctx, step); err != nil {
		return Request{}, err
	}
	decided, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if target == StatusApproved && s.onApproved != nil {
		s.onApproved(ctx, decided)
	}
	return decided, nil
}

// OnApproved registers a hook that runs after a request transitions to
// approved through Decide. Work blocked on the request (a gated export, for
// example) resumes from here without polling.
func (s *Service) OnApproved(fn func(ctx context.Context, req Request)) {
	s.onApproved = fn
}

// Cancel is restricted to the original requester and legal only while the
// request is still pending; once escalation has begun the deadline belongs to
// the approvers.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor string) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if actor != req.Requester {
		return Request{}, ErrNotRequester
	}
	// Escalated requests have no cancel edge, so checkTransition also
	// covers the "rejected once escalation has begun" rule.
	if err := checkTransition(req.Status, StatusCancelled); err != nil {
		s.auditDenied(ctx, actor, req, string(StatusCancelled))
		return Request{}, err
	}
	applied, err := s.repo.TransitionIfCurrent(ctx, id, []Status{StatusPending}, StatusCancelled, s.now().UTC())
	if err != nil {
		return Request{}, err
	}
	if !applied {
		s.auditDenied(ctx, actor, req, string(StatusCancelled))
		return Request{}, ErrTerminalState
	}
	return s.repo.Get(ctx, id)
}

// auditDenied records a denied-precondition event. Failure to audit here is
// logged but never masks the precondition error the caller already gets.
func (s *Service) auditDenied(ctx context.Context, actor string, req Request, attempted string) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"reason":    "denied_precondition",
		"status":    string(req.Status),
		"attempted": attempted,
	}
	if err := s.audit.RecordEvent(ctx, actor, "approval.transition_denied", "approval_request", req.ID.String(), meta); err != nil && s.logger != nil {
		s.logger.Error("audit denied precondition", slog.Any("error", err), slog.String("request", req.ID.String()))
	}
}

// Approved reports whether the request with the given id has been approved.
func (s *Service) Approved(ctx context.Context, id uuid.UUID) (bool, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("approval: load %s: %w", id, err)
	}
	return req.Status == StatusApproved, nil
}
