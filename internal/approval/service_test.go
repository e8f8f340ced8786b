package approval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	requests map[uuid.UUID]*Request
	steps    map[uuid.UUID][]Step
	rules    []EscalationRule
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		requests: make(map[uuid.UUID]*Request),
		steps:    make(map[uuid.UUID][]Step),
	}
}

func (m *mockRepository) Create(ctx context.Context, req Request) error {
	clone := req
	m.requests[req.ID] = &clone
	return nil
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	out := *req
	out.Steps = m.steps[id]
	return out, nil
}

func (m *mockRepository) ListByStatus(ctx context.Context, statuses []Status) ([]Request, error) {
	var out []Request
	for _, req := range m.requests {
		for _, s := range statuses {
			if req.Status == s {
				out = append(out, *req)
				break
			}
		}
	}
	return out, nil
}

func (m *mockRepository) TransitionIfCurrent(ctx context.Context, id uuid.UUID, from []Status, to Status, now time.Time) (bool, error) {
	req, ok := m.requests[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if req.Status == s {
			req.Status = to
			req.UpdatedAt = now
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) EscalateIfCurrent(ctx context.Context, id uuid.UUID, from []Status, newLevel int, target string, deadline, now time.Time) (bool, error) {
	req, ok := m.requests[id]
	if !ok || req.EscalationLevel >= newLevel {
		return false, nil
	}
	for _, s := range from {
		if req.Status == s {
			req.Status = StatusEscalated
			req.EscalationLevel = newLevel
			req.ApproverGroup = target
			req.SLADeadline = deadline
			req.UpdatedAt = now
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) AddStep(ctx context.Context, step Step) error {
	m.steps[step.RequestID] = append(m.steps[step.RequestID], step)
	return nil
}

func (m *mockRepository) FindRule(ctx context.Context, requestType, resourceType string) (EscalationRule, error) {
	for _, rule := range m.rules {
		if rule.RequestType == requestType && (rule.ResourceType == resourceType || rule.ResourceType == "") {
			return rule, nil
		}
	}
	return EscalationRule{}, ErrNotFound
}

type recordedEvent struct {
	Actor      string
	Action     string
	ResourceID string
	Meta       map[string]any
}

type mockAudit struct {
	events []recordedEvent
}

func (m *mockAudit) RecordEvent(ctx context.Context, actor, action, resource, resourceID string, meta map[string]any) error {
	m.events = append(m.events, recordedEvent{Actor: actor, Action: action, ResourceID: resourceID, Meta: meta})
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo *mockRepository, sink *mockAudit, at time.Time) *Service {
	return NewService(repo, sink, nil, fixedClock(at))
}

func TestCreateUsesRuleSLA(t *testing.T) {
	repo := newMockRepository()
	repo.rules = []EscalationRule{
		{RequestType: "export", ResourceType: "users", SLAHours: 4, EscalateTo: "governance-leads", MaxLevel: 2},
	}
	svc := newTestService(repo, nil, baseTime)

	req, err := svc.Create(context.Background(), CreateParams{
		Requester:    "u-1",
		ResourceType: "users",
		Action:       "export",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, baseTime.Add(4*time.Hour), req.SLADeadline)
	assert.Equal(t, "governance-leads", req.ApproverGroup)
	assert.Equal(t, 0, req.EscalationLevel)
}

func TestCreateFallsBackToDefaultSLA(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil, baseTime)

	req, err := svc.Create(context.Background(), CreateParams{Requester: "u-1", ResourceType: "content", Action: "publish"})
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(24*time.Hour), req.SLADeadline)
}

func TestDecideApprovesAndRecordsStep(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil, baseTime)
	req, err := svc.Create(context.Background(), CreateParams{Requester: "u-1", ResourceType: "users", Action: "export"})
	require.NoError(t, err)

	decided, err := svc.Decide(context.Background(), req.ID, "u-9", "governance-leads", DecisionApproved, "looks fine")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, decided.Status)
	require.Len(t, decided.Steps, 1)
	assert.Equal(t, "u-9", decided.Steps[0].Approver)
	assert.Equal(t, DecisionApproved, decided.Steps[0].Decision)
}

func TestDecideRunsApprovedHook(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil, baseTime)
	var approvedIDs []uuid.UUID
	svc.OnApproved(func(_ context.Context, req Request) {
		approvedIDs = append(approvedIDs, req.ID)
	})

	rejected, err := svc.Create(context.Background(), CreateParams{Requester: "u-1", ResourceType: "users", Action: "export"})
	require.NoError(t, err)
	_, err = svc.Decide(context.Background(), rejected.ID, "u-9", "leads", DecisionRejected, "")
	require.NoError(t, err)
	assert.Empty(t, approvedIDs)

	approved, err := svc.Create(context.Background(), CreateParams{Requester: "u-1", ResourceType: "users", Action: "export"})
	require.NoError(t, err)
	_, err = svc.Decide(context.Background(), approved.ID, "u-9", "leads", DecisionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{approved.ID}, approvedIDs)
}

func TestDecideOnTerminalRequestIsRejectedAndAudited(t *testing.T) {
	repo := newMockRepository()
	sink := &mockAudit{}
	svc := newTestService(repo, sink, baseTime)
	req, err := svc.Create(context.Background(), CreateParams{Requester: "u-1", ResourceType: "users", Action: "export"})
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), req.ID, "u-9", "leads", DecisionRejected, "")
	require.NoError(t, err)

	// Second decision hits a terminal state: no state change, audited.
	_, err = svc.Decide(context.Background(), req.ID, "u-10", "leads", DecisionApproved, "")
	assert.ErrorIs(t, err, ErrTerminalState)

	stored, err := svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, stored.Status)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "approval.transition_denied", sink.events[0].Action)
	assert.Equal(t, "denied_precondition", sink.events[0].Meta["reason"])
}

func TestCancelRestrictedToRequester(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockAudit{}, baseTime)
	req, err := svc.Create(context.Background(), CreateParams{Requester: "u-1", ResourceType: "content", Action: "publish"})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), req.ID, "u-2")
	assert.ErrorIs(t, err, ErrNotRequester)

	cancelled, err := svc.Cancel(context.Background(), req.ID, "u-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

func TestCancelRejectedOnceEscalated(t *testing.T) {
	repo := newMockRepository()
	sink := &mockAudit{}
	svc := newTestService(repo, sink, baseTime)
	req, err := svc.Create(context.Background(), CreateParams{Requester: "u-1", ResourceType: "content", Action: "publish"})
	require.NoError(t, err)

	repo.requests[req.ID].Status = StatusEscalated
	_, err = svc.Cancel(context.Background(), req.ID, "u-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusEscalated, repo.requests[req.ID].Status)
	assert.Len(t, sink.events, 1)
}
