package approval

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested approval record does not exist.
var ErrNotFound = errors.New("approval: not found")

// Repository provides PostgreSQL backed persistence for approval requests,
// steps and escalation rules.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestColumns = `id, requester, resource_type, action, status, risk_score, metadata, escalation_level, approver_group, sla_deadline, created_at, updated_at`

// Create inserts a new approval request.
func (r *Repository) Create(ctx context.Context, req Request) error {
	meta, err := json.Marshal(req.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO approval_requests
(id, requester, resource_type, action, status, risk_score, metadata, escalation_level, approver_group, sla_deadline, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		req.ID, req.Requester, req.ResourceType, req.Action, string(req.Status),
		req.RiskScore, meta, req.EscalationLevel, req.ApproverGroup, req.SLADeadline, req.CreatedAt)
	return err
}

// Get fetches a request with its steps.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id=$1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	steps, err := r.listSteps(ctx, id)
	if err != nil {
		return Request{}, err
	}
	req.Steps = steps
	return req, nil
}

// ListByStatus returns all requests in any of the given states, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, statuses []Status) ([]Request, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+`
FROM approval_requests WHERE status = ANY($1) ORDER BY created_at`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// TransitionIfCurrent applies a status transition guarded by the expected
// current states. It reports false without error when the request has already
// left the expected state, so concurrent sweeps or a sweep racing a human
// decision skip rather than double-transition.
func (r *Repository) TransitionIfCurrent(ctx context.Context, id uuid.UUID, from []Status, to Status, now time.Time) (bool, error) {
	names := make([]string, len(from))
	for i, s := range from {
		names[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE approval_requests
SET status=$2, updated_at=$3 WHERE id=$1 AND status = ANY($4)`,
		id, string(to), now, names)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// EscalateIfCurrent bumps the escalation level and re-routes the request,
// guarded the same way as TransitionIfCurrent.
func (r *Repository) EscalateIfCurrent(ctx context.Context, id uuid.UUID, from []Status, newLevel int, target string, deadline, now time.Time) (bool, error) {
	names := make([]string, len(from))
	for i, s := range from {
		names[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE approval_requests
SET status=$2, escalation_level=$3, approver_group=$4, sla_deadline=$5, updated_at=$6
WHERE id=$1 AND status = ANY($7) AND escalation_level < $3`,
		id, string(StatusEscalated), newLevel, target, deadline, now, names)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AddStep appends an approver decision record.
func (r *Repository) AddStep(ctx context.Context, step Step) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO approval_steps (request_id, approver_role, approver, decision, note, decided_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		step.RequestID, step.ApproverRole, step.Approver, string(step.Decision), step.Note, step.DecidedAt)
	return err
}

func (r *Repository) listSteps(ctx context.Context, requestID uuid.UUID) ([]Step, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, request_id, approver_role, approver, decision, note, decided_at
FROM approval_steps WHERE request_id=$1 ORDER BY decided_at, id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var steps []Step
	for rows.Next() {
		var s Step
		var decision string
		if err := rows.Scan(&s.ID, &s.RequestID, &s.ApproverRole, &s.Approver, &decision, &s.Note, &s.DecidedAt); err != nil {
			return nil, err
		}
		s.Decision = Decision(decision)
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// FindRule selects the escalation rule for a request type and resource type.
// A rule with an empty resource type acts as the fallback for its request
// type.
func (r *Repository) FindRule(ctx context.Context, requestType, resourceType string) (EscalationRule, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, request_type, resource_type, sla_hours, escalate_to, max_level, auto_approve, auto_reject
FROM escalation_rules
WHERE request_type=$1 AND (resource_type=$2 OR resource_type='')
ORDER BY resource_type DESC LIMIT 1`, requestType, resourceType)
	var rule EscalationRule
	err := row.Scan(&rule.ID, &rule.RequestType, &rule.ResourceType, &rule.SLAHours, &rule.EscalateTo, &rule.MaxLevel, &rule.AutoApprove, &rule.AutoReject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EscalationRule{}, ErrNotFound
		}
		return EscalationRule{}, err
	}
	return rule, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var status string
	var meta []byte
	if err := row.Scan(&req.ID, &req.Requester, &req.ResourceType, &req.Action, &status, &req.RiskScore,
		&meta, &req.EscalationLevel, &req.ApproverGroup, &req.SLADeadline, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return Request{}, err
	}
	req.Status = Status(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &req.Metadata); err != nil {
			return Request{}, err
		}
	}
	return req, nil
}
