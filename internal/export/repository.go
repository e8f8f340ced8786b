package export

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-cms/meridian/internal/shared"
)

const jobColumns = `id, requester, resource_type, format, status, record_count, requires_approval,
approval_request_id, filters, checksum, failure_reason, expires_at, created_at, updated_at`

// Repository persists export jobs and their artifacts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new job.
func (r *Repository) Create(ctx context.Context, job Job) error {
	filters, err := json.Marshal(emptyIfNil(job.Filters))
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO export_jobs
(id, requester, resource_type, format, status, record_count, requires_approval, approval_request_id, filters, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		job.ID, job.Requester, job.ResourceType, string(job.Format), string(job.Status),
		job.RecordCount, job.RequiresApproval, job.ApprovalRequestID, filters, job.CreatedAt)
	return err
}

// Get fetches a job by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ListByRequester returns the requester's jobs, newest first.
func (r *Repository) ListByRequester(ctx context.Context, requester string, limit int) ([]Job, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM export_jobs
WHERE requester = $1 ORDER BY created_at DESC LIMIT $2`, requester, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListAwaitingApproval returns the gated jobs still pending, oldest first.
func (r *Repository) ListAwaitingApproval(ctx context.Context) ([]Job, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM export_jobs
WHERE status = $1 AND approval_request_id IS NOT NULL ORDER BY created_at`, string(StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// TransitionIfCurrent moves the job from one status to another only when it is
// still in the expected status. Returns false when the guard fails.
func (r *Repository) TransitionIfCurrent(ctx context.Context, id uuid.UUID, from, to Status, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE export_jobs SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2`, id, string(from), string(to), now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Complete stores the artifact and marks the job completed under a
// processing-status guard.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, artifact []byte, checksum string, recordCount int, expiresAt, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE export_jobs
SET status = $2, artifact = $3, checksum = $4, record_count = $5, expires_at = $6, updated_at = $7
WHERE id = $1 AND status = $8`,
		id, string(StatusCompleted), artifact, checksum, recordCount, expiresAt, now, string(StatusProcessing))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Fail marks the job failed and discards any partial artifact.
func (r *Repository) Fail(ctx context.Context, id uuid.UUID, reason string, now time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE export_jobs
SET status = $2, failure_reason = $3, artifact = NULL, checksum = '', updated_at = $4
WHERE id = $1`, id, string(StatusFailed), reason, now)
	return err
}

// Artifact loads the stored artifact bytes.
func (r *Repository) Artifact(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var artifact []byte
	err := r.pool.QueryRow(ctx, `SELECT artifact FROM export_jobs WHERE id = $1`, id).Scan(&artifact)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job     Job
		format  string
		status  string
		filters []byte
	)
	err := row.Scan(&job.ID, &job.Requester, &job.ResourceType, &format, &status,
		&job.RecordCount, &job.RequiresApproval, &job.ApprovalRequestID, &filters,
		&job.Checksum, &job.FailureReason, &job.ExpiresAt, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, shared.ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	job.Format = Format(format)
	job.Status = Status(status)
	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &job.Filters); err != nil {
			return Job{}, err
		}
	}
	return job, nil
}

func emptyIfNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
