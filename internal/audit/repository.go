package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository appends and reads audit_log_entries. The table is append-only;
// there are no update or delete paths.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one entry.
func (r *Repository) Insert(ctx context.Context, e Entry) error {
	diffJSON, err := json.Marshal(e.Diff)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_log_entries
(actor, action, resource, resource_id, before_snapshot, after_snapshot, diff, redacted, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))`,
		e.Actor, e.Action, e.Resource, e.ResourceID, e.Before, e.After, diffJSON, e.Redacted, nullableTime(e.CreatedAt))
	return err
}

// Window returns one page of entries, newest first. limit should include one
// extra row so the caller can detect a next page.
func (r *Repository) Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, actor, action, resource, resource_id, before_snapshot, after_snapshot, diff, redacted, created_at
FROM audit_log_entries
WHERE ($1::timestamptz IS NULL OR created_at >= $1)
  AND ($2::timestamptz IS NULL OR created_at <= $2)
  AND ($3::text IS NULL OR actor = $3)
  AND ($4::text IS NULL OR resource = $4)
  AND ($5::text IS NULL OR action = $5)
ORDER BY created_at DESC, id DESC
OFFSET $6 LIMIT $7`,
		nullableTime(f.From), nullableTime(f.To), nullableText(f.Actor), nullableText(f.Resource), nullableText(f.Action),
		offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var diffJSON []byte
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Resource, &e.ResourceID, &e.Before, &e.After, &diffJSON, &e.Redacted, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(diffJSON) > 0 {
			if err := json.Unmarshal(diffJSON, &e.Diff); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
