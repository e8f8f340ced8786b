package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RepositoryPort defines data access methods for the audit log.
type RepositoryPort interface {
	Insert(ctx context.Context, e Entry) error
	Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]Entry, error)
}

// writeTimeout bounds how long a governed action may wait on the audit
// store. A slow store fails the write instead of hanging the action.
const writeTimeout = 2 * time.Second

// Service writes and queries the append-only audit trail.
//
// Writes are synchronous and fail-closed: Record runs after the governance
// decision is computed, and a failed write is returned as an error so the
// governed mutation does not complete unaudited. It never silently succeeds.
type Service struct {
	repo      RepositoryPort
	sanitizer *Sanitizer
	now       func() time.Time
}

// NewService builds an audit Service.
func NewService(repo RepositoryPort, sanitizer *Sanitizer, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, sanitizer: sanitizer, now: now}
}

// RecordChange sanitizes the before/after snapshots, computes their diff and
// appends one entry.
func (s *Service) RecordChange(ctx context.Context, actor, action, resource, resourceID string, before, after map[string]any) error {
	if action == "" || resource == "" {
		return errors.New("audit: action and resource required")
	}
	entry := Entry{
		Actor:      actor,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		CreatedAt:  s.now().UTC(),
	}
	var redacted bool
	if before != nil {
		cleaned, hit := s.sanitizer.Sanitize(before)
		redacted = redacted || hit
		raw, err := json.Marshal(cleaned)
		if err != nil {
			return fmt.Errorf("audit: marshal before: %w", err)
		}
		str := string(raw)
		entry.Before = &str
	}
	if after != nil {
		cleaned, hit := s.sanitizer.Sanitize(after)
		redacted = redacted || hit
		raw, err := json.Marshal(cleaned)
		if err != nil {
			return fmt.Errorf("audit: marshal after: %w", err)
		}
		str := string(raw)
		entry.After = &str
	}
	entry.Redacted = redacted
	entry.Diff = ComputeDiff(entry.Before, entry.After)

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.repo.Insert(ctx, entry); err != nil {
		return fmt.Errorf("audit: append entry: %w", err)
	}
	return nil
}

// RecordEvent appends an entry without snapshots, carrying metadata as the
// after image. Used for workflow events such as denied preconditions.
func (s *Service) RecordEvent(ctx context.Context, actor, action, resource, resourceID string, meta map[string]any) error {
	return s.RecordChange(ctx, actor, action, resource, resourceID, nil, meta)
}

// Timeline returns one page of audit entries, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.repo.Window(ctx, filters, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []Entry{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}
