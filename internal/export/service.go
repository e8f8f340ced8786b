package export

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/meridian-cms/meridian/internal/approval"
	"github.com/meridian-cms/meridian/internal/export/format"
	"github.com/meridian-cms/meridian/internal/shared"
)

var (
	// ErrLinkExpired indicates a completed job whose download window passed.
	ErrLinkExpired = errors.New("export: download link expired")
	// ErrNotReady indicates a download attempt on a job without an artifact.
	ErrNotReady = errors.New("export: artifact not ready")
	// ErrAwaitingApproval indicates a gated job whose approval is still open.
	ErrAwaitingApproval = errors.New("export: awaiting approval")
	// ErrUnknownFormat indicates an unsupported export format.
	ErrUnknownFormat = errors.New("export: unknown format")
)

// RepositoryPort defines data access methods for export jobs.
type RepositoryPort interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id uuid.UUID) (Job, error)
	ListByRequester(ctx context.Context, requester string, limit int) ([]Job, error)
	ListAwaitingApproval(ctx context.Context) ([]Job, error)
	TransitionIfCurrent(ctx context.Context, id uuid.UUID, from, to Status, now time.Time) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, artifact []byte, checksum string, recordCount int, expiresAt, now time.Time) (bool, error)
	Fail(ctx context.Context, id uuid.UUID, reason string, now time.Time) error
	Artifact(ctx context.Context, id uuid.UUID) ([]byte, error)
}

// DataSource provides the records being exported.
type DataSource interface {
	Count(ctx context.Context, resourceType string, filters map[string]any) (int, error)
	Fetch(ctx context.Context, resourceType string, filters map[string]any) ([]map[string]any, error)
}

// ApprovalGate opens and checks approval requests for gated exports.
type ApprovalGate interface {
	Create(ctx context.Context, p approval.CreateParams) (approval.Request, error)
	Approved(ctx context.Context, id uuid.UUID) (bool, error)
}

// Enqueuer schedules background processing of an export job.
type Enqueuer interface {
	EnqueueExport(ctx context.Context, id uuid.UUID) error
}

// Config carries the gating knobs for the export service.
type Config struct {
	GatingEnabled      bool
	SensitiveResources []string
	ApprovalThreshold  int
	LinkTTL            time.Duration
}

// Service runs the governed export lifecycle.
type Service struct {
	repo     RepositoryPort
	source   DataSource
	limiter  *Limiter
	gate     ApprovalGate
	enqueuer Enqueuer
	audit    approval.AuditSink
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	writers map[Format]format.Writer
}

// NewService builds Service instance. The clock is injectable for tests.
func NewService(repo RepositoryPort, source DataSource, limiter *Limiter, gate ApprovalGate, enqueuer Enqueuer, audit approval.AuditSink, logger *slog.Logger, cfg Config, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     repo,
		source:   source,
		limiter:  limiter,
		gate:     gate,
		enqueuer: enqueuer,
		audit:    audit,
		logger:   logger,
		cfg:      cfg,
		now:      now,
		writers: map[Format]format.Writer{
			FormatCSV:  format.WriteCSV,
			FormatJSON: format.WriteJSON,
			FormatXML:  format.WriteXML,
			FormatXLSX: format.WriteXLSX,
		},
	}
}

// CreateParams describes a new export request.
type CreateParams struct {
	Requester    string
	ResourceType string
	Format       Format
	Filters      map[string]any
}

// Create opens an export job. Gated jobs wait on an approval request; the
// rest go straight to background processing.
func (s *Service) Create(ctx context.Context, p CreateParams) (Job, error) {
	if p.Requester == "" || p.ResourceType == "" {
		return Job{}, errors.New("export: requester and resource type required")
	}
	if !KnownFormat(p.Format) {
		return Job{}, ErrUnknownFormat
	}
	if s.limiter != nil {
		decision, err := s.limiter.Take(ctx, p.Requester)
		if err != nil {
			return Job{}, err
		}
		if !decision.Allowed {
			return Job{}, shared.ErrRateLimited
		}
	}
	count, err := s.source.Count(ctx, p.ResourceType, p.Filters)
	if err != nil {
		return Job{}, fmt.Errorf("export: count %s: %w", p.ResourceType, err)
	}
	now := s.now().UTC()
	job := Job{
		ID:           uuid.New(),
		Requester:    p.Requester,
		ResourceType: p.ResourceType,
		Format:       p.Format,
		Status:       StatusPending,
		RecordCount:  count,
		Filters:      p.Filters,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.cfg.GatingEnabled && RequiresApproval(p.ResourceType, count, s.cfg.SensitiveResources, s.cfg.ApprovalThreshold) {
		job.RequiresApproval = true
		req, err := s.gate.Create(ctx, approval.CreateParams{
			Requester:    p.Requester,
			ResourceType: p.ResourceType,
			Action:       "export",
			Metadata: map[string]any{
				"format":      string(p.Format),
				"recordCount": count,
			},
		})
		if err != nil {
			return Job{}, fmt.Errorf("export: open approval: %w", err)
		}
		job.ApprovalRequestID = &req.ID
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return Job{}, err
	}
	s.recordEvent(ctx, p.Requester, "export.requested", job.ID.String(), map[string]any{
		"resourceType":     p.ResourceType,
		"format":           string(p.Format),
		"recordCount":      count,
		"requiresApproval": job.RequiresApproval,
	})
	if !job.RequiresApproval {
		s.dispatch(ctx, job.ID)
	}
	return job, nil
}

// dispatch hands the job to the worker, falling back to inline processing
// when no queue is wired.
func (s *Service) dispatch(ctx context.Context, id uuid.UUID) {
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueExport(ctx, id); err == nil {
			return
		} else if s.logger != nil {
			s.logger.Error("export enqueue, processing inline", slog.Any("error", err))
		}
	}
	if err := s.Process(ctx, id); err != nil && s.logger != nil {
		s.logger.Error("export process", slog.String("job", id.String()), slog.Any("error", err))
	}
}

// DispatchApproved hands every gated pending job whose approval request has
// been approved to the worker. It runs from the approval decision hook and
// from the periodic worker sweep, which also covers auto-approvals made by
// the escalation sweeper.
func (s *Service) DispatchApproved(ctx context.Context) (int, error) {
	jobs, err := s.repo.ListAwaitingApproval(ctx)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, job := range jobs {
		if job.ApprovalRequestID == nil {
			continue
		}
		approved, err := s.gate.Approved(ctx, *job.ApprovalRequestID)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("export approval check", slog.String("job", job.ID.String()), slog.Any("error", err))
			}
			continue
		}
		if !approved {
			continue
		}
		s.dispatch(ctx, job.ID)
		dispatched++
	}
	return dispatched, nil
}

// Get fetches a job by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	return s.repo.Get(ctx, id)
}

// ListMine returns the requester's recent jobs.
func (s *Service) ListMine(ctx context.Context, requester string) ([]Job, error) {
	return s.repo.ListByRequester(ctx, requester, 50)
}

// Process generates the artifact for a pending job. Gated jobs are only
// processed once their approval request has been approved; everything else is
// left pending. A generation failure marks the job failed and discards any
// partial output.
func (s *Service) Process(ctx context.Context, id uuid.UUID) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.RequiresApproval {
		if job.ApprovalRequestID == nil {
			return fmt.Errorf("export: job %s gated without approval request", id)
		}
		approved, err := s.gate.Approved(ctx, *job.ApprovalRequestID)
		if err != nil {
			return err
		}
		if !approved {
			return ErrAwaitingApproval
		}
	}
	applied, err := s.repo.TransitionIfCurrent(ctx, id, StatusPending, StatusProcessing, s.now().UTC())
	if err != nil {
		return err
	}
	if !applied {
		// Already picked up elsewhere or no longer pending.
		return nil
	}

	records, err := s.source.Fetch(ctx, job.ResourceType, job.Filters)
	if err != nil {
		return s.fail(ctx, job, fmt.Sprintf("fetch: %v", err))
	}
	writer, ok := s.writers[job.Format]
	if !ok {
		return s.fail(ctx, job, "unknown format")
	}
	var buf bytes.Buffer
	if err := writer(&buf, records); err != nil {
		return s.fail(ctx, job, fmt.Sprintf("format: %v", err))
	}

	sum := blake2b.Sum256(buf.Bytes())
	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.LinkTTL)
	if _, err := s.repo.Complete(ctx, id, buf.Bytes(), hex.EncodeToString(sum[:]), len(records), expiresAt, now); err != nil {
		return err
	}
	s.recordEvent(ctx, job.Requester, "export.completed", id.String(), map[string]any{
		"recordCount": len(records),
		"expiresAt":   expiresAt.Format(time.RFC3339),
	})
	return nil
}

func (s *Service) fail(ctx context.Context, job Job, reason string) error {
	if err := s.repo.Fail(ctx, job.ID, reason, s.now().UTC()); err != nil {
		return err
	}
	s.recordEvent(ctx, job.Requester, "export.failed", job.ID.String(), map[string]any{"reason": reason})
	return fmt.Errorf("export: job %s failed: %s", job.ID, reason)
}

// Download returns the artifact for a completed job. Expiry is absolute: once
// the deadline passes the artifact is gone no matter what else happened to
// the job.
func (s *Service) Download(ctx context.Context, id uuid.UUID, actor string) (Job, []byte, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return Job{}, nil, err
	}
	if job.ExpiresAt != nil && s.now().After(*job.ExpiresAt) {
		return Job{}, nil, ErrLinkExpired
	}
	if job.Status != StatusCompleted {
		return Job{}, nil, ErrNotReady
	}
	artifact, err := s.repo.Artifact(ctx, id)
	if err != nil {
		return Job{}, nil, err
	}
	if len(artifact) == 0 {
		return Job{}, nil, ErrNotReady
	}
	s.recordEvent(ctx, actor, "export.downloaded", id.String(), map[string]any{
		"resourceType": job.ResourceType,
		"format":       string(job.Format),
	})
	return job, artifact, nil
}

func (s *Service) recordEvent(ctx context.Context, actor, action, jobID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordEvent(ctx, actor, action, "export_job", jobID, meta); err != nil && s.logger != nil {
		s.logger.Error("export audit", slog.String("action", action), slog.Any("error", err))
	}
}
