package export

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-cms/meridian/internal/approval"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type memJobRepository struct {
	jobs      map[uuid.UUID]Job
	artifacts map[uuid.UUID][]byte
}

func newMemJobRepository() *memJobRepository {
	return &memJobRepository{jobs: map[uuid.UUID]Job{}, artifacts: map[uuid.UUID][]byte{}}
}

func (m *memJobRepository) Create(_ context.Context, job Job) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *memJobRepository) Get(_ context.Context, id uuid.UUID) (Job, error) {
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, errors.New("not found")
	}
	return job, nil
}

func (m *memJobRepository) ListByRequester(_ context.Context, requester string, _ int) ([]Job, error) {
	var out []Job
	for _, job := range m.jobs {
		if job.Requester == requester {
			out = append(out, job)
		}
	}
	return out, nil
}

func (m *memJobRepository) ListAwaitingApproval(_ context.Context) ([]Job, error) {
	var out []Job
	for _, job := range m.jobs {
		if job.Status == StatusPending && job.ApprovalRequestID != nil {
			out = append(out, job)
		}
	}
	return out, nil
}

func (m *memJobRepository) TransitionIfCurrent(_ context.Context, id uuid.UUID, from, to Status, now time.Time) (bool, error) {
	job, ok := m.jobs[id]
	if !ok || job.Status != from {
		return false, nil
	}
	job.Status = to
	job.UpdatedAt = now
	m.jobs[id] = job
	return true, nil
}

func (m *memJobRepository) Complete(_ context.Context, id uuid.UUID, artifact []byte, checksum string, recordCount int, expiresAt, now time.Time) (bool, error) {
	job, ok := m.jobs[id]
	if !ok || job.Status != StatusProcessing {
		return false, nil
	}
	job.Status = StatusCompleted
	job.Checksum = checksum
	job.RecordCount = recordCount
	job.ExpiresAt = &expiresAt
	job.UpdatedAt = now
	m.jobs[id] = job
	m.artifacts[id] = artifact
	return true, nil
}

func (m *memJobRepository) Fail(_ context.Context, id uuid.UUID, reason string, now time.Time) error {
	job := m.jobs[id]
	job.Status = StatusFailed
	job.FailureReason = reason
	job.UpdatedAt = now
	m.jobs[id] = job
	delete(m.artifacts, id)
	return nil
}

func (m *memJobRepository) Artifact(_ context.Context, id uuid.UUID) ([]byte, error) {
	return m.artifacts[id], nil
}

type stubSource struct {
	count    int
	records  []map[string]any
	fetchErr error
}

func (s stubSource) Count(_ context.Context, _ string, _ map[string]any) (int, error) {
	return s.count, nil
}

func (s stubSource) Fetch(_ context.Context, _ string, _ map[string]any) ([]map[string]any, error) {
	return s.records, s.fetchErr
}

type stubGate struct {
	created  []approval.CreateParams
	approved bool
}

func (g *stubGate) Create(_ context.Context, p approval.CreateParams) (approval.Request, error) {
	g.created = append(g.created, p)
	return approval.Request{ID: uuid.New(), Status: approval.StatusPending}, nil
}

func (g *stubGate) Approved(_ context.Context, _ uuid.UUID) (bool, error) {
	return g.approved, nil
}

type noopAudit struct{}

func (noopAudit) RecordEvent(_ context.Context, _, _, _, _ string, _ map[string]any) error {
	return nil
}

func newExportService(repo RepositoryPort, source DataSource, gate ApprovalGate, gating bool) *Service {
	cfg := Config{
		GatingEnabled:      gating,
		SensitiveResources: []string{"users"},
		ApprovalThreshold:  1000,
		LinkTTL:            24 * time.Hour,
	}
	logger := slog.New(slog.NewTextHandler(noopWriter{}, nil))
	return NewService(repo, source, nil, gate, nil, noopAudit{}, logger, cfg, func() time.Time { return baseTime })
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

type recordingEnqueuer struct {
	ids []uuid.UUID
}

func (e *recordingEnqueuer) EnqueueExport(_ context.Context, id uuid.UUID) error {
	e.ids = append(e.ids, id)
	return nil
}

func TestCreateUngatedProcessesInline(t *testing.T) {
	repo := newMemJobRepository()
	source := stubSource{count: 2, records: []map[string]any{{"id": 1}, {"id": 2}}}
	svc := newExportService(repo, source, &stubGate{}, true)

	job, err := svc.Create(context.Background(), CreateParams{
		Requester: "u-1", ResourceType: "pages", Format: FormatJSON,
	})
	require.NoError(t, err)
	assert.False(t, job.RequiresApproval)

	stored := repo.jobs[job.ID]
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.NotEmpty(t, stored.Checksum)
	require.NotNil(t, stored.ExpiresAt)
	assert.Equal(t, baseTime.Add(24*time.Hour), *stored.ExpiresAt)
	assert.NotEmpty(t, repo.artifacts[job.ID])
}

func TestCreateSensitiveResourceIsGated(t *testing.T) {
	repo := newMemJobRepository()
	gate := &stubGate{}
	svc := newExportService(repo, stubSource{count: 5}, gate, true)

	job, err := svc.Create(context.Background(), CreateParams{
		Requester: "u-1", ResourceType: "users", Format: FormatCSV,
	})
	require.NoError(t, err)
	assert.True(t, job.RequiresApproval)
	require.NotNil(t, job.ApprovalRequestID)
	require.Len(t, gate.created, 1)
	assert.Equal(t, "export", gate.created[0].Action)
	assert.Equal(t, StatusPending, repo.jobs[job.ID].Status)
}

func TestCreateLargeCountIsGated(t *testing.T) {
	repo := newMemJobRepository()
	gate := &stubGate{}
	svc := newExportService(repo, stubSource{count: 1001}, gate, true)

	job, err := svc.Create(context.Background(), CreateParams{
		Requester: "u-1", ResourceType: "pages", Format: FormatCSV,
	})
	require.NoError(t, err)
	assert.True(t, job.RequiresApproval)
}

func TestCreateGatingDisabled(t *testing.T) {
	repo := newMemJobRepository()
	gate := &stubGate{}
	svc := newExportService(repo, stubSource{count: 5, records: []map[string]any{{"id": 1}}}, gate, false)

	job, err := svc.Create(context.Background(), CreateParams{
		Requester: "u-1", ResourceType: "users", Format: FormatJSON,
	})
	require.NoError(t, err)
	assert.False(t, job.RequiresApproval)
	assert.Empty(t, gate.created)
}

func TestCreateRejectsUnknownFormat(t *testing.T) {
	svc := newExportService(newMemJobRepository(), stubSource{}, &stubGate{}, false)
	_, err := svc.Create(context.Background(), CreateParams{
		Requester: "u-1", ResourceType: "pages", Format: Format("pdf"),
	})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDispatchApprovedEnqueuesDecidedJobs(t *testing.T) {
	repo := newMemJobRepository()
	gate := &stubGate{}
	enq := &recordingEnqueuer{}
	cfg := Config{GatingEnabled: true, SensitiveResources: []string{"users"}, ApprovalThreshold: 1000, LinkTTL: 24 * time.Hour}
	logger := slog.New(slog.NewTextHandler(noopWriter{}, nil))
	svc := NewService(repo, stubSource{count: 5}, nil, gate, enq, noopAudit{}, logger, cfg, func() time.Time { return baseTime })

	job, err := svc.Create(context.Background(), CreateParams{
		Requester: "u-1", ResourceType: "users", Format: FormatCSV,
	})
	require.NoError(t, err)
	require.True(t, job.RequiresApproval)
	assert.Empty(t, enq.ids)

	// Approval still open: the sweep leaves the job alone.
	n, err := svc.DispatchApproved(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, enq.ids)
	assert.Equal(t, StatusPending, repo.jobs[job.ID].Status)

	// Approval decided: the job is handed to the worker.
	gate.approved = true
	n, err = svc.DispatchApproved(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, enq.ids, 1)
	assert.Equal(t, job.ID, enq.ids[0])
}

func TestProcessWaitsForApproval(t *testing.T) {
	repo := newMemJobRepository()
	gate := &stubGate{}
	svc := newExportService(repo, stubSource{count: 5, records: []map[string]any{{"id": 1}}}, gate, true)

	job, err := svc.Create(context.Background(), CreateParams{
		Requester: "u-1", ResourceType: "users", Format: FormatJSON,
	})
	require.NoError(t, err)

	err = svc.Process(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrAwaitingApproval)
	assert.Equal(t, StatusPending, repo.jobs[job.ID].Status)

	gate.approved = true
	require.NoError(t, svc.Process(context.Background(), job.ID))
	assert.Equal(t, StatusCompleted, repo.jobs[job.ID].Status)
}

func TestProcessFailureDiscardsArtifact(t *testing.T) {
	repo := newMemJobRepository()
	source := stubSource{count: 1, fetchErr: errors.New("source down")}
	svc := newExportService(repo, source, &stubGate{}, false)

	job := Job{ID: uuid.New(), Requester: "u-1", ResourceType: "pages", Format: FormatCSV,
		Status: StatusPending, CreatedAt: baseTime, UpdatedAt: baseTime}
	require.NoError(t, repo.Create(context.Background(), job))

	err := svc.Process(context.Background(), job.ID)
	require.Error(t, err)
	stored := repo.jobs[job.ID]
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "fetch")
	assert.Empty(t, repo.artifacts[job.ID])
}

func TestProcessSkipsNonPending(t *testing.T) {
	repo := newMemJobRepository()
	svc := newExportService(repo, stubSource{records: []map[string]any{{"id": 1}}}, &stubGate{}, false)

	job := Job{ID: uuid.New(), Requester: "u-1", ResourceType: "pages", Format: FormatCSV,
		Status: StatusCompleted, CreatedAt: baseTime, UpdatedAt: baseTime}
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, svc.Process(context.Background(), job.ID))
	assert.Equal(t, StatusCompleted, repo.jobs[job.ID].Status)
}

func TestDownloadExpiredLink(t *testing.T) {
	repo := newMemJobRepository()
	svc := newExportService(repo, stubSource{}, &stubGate{}, false)

	expired := baseTime.Add(-time.Minute)
	job := Job{ID: uuid.New(), Requester: "u-1", ResourceType: "pages", Format: FormatCSV,
		Status: StatusCompleted, ExpiresAt: &expired, CreatedAt: baseTime, UpdatedAt: baseTime}
	require.NoError(t, repo.Create(context.Background(), job))
	repo.artifacts[job.ID] = []byte("data")

	_, _, err := svc.Download(context.Background(), job.ID, "u-1")
	assert.ErrorIs(t, err, ErrLinkExpired)
}

func TestDownloadCompletedJob(t *testing.T) {
	repo := newMemJobRepository()
	svc := newExportService(repo, stubSource{records: []map[string]any{{"id": 1}}}, &stubGate{}, false)

	created, err := svc.Create(context.Background(), CreateParams{
		Requester: "u-1", ResourceType: "pages", Format: FormatJSON,
	})
	require.NoError(t, err)

	job, artifact, err := svc.Download(context.Background(), created.ID, "u-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.NotEmpty(t, artifact)
}

func TestDownloadPendingJobNotReady(t *testing.T) {
	repo := newMemJobRepository()
	svc := newExportService(repo, stubSource{}, &stubGate{approved: false}, true)

	job, err := svc.Create(context.Background(), CreateParams{
		Requester: "u-1", ResourceType: "users", Format: FormatCSV,
	})
	require.NoError(t, err)

	_, _, err = svc.Download(context.Background(), job.ID, "u-1")
	assert.ErrorIs(t, err, ErrNotReady)
}
