package approval

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Notifier delivers escalation notices to the target approver group.
// Delivery is best-effort; failures never alter the workflow outcome.
type Notifier interface {
	NotifyEscalation(ctx context.Context, req Request, target string) error
}

// Sweeper is the singleton periodic task that scans non-terminal requests
// for SLA breach and applies escalation transitions. Every transition is
// guarded by a status precondition in the repository, so concurrent sweeps
// (or a sweep racing a human decision) skip instead of double-transitioning.
type Sweeper struct {
	repo     RepositoryPort
	audit    AuditSink
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	maxLevel int
}

// NewSweeper builds a Sweeper with an injectable clock so SLA logic is
// deterministically testable.
func NewSweeper(repo RepositoryPort, audit AuditSink, notifier Notifier, logger *slog.Logger, now func() time.Time, maxLevel int) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{repo: repo, audit: audit, notifier: notifier, logger: logger, now: now, maxLevel: maxLevel}
}

// SweepStats summarises one sweep run.
type SweepStats struct {
	Scanned      int
	Escalated    int
	AutoApproved int
	AutoRejected int
	Expired      int
	Skipped      int
}

// Sweep scans all pending and escalated requests once.
func (s *Sweeper) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	requests, err := s.repo.ListByStatus(ctx, []Status{StatusPending, StatusEscalated})
	if err != nil {
		return stats, err
	}
	now := s.now().UTC()
	for _, req := range requests {
		stats.Scanned++
		if !req.SLADeadline.Before(now) {
			continue
		}
		if err := s.handleOverdue(ctx, req, now, &stats); err != nil {
			// One bad request must not starve the rest of the sweep.
			if s.logger != nil {
				s.logger.Error("escalation sweep", slog.Any("error", err), slog.String("request", req.ID.String()))
			}
		}
	}
	return stats, nil
}

func (s *Sweeper) handleOverdue(ctx context.Context, req Request, now time.Time, stats *SweepStats) error {
	rule, err := s.repo.FindRule(ctx, req.Action, req.ResourceType)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// No rule: the request keeps waiting for a human decision.
			return nil
		}
		return err
	}
	maxLevel := rule.MaxLevel
	if maxLevel > s.maxLevel {
		maxLevel = s.maxLevel
	}
	open := []Status{StatusPending, StatusEscalated}

	if req.EscalationLevel < maxLevel {
		newLevel := req.EscalationLevel + 1
		deadline := now.Add(rule.EffectiveSLA(newLevel))
		applied, err := s.repo.EscalateIfCurrent(ctx, req.ID, open, newLevel, rule.EscalateTo, deadline, now)
		if err != nil {
			return err
		}
		if !applied {
			stats.Skipped++
			return nil
		}
		stats.Escalated++
		s.recordEvent(ctx, req, "approval.escalated", map[string]any{
			"level":    newLevel,
			"target":   rule.EscalateTo,
			"deadline": deadline,
		})
		if s.notifier != nil {
			if err := s.notifier.NotifyEscalation(ctx, req, rule.EscalateTo); err != nil && s.logger != nil {
				s.logger.Warn("notify escalation", slog.Any("error", err), slog.String("request", req.ID.String()))
			}
		}
		return nil
	}

	// Max escalation level reached with no decision: auto-approve takes
	// priority over auto-reject, otherwise the request expires.
	target := StatusExpired
	switch {
	case rule.AutoApprove:
		target = StatusApproved
	case rule.AutoReject:
		target = StatusRejected
	}
	applied, err := s.repo.TransitionIfCurrent(ctx, req.ID, open, target, now)
	if err != nil {
		return err
	}
	if !applied {
		stats.Skipped++
		return nil
	}
	switch target {
	case StatusApproved:
		stats.AutoApproved++
	case StatusRejected:
		stats.AutoRejected++
	default:
		stats.Expired++
	}
	s.recordEvent(ctx, req, "approval.sla_exhausted", map[string]any{
		"outcome": string(target),
		"level":   req.EscalationLevel,
	})
	return nil
}

func (s *Sweeper) recordEvent(ctx context.Context, req Request, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordEvent(ctx, "system", action, "approval_request", req.ID.String(), meta); err != nil && s.logger != nil {
		s.logger.Error("audit sweep event", slog.Any("error", err), slog.String("request", req.ID.String()))
	}
}
