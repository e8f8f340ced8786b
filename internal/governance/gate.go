// Package governance composes RBAC, policy evaluation, approval gating and
// audit into a single enforcement decision for governed mutations.
package governance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-cms/meridian/internal/approval"
	"github.com/meridian-cms/meridian/internal/policy"
)

// Toggles enables each governance subsystem independently. Everything off
// means every check passes and nothing is written.
type Toggles struct {
	RBAC     bool
	Policy   bool
	Approval bool
	Audit    bool
}

// PermissionChecker answers scoped permission questions.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userRoles []string, action, resource, scopeKind, scopeValue string) (bool, error)
}

// PolicyEvaluator evaluates the policy snapshot against a request context.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, rc policy.RequestContext) (policy.Result, error)
}

// ApprovalOpener opens approval requests for gated actions.
type ApprovalOpener interface {
	Create(ctx context.Context, p approval.CreateParams) (approval.Request, error)
}

// AuditSink records every governed attempt.
type AuditSink interface {
	RecordEvent(ctx context.Context, actor, action, resource, resourceID string, meta map[string]any) error
}

// Request describes one governed attempt.
type Request struct {
	UserID     string
	UserRoles  []string
	Action     string
	Resource   string
	ResourceID string
	ScopeKind  string
	ScopeValue string
	Metadata   map[string]any
}

// Decision is the enforcement outcome.
type Decision struct {
	Allowed           bool          `json:"allowed"`
	Effect            policy.Effect `json:"effect"`
	Messages          []string      `json:"messages"`
	Warnings          []string      `json:"warnings"`
	MatchedPolicies   []string      `json:"matchedPolicies"`
	PendingApproval   bool          `json:"pendingApproval"`
	ApprovalRequestID *uuid.UUID    `json:"approvalRequestId,omitempty"`
}

// Gate runs the enforcement pipeline: bypass roles, RBAC, policy conditions,
// approval gating, then audit.
type Gate struct {
	toggles     Toggles
	bypassRoles []string
	rbac        PermissionChecker
	policies    PolicyEvaluator
	approvals   ApprovalOpener
	audit       AuditSink
	logger      *slog.Logger
}

// NewGate builds Gate instance.
func NewGate(toggles Toggles, bypassRoles []string, rbac PermissionChecker, policies PolicyEvaluator, approvals ApprovalOpener, audit AuditSink, logger *slog.Logger) *Gate {
	return &Gate{
		toggles:     toggles,
		bypassRoles: bypassRoles,
		rbac:        rbac,
		policies:    policies,
		approvals:   approvals,
		audit:       audit,
		logger:      logger,
	}
}

// Check evaluates one governed attempt. The audit write is fail-closed: an
// attempt whose outcome cannot be recorded is returned as an error even when
// every check passed.
func (g *Gate) Check(ctx context.Context, req Request) (Decision, error) {
	decision := Decision{
		Allowed:         true,
		Effect:          policy.EffectAllow,
		Messages:        []string{},
		Warnings:        []string{},
		MatchedPolicies: []string{},
	}
	if g.bypass(req.UserRoles) {
		return decision, g.record(ctx, req, decision)
	}

	if g.toggles.RBAC {
		allowed, err := g.rbac.HasPermission(ctx, req.UserRoles, req.Action, req.Resource, req.ScopeKind, req.ScopeValue)
		if err != nil {
			return Decision{}, fmt.Errorf("governance: rbac check: %w", err)
		}
		if !allowed {
			decision.Allowed = false
			decision.Effect = policy.EffectBlock
			decision.Messages = append(decision.Messages,
				fmt.Sprintf("missing permission %s on %s", req.Action, req.Resource))
			return decision, g.record(ctx, req, decision)
		}
	}

	if g.toggles.Policy {
		result, err := g.policies.Evaluate(ctx, policy.RequestContext{
			Action:     req.Action,
			Resource:   req.Resource,
			ResourceID: req.ResourceID,
			UserID:     req.UserID,
			UserRoles:  req.UserRoles,
			Metadata:   req.Metadata,
		})
		if err != nil {
			return Decision{}, fmt.Errorf("governance: policy evaluation: %w", err)
		}
		decision.Allowed = result.Allowed
		decision.Effect = result.Effect
		decision.Messages = append(decision.Messages, result.Messages...)
		decision.Warnings = append(decision.Warnings, result.Warnings...)
		decision.MatchedPolicies = result.MatchedPolicies
		if !decision.Allowed {
			return decision, g.record(ctx, req, decision)
		}
		if g.toggles.Approval && result.RequiresApproval {
			opened, err := g.approvals.Create(ctx, approval.CreateParams{
				Requester:    req.UserID,
				ResourceType: req.Resource,
				Action:       req.Action,
				Metadata:     req.Metadata,
			})
			if err != nil {
				return Decision{}, fmt.Errorf("governance: open approval: %w", err)
			}
			decision.PendingApproval = true
			decision.ApprovalRequestID = &opened.ID
		}
	}

	return decision, g.record(ctx, req, decision)
}

func (g *Gate) bypass(roles []string) bool {
	for _, r := range roles {
		for _, b := range g.bypassRoles {
			if r == b {
				return true
			}
		}
	}
	return false
}

// record writes the attempt to the audit trail. With auditing off it is a
// no-op; with auditing on a write failure fails the whole check.
func (g *Gate) record(ctx context.Context, req Request, decision Decision) error {
	if !g.toggles.Audit || g.audit == nil {
		return nil
	}
	meta := map[string]any{
		"allowed": decision.Allowed,
		"effect":  string(decision.Effect),
	}
	if len(decision.MatchedPolicies) > 0 {
		meta["matchedPolicies"] = decision.MatchedPolicies
	}
	if decision.PendingApproval {
		meta["pendingApproval"] = true
	}
	if err := g.audit.RecordEvent(ctx, req.UserID, "governance."+req.Action, req.Resource, req.ResourceID, meta); err != nil {
		if g.logger != nil {
			g.logger.Error("governance audit write", slog.Any("error", err))
		}
		return fmt.Errorf("governance: audit write: %w", err)
	}
	return nil
}
