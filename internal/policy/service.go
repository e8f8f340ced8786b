package policy

import (
	"context"
	"errors"
	"strings"
)

// RepositoryPort defines data access methods for policies.
type RepositoryPort interface {
	List(ctx context.Context) ([]Policy, error)
	Get(ctx context.Context, id int64) (Policy, error)
	Create(ctx context.Context, p Policy) (Policy, error)
	Update(ctx context.Context, p Policy) (Policy, error)
	Delete(ctx context.Context, id int64) error
}

// Service loads stored policies and evaluates them through the engine.
type Service struct {
	repo   RepositoryPort
	engine *Engine
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, engine *Engine) *Service {
	return &Service{repo: repo, engine: engine}
}

// List returns all policies.
func (s *Service) List(ctx context.Context) ([]Policy, error) {
	return s.repo.List(ctx)
}

// Get fetches a policy by ID.
func (s *Service) Get(ctx context.Context, id int64) (Policy, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a new policy.
func (s *Service) Create(ctx context.Context, p Policy) (Policy, error) {
	if err := validatePolicy(p); err != nil {
		return Policy{}, err
	}
	return s.repo.Create(ctx, p)
}

// Update validates and replaces a policy definition.
func (s *Service) Update(ctx context.Context, p Policy) (Policy, error) {
	if err := validatePolicy(p); err != nil {
		return Policy{}, err
	}
	return s.repo.Update(ctx, p)
}

// Delete removes a policy by ID.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Evaluate loads the policy snapshot and evaluates it against the request
// context.
func (s *Service) Evaluate(ctx context.Context, rc RequestContext) (Result, error) {
	policies, err := s.repo.List(ctx)
	if err != nil {
		return Result{}, err
	}
	return s.engine.Evaluate(policies, rc), nil
}

// ValidationError carries field-level detail for a malformed policy.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "policy: validation failed: " + strings.Join(e.Problems, "; ")
}

func validatePolicy(p Policy) error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name: required")
	}
	switch p.Effect {
	case EffectAllow, EffectWarn, EffectBlock:
	default:
		problems = append(problems, "effect: must be allow, warn or block")
	}
	switch p.Category {
	case CategoryApproval, CategoryAudit, CategoryRateLimit, CategoryRestriction, CategoryWarning:
	default:
		problems = append(problems, "category: unknown")
	}
	problems = append(problems, ValidateConditions(p.Conditions)...)
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// IsValidation reports whether err is a policy validation error.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
