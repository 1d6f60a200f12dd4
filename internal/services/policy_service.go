package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/palisadehq/palisade/internal/models"
	pkglogger "github.com/palisadehq/palisade/pkg/logger"
)

// PolicyRepository defines the policy storage operations
type PolicyRepository interface {
	GetBySubject(ctx context.Context, subjectKey string) (*models.SecurityPolicy, error)
	Upsert(ctx context.Context, policy *models.SecurityPolicy) error
}

// PolicyService resolves and edits per-subject security policies.
type PolicyService struct {
	repo     PolicyRepository
	defaults models.SecurityPolicy
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

// NewPolicyService creates a new PolicyService
func NewPolicyService(repo PolicyRepository, defaults models.SecurityPolicy, logger *slog.Logger, audit *pkglogger.AuditLogger) *PolicyService {
	return &PolicyService{
		repo:     repo,
		defaults: defaults,
		logger:   logger,
		audit:    audit,
	}
}

// GetEffective returns the subject's stored policy, or the process-wide
// defaults when none is configured.
func (s *PolicyService) GetEffective(ctx context.Context, subjectKey string) (*models.SecurityPolicy, error) {
	policy, err := s.repo.GetBySubject(ctx, subjectKey)
	if errors.Is(err, models.ErrNotFound) {
		d := s.defaults
		d.SubjectKey = subjectKey
		return &d, nil
	}
	if err != nil {
		return nil, err
	}
	return policy, nil
}

// Update stores a subject's policy. Bounds are validated at the API boundary;
// the service re-checks the hard floor so direct callers cannot store a
// policy the engine would misbehave on.
func (s *PolicyService) Update(ctx context.Context, policy *models.SecurityPolicy) error {
	if policy.SubjectKey == "" {
		return models.ErrInvalidSubject
	}
	if policy.MaxFailedAttempts < 1 || policy.LockoutDurationMinutes < 1 || policy.WindowMinutes < 1 {
		return models.ErrBadRequest
	}
	if err := s.repo.Upsert(ctx, policy); err != nil {
		return err
	}
	s.audit.LogPolicyChanged(policy.SubjectKey, policy.MaxFailedAttempts, policy.LockoutDurationMinutes, policy.WindowMinutes)
	return nil
}
