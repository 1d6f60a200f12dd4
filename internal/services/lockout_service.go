package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/palisadehq/palisade/internal/models"
	pkglogger "github.com/palisadehq/palisade/pkg/logger"
)

// AttemptLedger defines the ledger operations the lockout engine needs
type AttemptLedger interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error)
	CountFailedSince(ctx context.Context, subjectKey string, since time.Time) (int, error)
}

// LockoutStore defines the conditional-write operations over lockout records
type LockoutStore interface {
	Get(ctx context.Context, subjectKey string) (*models.LockoutRecord, error)
	Insert(ctx context.Context, rec *models.LockoutRecord) (bool, error)
	UpdateIfUnchanged(ctx context.Context, rec *models.LockoutRecord, expectedLockedUntil *time.Time) (bool, error)
	Delete(ctx context.Context, subjectKey string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PolicyStore defines the policy lookup the engine needs
type PolicyStore interface {
	GetBySubject(ctx context.Context, subjectKey string) (*models.SecurityPolicy, error)
}

// LockoutConfig holds the engine's defaults and retry bound.
// Clock is overridable for tests; nil means time.Now.
type LockoutConfig struct {
	MaxFailedAttempts      int
	LockoutDurationMinutes int
	WindowMinutes          int
	DecisionRetries        int
	Clock                  func() time.Time
}

const lockoutReason = "max failed login attempts exceeded"

// LockoutService is the per-subject lockout state machine. All cross-request
// coordination happens through the store's conditional writes; the service
// itself holds no mutable state.
type LockoutService struct {
	ledger   AttemptLedger
	lockouts LockoutStore
	policies PolicyStore
	config   LockoutConfig
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
	now      func() time.Time
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(ledger AttemptLedger, lockouts LockoutStore, policies PolicyStore, config LockoutConfig, logger *slog.Logger, audit *pkglogger.AuditLogger) *LockoutService {
	now := config.Clock
	if now == nil {
		now = time.Now
	}
	if config.DecisionRetries < 1 {
		config.DecisionRetries = 3
	}
	return &LockoutService{
		ledger:   ledger,
		lockouts: lockouts,
		policies: policies,
		config:   config,
		logger:   logger,
		audit:    audit,
		now:      now,
	}
}

// RecordAttemptAndEvaluate appends the attempt to the ledger and runs the
// lockout decision. The ledger write happens first and unconditionally; any
// failure there aborts the whole operation so the audit trail is never
// silently dropped.
func (s *LockoutService) RecordAttemptAndEvaluate(ctx context.Context, subjectKey string, success bool, metadata models.AttemptMetadata) (*models.LockoutDecision, error) {
	if subjectKey == "" {
		return nil, models.ErrInvalidSubject
	}

	policy := s.effectivePolicy(ctx, subjectKey)

	attempt := &models.LoginAttempt{
		SubjectKey:        subjectKey,
		Success:           success,
		FailureReason:     metadata.FailureReason,
		DeviceFingerprint: metadata.DeviceFingerprint,
		DeviceInfo:        metadata.DeviceInfo,
		LocationInfo:      metadata.LocationInfo,
		IPAddress:         metadata.IPAddress,
		UserAgent:         metadata.UserAgent,
		ExpiresAt:         s.now().Add(2 * policy.Window()),
	}

	recorded, err := s.ledger.Record(ctx, attempt)
	if err != nil {
		s.logger.Error("ledger write failed", slog.Any("error", err),
			slog.String("subject", pkglogger.SanitizedSubject(subjectKey)))
		return nil, err
	}

	if success {
		// Successful auth always wins: clear any lock immediately.
		if err := s.lockouts.Delete(ctx, subjectKey); err != nil {
			return nil, err
		}
		s.audit.LogLockoutCleared(subjectKey, metadata.IPAddress)
		return &models.LockoutDecision{}, nil
	}

	// Count from the stored timestamp of the attempt just written, not from
	// wall clock at read time, so distributed callers agree on the window.
	windowStart := recorded.AttemptTime.Add(-policy.Window())
	count, err := s.ledger.CountFailedSince(ctx, subjectKey, windowStart)
	if err != nil {
		return nil, err
	}

	if count < policy.MaxFailedAttempts {
		return &models.LockoutDecision{FailedAttemptsCount: count}, nil
	}

	if err := s.applyLockout(ctx, subjectKey, recorded.AttemptTime, policy, count); err != nil {
		return nil, err
	}

	s.audit.LogLockoutTriggered(subjectKey, metadata.IPAddress, count, policy.LockoutDurationMinutes)

	return &models.LockoutDecision{
		ShouldLockout:          true,
		LockoutDurationMinutes: policy.LockoutDurationMinutes,
		FailedAttemptsCount:    count,
	}, nil
}

// applyLockout upserts the lockout record with a bounded optimistic retry
// loop. The lock horizon never decreases: a concurrent decision that computed
// a smaller locked_until must not shorten protection already in place.
func (s *LockoutService) applyLockout(ctx context.Context, subjectKey string, now time.Time, policy *models.SecurityPolicy, count int) error {
	desired := now.Add(policy.LockoutDuration())

	for i := 0; i < s.config.DecisionRetries; i++ {
		existing, err := s.lockouts.Get(ctx, subjectKey)
		if errors.Is(err, models.ErrNotFound) {
			rec := &models.LockoutRecord{
				SubjectKey:      subjectKey,
				LockedUntil:     &desired,
				FailedAttempts:  count,
				Reason:          lockoutReason,
				AutomaticUnlock: true,
			}
			inserted, err := s.lockouts.Insert(ctx, rec)
			if err != nil {
				return err
			}
			if inserted {
				return nil
			}
			continue // lost the insert race, re-read
		}
		if err != nil {
			return err
		}

		// A manual hold (automatic_unlock=false) outranks any engine decision:
		// it persists until explicit reset, so a threshold breach must never
		// demote it to an auto-expiring lock.
		if !existing.AutomaticUnlock {
			return nil
		}

		target := desired
		if existing.LockedUntil != nil && existing.LockedUntil.After(target) {
			target = *existing.LockedUntil
		}
		rec := &models.LockoutRecord{
			SubjectKey:      subjectKey,
			LockedUntil:     &target,
			FailedAttempts:  count,
			Reason:          lockoutReason,
			AutomaticUnlock: true,
		}
		updated, err := s.lockouts.UpdateIfUnchanged(ctx, rec, existing.LockedUntil)
		if err != nil {
			return err
		}
		if updated {
			return nil
		}
	}

	s.logger.Warn("lockout decision retries exhausted",
		slog.String("subject", pkglogger.SanitizedSubject(subjectKey)))
	return models.ErrLockoutConflict
}

// IsLocked reports whether the subject is currently locked out. Expiry is
// evaluated lazily against the clock; no cleanup pass is needed first.
func (s *LockoutService) IsLocked(ctx context.Context, subjectKey string) (bool, error) {
	rec, err := s.lockouts.Get(ctx, subjectKey)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Active(s.now()), nil
}

// GetLockoutInfo returns the read-only lockout projection for a subject.
func (s *LockoutService) GetLockoutInfo(ctx context.Context, subjectKey string) (*models.LockoutInfo, error) {
	rec, err := s.lockouts.Get(ctx, subjectKey)
	if errors.Is(err, models.ErrNotFound) {
		return &models.LockoutInfo{}, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	info := &models.LockoutInfo{
		IsLocked:       rec.Active(now),
		FailedAttempts: rec.FailedAttempts,
	}
	if info.IsLocked {
		info.LockedUntil = rec.LockedUntil
		info.MinutesRemaining = minutesRemaining(*rec.LockedUntil, now)
	}
	return info, nil
}

// ResetLockout clears the subject's lock unconditionally. Used by the
// administrative/self-service reset path.
func (s *LockoutService) ResetLockout(ctx context.Context, subjectKey string) error {
	if err := s.lockouts.Delete(ctx, subjectKey); err != nil {
		return err
	}
	s.audit.LogLockoutReset(subjectKey)
	return nil
}

// CleanupExpiredLockouts deletes expired auto-unlock rows. Purely a storage
// compaction convenience; IsLocked is correct without it.
func (s *LockoutService) CleanupExpiredLockouts(ctx context.Context) (int64, error) {
	return s.lockouts.DeleteExpired(ctx, s.now())
}

// effectivePolicy resolves the subject's policy, falling back to the
// process-wide defaults when none is stored or the lookup fails. A policy
// read failure must not block the unconditional ledger append.
func (s *LockoutService) effectivePolicy(ctx context.Context, subjectKey string) *models.SecurityPolicy {
	policy, err := s.policies.GetBySubject(ctx, subjectKey)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("policy lookup failed, using defaults", slog.Any("error", err),
				slog.String("subject", pkglogger.SanitizedSubject(subjectKey)))
		}
		return &models.SecurityPolicy{
			SubjectKey:             subjectKey,
			MaxFailedAttempts:      s.config.MaxFailedAttempts,
			LockoutDurationMinutes: s.config.LockoutDurationMinutes,
			WindowMinutes:          s.config.WindowMinutes,
		}
	}
	return policy
}

// minutesRemaining is ceil((until - now) / 1m), floored at zero.
func minutesRemaining(until, now time.Time) int {
	remaining := until.Sub(now)
	if remaining <= 0 {
		return 0
	}
	mins := int((remaining + time.Minute - 1) / time.Minute)
	return mins
}
