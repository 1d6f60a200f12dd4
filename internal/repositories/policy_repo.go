package repositories

import (
	"context"

	"github.com/palisadehq/palisade/internal/database"
	"github.com/palisadehq/palisade/internal/models"
)

// PolicyRepository stores per-subject security policies. A missing row means
// the process-wide defaults apply; callers resolve that fallback.
type PolicyRepository struct {
	db *database.DB
}

// NewPolicyRepository creates a new PolicyRepository
func NewPolicyRepository(db *database.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// GetBySubject returns the stored policy for a subject, or models.ErrNotFound.
func (r *PolicyRepository) GetBySubject(ctx context.Context, subjectKey string) (*models.SecurityPolicy, error) {
	query := `
		SELECT subject_key, max_failed_attempts, lockout_duration_minutes, window_minutes, updated_at
		FROM security_policies
		WHERE subject_key = $1
	`

	var policy models.SecurityPolicy
	err := r.db.Pool.QueryRow(ctx, query, subjectKey).Scan(
		&policy.SubjectKey,
		&policy.MaxFailedAttempts,
		&policy.LockoutDurationMinutes,
		&policy.WindowMinutes,
		&policy.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &policy, nil
}

// Upsert writes the policy for a subject, replacing any existing row.
func (r *PolicyRepository) Upsert(ctx context.Context, policy *models.SecurityPolicy) error {
	query := `
		INSERT INTO security_policies (subject_key, max_failed_attempts, lockout_duration_minutes, window_minutes, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (subject_key) DO UPDATE
		SET max_failed_attempts = EXCLUDED.max_failed_attempts,
		    lockout_duration_minutes = EXCLUDED.lockout_duration_minutes,
		    window_minutes = EXCLUDED.window_minutes,
		    updated_at = NOW()
	`

	_, err := r.db.Pool.Exec(ctx, query,
		policy.SubjectKey,
		policy.MaxFailedAttempts,
		policy.LockoutDurationMinutes,
		policy.WindowMinutes,
	)
	return database.MapPostgresError(err)
}
