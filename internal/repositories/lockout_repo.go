package repositories

import (
	"context"
	"time"

	"github.com/palisadehq/palisade/internal/database"
	"github.com/palisadehq/palisade/internal/models"
)

// LockoutRepository stores the single lockout row per subject. All writes
// are conditional so that concurrent decisions resolve through the store
// rather than through in-process locks.
type LockoutRepository struct {
	db *database.DB
}

// NewLockoutRepository creates a new LockoutRepository
func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

// Get returns the lockout record for a subject, or models.ErrNotFound.
func (r *LockoutRepository) Get(ctx context.Context, subjectKey string) (*models.LockoutRecord, error) {
	query := `
		SELECT subject_key, locked_until, failed_attempts, reason, automatic_unlock, updated_at
		FROM lockout_records
		WHERE subject_key = $1
	`

	var rec models.LockoutRecord
	err := r.db.Pool.QueryRow(ctx, query, subjectKey).Scan(
		&rec.SubjectKey,
		&rec.LockedUntil,
		&rec.FailedAttempts,
		&rec.Reason,
		&rec.AutomaticUnlock,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &rec, nil
}

// Insert creates the lockout row if no row exists for the subject yet.
// Returns false when another writer got there first.
func (r *LockoutRepository) Insert(ctx context.Context, rec *models.LockoutRecord) (bool, error) {
	query := `
		INSERT INTO lockout_records (subject_key, locked_until, failed_attempts, reason, automatic_unlock, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (subject_key) DO NOTHING
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		rec.SubjectKey,
		rec.LockedUntil,
		rec.FailedAttempts,
		rec.Reason,
		rec.AutomaticUnlock,
	)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return tag.RowsAffected() == 1, nil
}

// UpdateIfUnchanged overwrites the row only when locked_until still holds the
// value the caller read. Returns false when the row changed underneath, in
// which case the caller re-reads and retries.
func (r *LockoutRepository) UpdateIfUnchanged(ctx context.Context, rec *models.LockoutRecord, expectedLockedUntil *time.Time) (bool, error) {
	query := `
		UPDATE lockout_records
		SET locked_until = $2, failed_attempts = $3, reason = $4, automatic_unlock = $5, updated_at = NOW()
		WHERE subject_key = $1 AND locked_until IS NOT DISTINCT FROM $6
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		rec.SubjectKey,
		rec.LockedUntil,
		rec.FailedAttempts,
		rec.Reason,
		rec.AutomaticUnlock,
		expectedLockedUntil,
	)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return tag.RowsAffected() == 1, nil
}

// Delete removes the lockout row for a subject unconditionally. Deleting an
// absent row is not an error.
func (r *LockoutRepository) Delete(ctx context.Context, subjectKey string) error {
	query := `DELETE FROM lockout_records WHERE subject_key = $1`
	_, err := r.db.Pool.Exec(ctx, query, subjectKey)
	return database.MapPostgresError(err)
}

// DeleteExpired removes rows whose lock horizon has passed and that unlock
// automatically. Storage hygiene only; lock state reads never depend on it.
func (r *LockoutRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM lockout_records
		WHERE automatic_unlock = true AND locked_until IS NOT NULL AND locked_until < $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
