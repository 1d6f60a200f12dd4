package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/palisadehq/palisade/internal/database"
	"github.com/palisadehq/palisade/internal/models"
)

// AttemptRepository is the durable, append-only login attempt ledger.
// Rows are never mutated; retention cleanup is the only delete path.
type AttemptRepository struct {
	db *database.DB
}

// NewAttemptRepository creates a new AttemptRepository
func NewAttemptRepository(db *database.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Record appends one attempt and returns it with the store-assigned
// timestamp. The attempt_time comes from the database clock so that all
// callers count against the same time source.
func (r *AttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	query := `
		INSERT INTO login_attempts (id, subject_key, success, failure_reason, device_fingerprint, device_info, location_info, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING attempt_time
	`

	attempt.ID = uuid.New().String()

	err := r.db.Pool.QueryRow(ctx, query,
		attempt.ID,
		attempt.SubjectKey,
		attempt.Success,
		attempt.FailureReason,
		attempt.DeviceFingerprint,
		attempt.DeviceInfo,
		attempt.LocationInfo,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.ExpiresAt,
	).Scan(&attempt.AttemptTime)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return attempt, nil
}

// CountFailedSince returns the number of failed attempts for a subject with
// attempt_time at or after the window start. Counting is by the stored
// timestamp, so retried or out-of-order deliveries cannot under-count.
func (r *AttemptRepository) CountFailedSince(ctx context.Context, subjectKey string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE subject_key = $1 AND success = false AND attempt_time >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, subjectKey, since).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// DeleteExpired removes ledger rows past their retention horizon. Storage
// hygiene only; window counting never depends on it.
func (r *AttemptRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_attempts WHERE expires_at <= NOW()`
	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
