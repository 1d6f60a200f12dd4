package repositories

import (
	"context"
	"time"

	"github.com/palisadehq/palisade/internal/database"
)

// RequestLogRepository backs the generic sliding-window rate limiter. The
// table is UNLOGGED: losing it on a crash costs nothing but a briefly
// generous limiter, and it needs none of the ledger's durability.
type RequestLogRepository struct {
	db *database.DB
}

// NewRequestLogRepository creates a new RequestLogRepository
func NewRequestLogRepository(db *database.DB) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

// Record appends one request event for the (subject, endpoint) pair.
func (r *RequestLogRepository) Record(ctx context.Context, subjectKey, endpoint, ipAddress string) error {
	query := `
		INSERT INTO request_log (subject_key, endpoint, ip_address)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.Pool.Exec(ctx, query, subjectKey, endpoint, ipAddress)
	return database.MapPostgresError(err)
}

// CountSince returns the number of requests for the pair with requested_at at
// or after the window start.
func (r *RequestLogRepository) CountSince(ctx context.Context, subjectKey, endpoint string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM request_log
		WHERE subject_key = $1 AND endpoint = $2 AND requested_at >= $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, subjectKey, endpoint, since).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// DeleteBefore drops events older than the cutoff.
func (r *RequestLogRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM request_log WHERE requested_at < $1`
	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
