package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/palisadehq/palisade/pkg/logger"
)

// RequestLog defines the short-lived event store the rate limiter counts over
type RequestLog interface {
	Record(ctx context.Context, subjectKey, endpoint, ipAddress string) error
	CountSince(ctx context.Context, subjectKey, endpoint string, since time.Time) (int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateLimitService is the generic per-subject, per-endpoint admission gate.
// It shares the sliding-window idea with the lockout engine but runs over the
// low-durability request log, and it FAILS OPEN: an unavailable limiter must
// never become a denial-of-service vector against legitimate logins.
type RateLimitService struct {
	log    RequestLog
	logger *slog.Logger
	audit  *logger.AuditLogger
	now    func() time.Time
}

// NewRateLimitService creates a new RateLimitService. clock may be nil, in
// which case time.Now is used.
func NewRateLimitService(log RequestLog, slogger *slog.Logger, audit *logger.AuditLogger, clock func() time.Time) *RateLimitService {
	if clock == nil {
		clock = time.Now
	}
	return &RateLimitService{
		log:    log,
		logger: slogger,
		audit:  audit,
		now:    clock,
	}
}

// Allow records the request and reports whether it is within maxRequests for
// the trailing window. Given max N, the (N+1)-th request inside the window is
// denied; once the window rolls past the earlier events, requests pass again.
func (s *RateLimitService) Allow(ctx context.Context, subjectKey, endpoint, ipAddress string, maxRequests int, window time.Duration) bool {
	if err := s.log.Record(ctx, subjectKey, endpoint, ipAddress); err != nil {
		s.logger.Error("rate limit record failed, failing open", slog.Any("error", err),
			slog.String("endpoint", endpoint))
		return true
	}

	since := s.now().Add(-window)
	count, err := s.log.CountSince(ctx, subjectKey, endpoint, since)
	if err != nil {
		s.logger.Error("rate limit count failed, failing open", slog.Any("error", err),
			slog.String("endpoint", endpoint))
		return true
	}

	if count > maxRequests {
		s.audit.LogRateLimitDenied(subjectKey, endpoint, ipAddress, count)
		return false
	}
	return true
}

// CleanupStale drops request-log rows older than the cutoff.
func (s *RateLimitService) CleanupStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.log.DeleteBefore(ctx, s.now().Add(-olderThan))
}
