package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditLogger emits structured security audit events. Subjects are sanitized
// before logging; raw account identifiers never reach the log stream.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogLockoutTriggered records that a subject crossed the failure threshold
// and was locked out.
func (al *AuditLogger) LogLockoutTriggered(subjectKey, ipAddress string, failedAttempts, durationMinutes int) {
	attrs := []slog.Attr{
		slog.String("audit_type", "lockout"),
		slog.String("event_type", "lockout_triggered"),
		slog.String("subject", SanitizedSubject(subjectKey)),
		slog.Int("failed_attempts", failedAttempts),
		slog.Int("lockout_duration_minutes", durationMinutes),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}

// LogLockoutCleared records that a successful authentication cleared a lock.
func (al *AuditLogger) LogLockoutCleared(subjectKey, ipAddress string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "lockout"),
		slog.String("event_type", "lockout_cleared"),
		slog.String("subject", SanitizedSubject(subjectKey)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

// LogLockoutReset records an explicit administrative or self-service reset.
func (al *AuditLogger) LogLockoutReset(subjectKey string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "lockout"),
		slog.String("event_type", "lockout_reset"),
		slog.String("subject", SanitizedSubject(subjectKey)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

// LogRateLimitDenied records a denied admission check.
func (al *AuditLogger) LogRateLimitDenied(subjectKey, endpoint, ipAddress string, count int) {
	attrs := []slog.Attr{
		slog.String("audit_type", "rate_limit"),
		slog.String("event_type", "request_denied"),
		slog.String("subject", SanitizedSubject(subjectKey)),
		slog.String("endpoint", endpoint),
		slog.Int("request_count", count),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}

// LogPolicyChanged records an edit to a subject's security policy.
func (al *AuditLogger) LogPolicyChanged(subjectKey string, maxAttempts, lockoutMinutes, windowMinutes int) {
	attrs := []slog.Attr{
		slog.String("audit_type", "policy"),
		slog.String("event_type", "policy_changed"),
		slog.String("subject", SanitizedSubject(subjectKey)),
		slog.Int("max_failed_attempts", maxAttempts),
		slog.Int("lockout_duration_minutes", lockoutMinutes),
		slog.Int("window_minutes", windowMinutes),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
