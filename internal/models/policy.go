package models

import "time"

// Default policy values applied when a subject has no stored policy.
const (
	DefaultMaxFailedAttempts      = 5
	DefaultLockoutDurationMinutes = 15
	DefaultWindowMinutes          = 60
)

// SecurityPolicy is the per-subject lockout configuration. A missing row
// means the process-wide defaults apply.
type SecurityPolicy struct {
	SubjectKey             string    `db:"subject_key"`
	MaxFailedAttempts      int       `db:"max_failed_attempts"`
	LockoutDurationMinutes int       `db:"lockout_duration_minutes"`
	WindowMinutes          int       `db:"window_minutes"`
	UpdatedAt              time.Time `db:"updated_at"`
}

// DefaultSecurityPolicy returns the process-wide default policy for a subject.
func DefaultSecurityPolicy(subjectKey string) *SecurityPolicy {
	return &SecurityPolicy{
		SubjectKey:             subjectKey,
		MaxFailedAttempts:      DefaultMaxFailedAttempts,
		LockoutDurationMinutes: DefaultLockoutDurationMinutes,
		WindowMinutes:          DefaultWindowMinutes,
	}
}

// LockoutDuration returns the lockout duration as a time.Duration.
func (p *SecurityPolicy) LockoutDuration() time.Duration {
	return time.Duration(p.LockoutDurationMinutes) * time.Minute
}

// Window returns the trailing counting window as a time.Duration.
func (p *SecurityPolicy) Window() time.Duration {
	return time.Duration(p.WindowMinutes) * time.Minute
}
