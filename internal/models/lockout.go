package models

import "time"

// LockoutRecord is the current lock state for one subject. At most one row
// exists per subject; LockedUntil in the past is equivalent to no lock.
type LockoutRecord struct {
	SubjectKey      string     `db:"subject_key"`
	LockedUntil     *time.Time `db:"locked_until"`
	FailedAttempts  int        `db:"failed_attempts"`
	Reason          string     `db:"reason"`
	AutomaticUnlock bool       `db:"automatic_unlock"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// LockoutDecision is the outcome of recording and evaluating one attempt.
type LockoutDecision struct {
	ShouldLockout          bool `json:"shouldLockout"`
	LockoutDurationMinutes int  `json:"lockoutDurationMinutes"`
	FailedAttemptsCount    int  `json:"failedAttemptsCount"`
}

// LockoutInfo is the read-only projection served to callers.
type LockoutInfo struct {
	IsLocked         bool       `json:"isLocked"`
	LockedUntil      *time.Time `json:"lockedUntil"`
	FailedAttempts   int        `json:"failedAttempts"`
	MinutesRemaining int        `json:"minutesRemaining"`
}

// Active reports whether the lock still holds at the given instant.
// Expiry is evaluated lazily here; no background sweep is required.
// A record with AutomaticUnlock=false holds until an explicit reset.
func (r *LockoutRecord) Active(now time.Time) bool {
	if r == nil || r.LockedUntil == nil {
		return false
	}
	if !r.AutomaticUnlock {
		return true
	}
	return r.LockedUntil.After(now)
}
