package models

import "time"

// LoginAttempt is one row in the append-only attempt ledger.
// AttemptTime is assigned by the store at write time and is the canonical
// timestamp for all window calculations.
type LoginAttempt struct {
	ID                string            `db:"id"`
	SubjectKey        string            `db:"subject_key"`
	AttemptTime       time.Time         `db:"attempt_time"`
	Success           bool              `db:"success"`
	FailureReason     *string           `db:"failure_reason"`
	DeviceFingerprint string            `db:"device_fingerprint"`
	DeviceInfo        map[string]string `db:"device_info"`
	LocationInfo      map[string]string `db:"location_info"`
	IPAddress         string            `db:"ip_address"`
	UserAgent         string            `db:"user_agent"`
	ExpiresAt         time.Time         `db:"expires_at"`
}

// AttemptMetadata carries the optional diagnostic fields submitted with an
// attempt. Garbage values are stored as-is; nothing here is security-critical.
type AttemptMetadata struct {
	DeviceFingerprint string
	DeviceInfo        map[string]string
	LocationInfo      map[string]string
	IPAddress         string
	UserAgent         string
	FailureReason     *string
}
