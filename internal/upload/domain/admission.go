package domain

import "time"

// ClientKey is the keyed hash of a client identity; raw identities are never persisted.
type ClientKey string

// AdmissionToken represents exactly one concurrency slot.
type AdmissionToken struct {
	ID        string
	ClientKey ClientKey
	IssuedAt  time.Time
}

type DenyReason string

const (
	DenyHourlyLimit     DenyReason = "hourly_limit_exceeded"
	DenyConcurrentLimit DenyReason = "concurrent_limit_exceeded"
)

// SlotRequest is one atomic check-and-reserve against a client's counters.
type SlotRequest struct {
	ClientKey        ClientKey
	TokenID          string
	Now              time.Time
	HourBucket       int64
	HourlyLimit      int
	ConcurrencyLimit int
	TokenTTL         time.Duration
	Retention        time.Duration
}

// SlotVerdict is the store's answer. Denied verdicts leave all counters untouched.
type SlotVerdict struct {
	Granted bool
	Reason  DenyReason
}
