package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrSizeExceeded     = errors.New("upload size exceeded")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrAuth             = errors.New("csrf token invalid")
	ErrQuota            = errors.New("admission denied")
	ErrNotFound         = errors.New("upload session not found")
	ErrGone             = errors.New("upload session expired")
	ErrConflict         = errors.New("offset mismatch")
	ErrLocked           = errors.New("upload session locked")
	ErrInvalidExtension = errors.New("file extension not allowed")
	ErrIntegrity        = errors.New("secret integrity check failed")
	ErrInternal         = errors.New("internal error")
)

// ValidationError describes rejected input. Reason is the machine-readable code sent to clients.
type ValidationError struct {
	Reason  string
	Message string
	Cause   error
}

func NewValidationError(reason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrValidation, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// QuotaError reports an admission denial with a concrete retry delay.
type QuotaError struct {
	Reason     DenyReason
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%v (%s): retry in %s", ErrQuota, e.Reason, e.RetryAfter)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuota
}

// RetryAfterSeconds rounds up so clients never retry early.
func (e *QuotaError) RetryAfterSeconds() int64 {
	secs := int64(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// ConflictError carries the authoritative offset so the client can resynchronize.
type ConflictError struct {
	Expected   int64
	Received   int64
	ActualSize int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: expected=%d received=%d actual=%d", ErrConflict, e.Expected, e.Received, e.ActualSize)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Internal wraps a storage or database failure so callers can match ErrInternal.
func Internal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}
