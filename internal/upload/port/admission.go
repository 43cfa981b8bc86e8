package port

import (
	"context"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
)

//go:generate mockgen -destination=../service/mocks/admission_mock.go -package=mocks -source=admission.go

// AdmissionStore keeps hourly counters and outstanding tokens per client key.
// TryAcquire must be atomic per client key.
type AdmissionStore interface {
	TryAcquire(ctx context.Context, req domain.SlotRequest) (domain.SlotVerdict, error)

	// Release removes a token. Unknown or already released tokens are a no-op.
	Release(ctx context.Context, key domain.ClientKey, tokenID string) error

	// Outstanding counts live tokens for a client, ignoring those older than ttl.
	Outstanding(ctx context.Context, key domain.ClientKey, now time.Time, ttl time.Duration) (int, error)
}

// Unlock releases a lock obtained from SessionLocker.
type Unlock func(ctx context.Context) error

// SessionLocker serializes PATCH handling per session across processes.
type SessionLocker interface {
	// Lock returns domain.ErrLocked if the session stays busy for the configured wait.
	Lock(ctx context.Context, sessionID string) (Unlock, error)
}
