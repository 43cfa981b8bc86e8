package port

import (
	"context"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
)

//go:generate mockgen -destination=../service/mocks/repository_mock.go -package=mocks -source=repository.go

// SessionRepository persists upload sessions.
type SessionRepository interface {
	// Create inserts a new session row.
	Create(ctx context.Context, session *domain.UploadSession) error

	// Get returns domain.ErrNotFound when no row exists.
	Get(ctx context.Context, id string) (*domain.UploadSession, error)

	// UpdateOffset stores the offset and touch time of a session.
	UpdateOffset(ctx context.Context, id string, offset int64, updatedAt time.Time) error

	// Delete removes a session row. Deleting a missing row is not an error.
	Delete(ctx context.Context, id string) error

	// ListExpired returns up to limit sessions whose expiry is before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.UploadSession, error)
}

// FileRepository persists permanent file records.
type FileRepository interface {
	// Reserve inserts the record in pending state.
	Reserve(ctx context.Context, record *domain.FileRecord) error

	// Commit activates a reserved record and marks the session completed in one transaction.
	Commit(ctx context.Context, fileID int64, sessionID string) error

	// Delete removes a record; used to roll back a reservation.
	Delete(ctx context.Context, fileID int64) error

	// PendingForSession lists the reservations a session still holds, newest first.
	PendingForSession(ctx context.Context, sessionID string) ([]*domain.FileRecord, error)
}
