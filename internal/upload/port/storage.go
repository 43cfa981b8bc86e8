package port

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=../service/mocks/storage_mock.go -package=mocks -source=storage.go

var ErrStagingMissing = errors.New("staging object missing")

// StagingStore holds partially uploaded bytes.
type StagingStore interface {
	// Create makes an empty staging object for a session and returns its path.
	Create(ctx context.Context, sessionID string) (string, error)

	// Size returns the number of bytes physically present, or ErrStagingMissing.
	Size(ctx context.Context, path string) (int64, error)

	// Append writes data at the end of the object and reports how many bytes landed.
	Append(ctx context.Context, path string, data []byte) (int, error)

	// Remove deletes the object. Removing a missing object is not an error.
	Remove(ctx context.Context, path string) error
}

// PermanentStore receives finalized uploads.
type PermanentStore interface {
	// Location maps a storage name to the backend-specific location of the object.
	Location(storageName string) string

	// Promote moves the staged bytes to location.
	Promote(ctx context.Context, stagingPath, location string) error

	// Demote moves bytes back from location to the staging path.
	Demote(ctx context.Context, location, stagingPath string) error

	// Remove deletes the object at location. Removing a missing object is not an error.
	Remove(ctx context.Context, location string) error
}
