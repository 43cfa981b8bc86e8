package port

import (
	"context"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
)

//go:generate mockgen -destination=../service/mocks/collaborators_mock.go -package=mocks -source=service.go

// UploadService is the protocol state machine consumed by inbound adapters.
type UploadService interface {
	Handle(ctx context.Context, req domain.Request) (domain.Response, error)
}

// Reclaimer removes expired sessions out of band.
type Reclaimer interface {
	ReclaimExpired(ctx context.Context, now time.Time) (domain.ReclaimStats, error)
}

// SecretVault seals reversible secrets. Open may fall back to a legacy decoder.
type SecretVault interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// SecretHasher produces one-way hashes.
type SecretHasher interface {
	Hash(secret []byte) (string, error)
}

// CSRFValidator checks the token supplied with a create request.
type CSRFValidator interface {
	Validate(clientIdentity, token string) bool
}

// ExtensionPolicy decides whether a filename may be stored.
type ExtensionPolicy interface {
	Allowed(filename string) bool
}

// ClientKeyer hashes a client identity into a stable counter key.
type ClientKeyer interface {
	Key(clientIdentity string) domain.ClientKey
}

// IDGenerator allocates permanent record ids.
type IDGenerator interface {
	Next() (int64, error)
}
