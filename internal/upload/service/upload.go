package service

import (
	"context"
	"fmt"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/config"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/metrics"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
)

const protocolVersion = "1.0.0"

var (
	protocolExtensions = []string{"creation", "expiration", "checksum"}
	checksumAlgorithms = []string{"md5", "sha1", "sha256", "crc32"}
)

// Dependencies groups the collaborators the upload service is built from.
type Dependencies struct {
	Sessions   port.SessionRepository
	Files      port.FileRepository
	Staging    port.StagingStore
	Permanent  port.PermanentStore
	Admission  port.AdmissionStore
	Locker     port.SessionLocker
	Vault      port.SecretVault
	Hasher     port.SecretHasher
	CSRF       port.CSRFValidator
	Extensions port.ExtensionPolicy
	Keyer      port.ClientKeyer
	IDs        port.IDGenerator
	Metrics    *metrics.Metrics
}

// UploadServiceImpl is the facade that wires use-case services for the resumable upload protocol.
type UploadServiceImpl struct {
	cfg     *config.Config
	metrics *metrics.Metrics

	admission *admissionService
	sessions  *sessionService
	chunks    *chunkService
	finalizer *finalizeService
	reclaimer *reclaimService
}

// Ensure UploadServiceImpl implements the inbound ports.
var (
	_ port.UploadService = (*UploadServiceImpl)(nil)
	_ port.Reclaimer     = (*UploadServiceImpl)(nil)
)

// NewUploadService builds the upload facade and all use-case services.
func NewUploadService(cfg *config.Config, deps Dependencies) *UploadServiceImpl {
	svc := &UploadServiceImpl{
		cfg:     cfg,
		metrics: deps.Metrics,
	}

	svc.admission = newAdmissionService(svc, deps.Admission, deps.Keyer)
	svc.sessions = newSessionService(svc, svc.admission, deps.Sessions, deps.Staging, deps.Vault, deps.CSRF)
	svc.finalizer = newFinalizeService(svc, svc.admission, deps)
	svc.chunks = newChunkService(svc, deps.Sessions, deps.Staging, deps.Locker, svc.finalizer)
	svc.reclaimer = newReclaimService(svc, svc.admission, svc.finalizer, deps.Sessions, deps.Staging, deps.Locker)

	return svc
}

// Handle runs one protocol request through the upload state machine.
func (s *UploadServiceImpl) Handle(ctx context.Context, req domain.Request) (domain.Response, error) {
	switch r := req.(type) {
	case domain.OptionsRequest:
		return s.capabilities(), nil
	case domain.CreateRequest:
		resp, err := s.sessions.create(ctx, r)
		if err != nil {
			return nil, err
		}
		return resp, nil
	case domain.PatchRequest:
		resp, err := s.chunks.patch(ctx, r)
		if err != nil {
			return nil, err
		}
		return resp, nil
	case domain.HeadRequest:
		resp, err := s.chunks.head(ctx, r)
		if err != nil {
			return nil, err
		}
		return resp, nil
	default:
		return nil, fmt.Errorf("unsupported request %T: %w", req, domain.ErrValidation)
	}
}

// ReclaimExpired delegates the maintenance sweep to the reclaim use-case service.
func (s *UploadServiceImpl) ReclaimExpired(ctx context.Context, now time.Time) (domain.ReclaimStats, error) {
	return s.reclaimer.reclaimExpired(ctx, now)
}

func (s *UploadServiceImpl) capabilities() domain.Capabilities {
	return domain.Capabilities{
		Version:            protocolVersion,
		Extensions:         protocolExtensions,
		MaxSize:            s.cfg.Upload.MaxFileSize,
		ChecksumAlgorithms: checksumAlgorithms,
	}
}

// reclaimWorkers returns sweep parallelism with safe default.
func (s *UploadServiceImpl) reclaimWorkers() int {
	if s.cfg.Reclaim.Workers > 0 {
		return s.cfg.Reclaim.Workers
	}
	return 4
}

// reclaimBatch returns the number of sessions examined per sweep.
func (s *UploadServiceImpl) reclaimBatch() int {
	if s.cfg.Reclaim.BatchSize > 0 {
		return s.cfg.Reclaim.BatchSize
	}
	return 500
}
