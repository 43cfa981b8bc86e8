package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/anthanhphan/gosdk/logger"
)

// Metadata keys understood at session creation.
const (
	metaFilename     = "filename"
	metaComment      = "comment"
	metaDownloadKey  = "download_key"
	metaDeleteKey    = "delete_key"
	metaReplaceKey   = "replace_key"
	metaMaxDownloads = "max_downloads"
	metaExpireDays   = "expire_days"
	metaFolderID     = "folder_id"

	maxFilenameLength = 255
)

// sessionService validates create requests and persists new sessions.
type sessionService struct {
	core      *UploadServiceImpl
	admission *admissionService
	sessions  port.SessionRepository
	staging   port.StagingStore
	vault     port.SecretVault
	csrf      port.CSRFValidator
}

// plainSecrets are the secrets as supplied by the client, before sealing.
type plainSecrets struct {
	download, delete, replace string
}

func newSessionService(core *UploadServiceImpl, admission *admissionService, sessions port.SessionRepository, staging port.StagingStore, vault port.SecretVault, csrf port.CSRFValidator) *sessionService {
	return &sessionService{core: core, admission: admission, sessions: sessions, staging: staging, vault: vault, csrf: csrf}
}

// create opens a new upload session. Every failure after the slot is granted releases it.
func (s *sessionService) create(ctx context.Context, req domain.CreateRequest) (domain.CreatedResponse, error) {
	info := req.Info
	if err := s.checkSize(req.TotalSize); err != nil {
		return domain.CreatedResponse{}, err
	}

	token, err := s.admission.requestSlot(ctx, info)
	if err != nil {
		return domain.CreatedResponse{}, err
	}

	session, err := s.buildSession(ctx, req, token)
	if err != nil {
		s.admission.releaseSlot(ctx, token)
		return domain.CreatedResponse{}, err
	}

	stagingPath, err := s.staging.Create(ctx, session.ID)
	if err != nil {
		s.admission.releaseSlot(ctx, token)
		logger.Errorw("Failed to create staging object", "request_id", info.RequestID, "session_id", session.ID, "error", err.Error())
		return domain.CreatedResponse{}, domain.Internal("create staging object", err)
	}
	session.StagingPath = stagingPath

	if err := s.sessions.Create(ctx, session); err != nil {
		if rmErr := s.staging.Remove(context.WithoutCancel(ctx), stagingPath); rmErr != nil {
			logger.Warnw("Failed to remove orphan staging object", "session_id", session.ID, "error", rmErr.Error())
		}
		s.admission.releaseSlot(ctx, token)
		logger.Errorw("Failed to persist upload session", "request_id", info.RequestID, "session_id", session.ID, "error", err.Error())
		return domain.CreatedResponse{}, domain.Internal("persist session", err)
	}

	s.core.metrics.RecordSessionCreated()
	logger.Infow("Upload session created", "request_id", info.RequestID, "session_id", session.ID, "total_size", session.TotalSize, "expires_at", session.ExpiresAt)

	return domain.CreatedResponse{SessionID: session.ID, ExpiresAt: session.ExpiresAt}, nil
}

func (s *sessionService) checkSize(totalSize int64) error {
	if totalSize <= 0 {
		return domain.NewValidationError("invalid_length", "upload length must be positive, got %d", totalSize)
	}
	if maxSize := s.core.cfg.Upload.MaxFileSize; maxSize > 0 && totalSize > maxSize {
		return &domain.ValidationError{
			Reason:  "size_exceeded",
			Message: fmt.Sprintf("upload length %d exceeds maximum %d", totalSize, maxSize),
			Cause:   domain.ErrSizeExceeded,
		}
	}
	return nil
}

// buildSession runs the CSRF check and metadata validation, then seals the secrets.
func (s *sessionService) buildSession(ctx context.Context, req domain.CreateRequest, token domain.AdmissionToken) (*domain.UploadSession, error) {
	if !s.csrf.Validate(req.Info.ClientIdentity, req.Info.CSRFToken) {
		logger.Warnw("CSRF validation failed", "request_id", req.Info.RequestID, "client_key", token.ClientKey)
		return nil, fmt.Errorf("create session: %w", domain.ErrAuth)
	}

	meta, secrets, err := s.validateMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	sealed, err := s.sealSecrets(secrets)
	if err != nil {
		return nil, err
	}

	now := req.Info.Now
	return &domain.UploadSession{
		ID:        newSessionID(),
		TotalSize: req.TotalSize,
		Offset:    0,
		Metadata:  meta,
		Secrets:   sealed,
		ClientKey: token.ClientKey,
		TokenID:   token.ID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.core.cfg.Upload.SessionTTL()),
	}, nil
}

func (s *sessionService) validateMetadata(raw map[string]string) (domain.Metadata, plainSecrets, error) {
	var meta domain.Metadata
	cfg := s.core.cfg.Upload

	name, err := sanitizeFilename(raw[metaFilename])
	if err != nil {
		return meta, plainSecrets{}, err
	}
	meta.Filename = name
	meta.Comment = strings.TrimSpace(raw[metaComment])

	if v, ok := raw[metaMaxDownloads]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return meta, plainSecrets{}, domain.NewValidationError("invalid_metadata", "max_downloads must be a non-negative integer")
		}
		if n > 0 {
			meta.MaxDownloads = &n
		}
	}
	if v, ok := raw[metaExpireDays]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return meta, plainSecrets{}, domain.NewValidationError("invalid_metadata", "expire_days must be a non-negative integer")
		}
		if n > 0 {
			meta.ExpireDays = &n
		}
	}
	if v, ok := raw[metaFolderID]; ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return meta, plainSecrets{}, domain.NewValidationError("invalid_metadata", "folder_id must be a positive integer")
		}
		meta.FolderID = &id
	}

	secrets := plainSecrets{
		download: raw[metaDownloadKey],
		delete:   raw[metaDeleteKey],
		replace:  raw[metaReplaceKey],
	}
	if cfg.RequireDeleteKey && secrets.delete == "" {
		return meta, plainSecrets{}, domain.NewValidationError("missing_delete_key", "a delete key is required")
	}
	if cfg.RequireReplaceKey && secrets.replace == "" {
		return meta, plainSecrets{}, domain.NewValidationError("missing_replace_key", "a replace key is required")
	}
	for _, f := range [][2]string{{metaDownloadKey, secrets.download}, {metaDeleteKey, secrets.delete}, {metaReplaceKey, secrets.replace}} {
		if f[1] != "" && len(f[1]) < cfg.MinSecretLength {
			return meta, plainSecrets{}, domain.NewValidationError("weak_secret", "%s must be at least %d characters", f[0], cfg.MinSecretLength)
		}
	}

	return meta, secrets, nil
}

func (s *sessionService) sealSecrets(secrets plainSecrets) (domain.SealedSecrets, error) {
	var sealed domain.SealedSecrets
	for _, f := range []struct {
		plain string
		dst   *string
	}{
		{secrets.download, &sealed.Download},
		{secrets.delete, &sealed.Delete},
		{secrets.replace, &sealed.Replace},
	} {
		if f.plain == "" {
			continue
		}
		blob, err := s.vault.Seal([]byte(f.plain))
		if err != nil {
			return domain.SealedSecrets{}, domain.Internal("seal secret", err)
		}
		*f.dst = blob
	}
	return sealed, nil
}

// sanitizeFilename keeps only the last path element of a client-supplied name.
func sanitizeFilename(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	switch {
	case name == "" || name == "." || name == "..":
		return "", domain.NewValidationError("missing_filename", "a filename is required")
	case strings.ContainsRune(name, 0):
		return "", domain.NewValidationError("invalid_filename", "filename contains a NUL byte")
	case len(name) > maxFilenameLength:
		return "", domain.NewValidationError("invalid_filename", "filename longer than %d bytes", maxFilenameLength)
	}
	return name, nil
}
