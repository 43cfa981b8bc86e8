package service

import (
	"context"
	"fmt"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/anthanhphan/gosdk/logger"
)

// finalizeService promotes a complete session into a permanent file record.
// It follows reserve -> move -> commit -> confirm; each failure undoes the steps before it.
type finalizeService struct {
	core       *UploadServiceImpl
	admission  *admissionService
	sessions   port.SessionRepository
	files      port.FileRepository
	staging    port.StagingStore
	permanent  port.PermanentStore
	vault      port.SecretVault
	hasher     port.SecretHasher
	extensions port.ExtensionPolicy
	idGen      port.IDGenerator
}

func newFinalizeService(core *UploadServiceImpl, admission *admissionService, deps Dependencies) *finalizeService {
	return &finalizeService{
		core:       core,
		admission:  admission,
		sessions:   deps.Sessions,
		files:      deps.Files,
		staging:    deps.Staging,
		permanent:  deps.Permanent,
		vault:      deps.Vault,
		hasher:     deps.Hasher,
		extensions: deps.Extensions,
		idGen:      deps.IDs,
	}
}

// finalize releases the session's admission token on every branch.
func (s *finalizeService) finalize(ctx context.Context, session *domain.UploadSession, now time.Time) (*domain.FileRecord, error) {
	defer s.admission.releaseSlot(ctx, session.Token())

	if !s.extensions.Allowed(session.Metadata.Filename) {
		s.reject(ctx, session)
		s.core.metrics.RecordFinalize("rejected")
		logger.Warnw("Upload rejected by extension policy", "session_id", session.ID, "filename", session.Metadata.Filename)
		return nil, fmt.Errorf("finalize %q: %w", session.Metadata.Filename, domain.ErrInvalidExtension)
	}

	record, err := s.buildRecord(session, now)
	if err != nil {
		s.core.metrics.RecordFinalize("failed")
		logger.Errorw("Failed to prepare file record", "session_id", session.ID, "error", err.Error())
		return nil, err
	}

	if err := s.files.Reserve(ctx, record); err != nil {
		s.core.metrics.RecordFinalize("failed")
		logger.Errorw("Failed to reserve file record", "session_id", session.ID, "file_id", record.ID, "error", err.Error())
		return nil, domain.Internal("reserve file record", err)
	}

	if err := s.permanent.Promote(ctx, session.StagingPath, record.Location); err != nil {
		s.dropReservation(ctx, record.ID)
		s.core.metrics.RecordFinalize("failed")
		logger.Errorw("Failed to promote staged bytes", "session_id", session.ID, "file_id", record.ID, "error", err.Error())
		return nil, domain.Internal("promote upload", err)
	}

	return s.commit(ctx, session, record)
}

// resume retries the commit of a reservation whose bytes already sit at the
// permanent location because an earlier commit and its rollback both failed.
func (s *finalizeService) resume(ctx context.Context, session *domain.UploadSession, record *domain.FileRecord) (*domain.FileRecord, error) {
	defer s.admission.releaseSlot(ctx, session.Token())

	logger.Infow("Resuming stranded finalize", "session_id", session.ID, "file_id", record.ID, "location", record.Location)
	return s.commit(ctx, session, record)
}

func (s *finalizeService) commit(ctx context.Context, session *domain.UploadSession, record *domain.FileRecord) (*domain.FileRecord, error) {
	if err := s.files.Commit(ctx, record.ID, session.ID); err != nil {
		s.compensate(ctx, session, record)
		s.core.metrics.RecordFinalize("failed")
		logger.Errorw("Failed to commit file record", "session_id", session.ID, "file_id", record.ID, "error", err.Error())
		return nil, domain.Internal("commit file record", err)
	}

	record.Status = domain.FileStatusActive
	session.Completed = true
	session.FileID = &record.ID

	s.core.metrics.RecordFinalize("success")
	logger.Infow("Upload finalized", "session_id", session.ID, "file_id", record.ID, "size_bytes", record.Size)
	return record, nil
}

// stranded returns the newest reservation left by a failed commit whose rollback also failed.
// Such a reservation only exists while the staging object is gone.
func (s *finalizeService) stranded(ctx context.Context, session *domain.UploadSession) (*domain.FileRecord, error) {
	records, err := s.files.PendingForSession(ctx, session.ID)
	if err != nil {
		return nil, domain.Internal("find pending file record", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// discard drops every reservation a session holds together with its bytes.
// It reports false if anything was left behind.
func (s *finalizeService) discard(ctx context.Context, sessionID string) bool {
	records, err := s.files.PendingForSession(ctx, sessionID)
	if err != nil {
		logger.Errorw("Failed to list pending file records", "session_id", sessionID, "error", err.Error())
		return false
	}

	ok := true
	for _, record := range records {
		if err := s.permanent.Remove(ctx, record.Location); err != nil {
			logger.Errorw("Failed to remove stranded object", "session_id", sessionID, "file_id", record.ID, "location", record.Location, "error", err.Error())
			ok = false
			continue
		}
		if err := s.files.Delete(ctx, record.ID); err != nil {
			logger.Errorw("Failed to delete pending file record", "session_id", sessionID, "file_id", record.ID, "error", err.Error())
			ok = false
			continue
		}
		logger.Infow("Stranded reservation discarded", "session_id", sessionID, "file_id", record.ID)
	}
	return ok
}

// buildRecord opens the session secrets and prepares a pending record.
func (s *finalizeService) buildRecord(session *domain.UploadSession, now time.Time) (*domain.FileRecord, error) {
	downloadHash, err := s.hashSecret("download", session.Secrets.Download)
	if err != nil {
		return nil, err
	}
	deleteHash, err := s.hashSecret("delete", session.Secrets.Delete)
	if err != nil {
		return nil, err
	}
	replaceSealed, err := s.resealSecret("replace", session.Secrets.Replace)
	if err != nil {
		return nil, err
	}

	id, err := s.idGen.Next()
	if err != nil {
		return nil, domain.Internal("generate file id", err)
	}
	storageName, err := buildStorageName(id, session.Metadata.Filename)
	if err != nil {
		return nil, domain.Internal("build storage name", err)
	}

	record := &domain.FileRecord{
		ID:               id,
		SessionID:        session.ID,
		Filename:         session.Metadata.Filename,
		Comment:          session.Metadata.Comment,
		Size:             session.TotalSize,
		StorageName:      storageName,
		Location:         s.permanent.Location(storageName),
		DownloadKeyHash:  downloadHash,
		DeleteKeyHash:    deleteHash,
		ReplaceKeySealed: replaceSealed,
		FolderID:         session.Metadata.FolderID,
		MaxDownloads:     session.Metadata.MaxDownloads,
		Status:           domain.FileStatusPending,
		CreatedAt:        now,
	}
	if days := session.Metadata.ExpireDays; days != nil && *days > 0 {
		expires := now.Add(time.Duration(*days) * 24 * time.Hour)
		record.ExpiresAt = &expires
	}
	return record, nil
}

func (s *finalizeService) openSecret(kind, sealed string) ([]byte, error) {
	plain, err := s.vault.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("open %s secret: %w: %w: %w", kind, domain.ErrInternal, domain.ErrIntegrity, err)
	}
	return plain, nil
}

func (s *finalizeService) hashSecret(kind, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	plain, err := s.openSecret(kind, sealed)
	if err != nil {
		return "", err
	}
	hashed, err := s.hasher.Hash(plain)
	if err != nil {
		return "", domain.Internal("hash "+kind+" secret", err)
	}
	return hashed, nil
}

// resealSecret re-encrypts with the current scheme so legacy blobs never reach the files table.
func (s *finalizeService) resealSecret(kind, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	plain, err := s.openSecret(kind, sealed)
	if err != nil {
		return "", err
	}
	resealed, err := s.vault.Seal(plain)
	if err != nil {
		return "", domain.Internal("seal "+kind+" secret", err)
	}
	return resealed, nil
}

// reject removes every trace of a session whose file may not be stored.
func (s *finalizeService) reject(ctx context.Context, session *domain.UploadSession) {
	ctx = context.WithoutCancel(ctx)
	if err := s.staging.Remove(ctx, session.StagingPath); err != nil {
		logger.Errorw("Failed to remove rejected staging object", "session_id", session.ID, "error", err.Error())
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		logger.Errorw("Failed to delete rejected session", "session_id", session.ID, "error", err.Error())
	}
}

func (s *finalizeService) dropReservation(ctx context.Context, fileID int64) {
	if err := s.files.Delete(context.WithoutCancel(ctx), fileID); err != nil {
		logger.Errorw("Failed to delete pending file record", "file_id", fileID, "error", err.Error())
	}
}

// compensate moves bytes back to staging so the client can retry the final PATCH.
// If that fails the pending reservation stays behind and the retry resumes from it.
func (s *finalizeService) compensate(ctx context.Context, session *domain.UploadSession, record *domain.FileRecord) {
	ctx = context.WithoutCancel(ctx)
	if err := s.permanent.Demote(ctx, record.Location, session.StagingPath); err != nil {
		logger.Errorw("Finalize compensation failed, pending reservation left in place",
			"session_id", session.ID, "file_id", record.ID, "location", record.Location, "error", err.Error())
		return
	}
	s.dropReservation(ctx, record.ID)
}
