package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/anthanhphan/gosdk/logger"
)

// chunkService drives the PATCH/HEAD state machine of a session.
type chunkService struct {
	core      *UploadServiceImpl
	sessions  port.SessionRepository
	staging   port.StagingStore
	locker    port.SessionLocker
	finalizer *finalizeService
}

func newChunkService(core *UploadServiceImpl, sessions port.SessionRepository, staging port.StagingStore, locker port.SessionLocker, finalizer *finalizeService) *chunkService {
	return &chunkService{core: core, sessions: sessions, staging: staging, locker: locker, finalizer: finalizer}
}

// patch appends one chunk. Nothing is written unless the claimed offset matches
// the reconciled offset and the chunk fits inside the declared length.
func (s *chunkService) patch(ctx context.Context, req domain.PatchRequest) (domain.PatchResponse, error) {
	info := req.Info

	unlock, err := s.locker.Lock(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrLocked) {
			return domain.PatchResponse{}, err
		}
		return domain.PatchResponse{}, domain.Internal("lock session", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warnw("Failed to release session lock", "session_id", req.SessionID, "error", err.Error())
		}
	}()

	session, err := s.load(ctx, req.SessionID, info.Now)
	if err != nil {
		return domain.PatchResponse{}, err
	}

	if session.Completed {
		if req.Offset == session.TotalSize && len(req.Body) == 0 {
			return domain.PatchResponse{Offset: session.TotalSize, FileID: session.FileID}, nil
		}
		s.core.metrics.RecordConflict()
		return domain.PatchResponse{}, &domain.ConflictError{Expected: session.TotalSize, Received: req.Offset, ActualSize: session.TotalSize}
	}

	stranded, err := s.strandedReservation(ctx, session)
	if err != nil {
		return domain.PatchResponse{}, err
	}
	if stranded != nil {
		return s.resumeFinalize(ctx, session, stranded, req)
	}

	actual, err := s.reconcile(ctx, session, info.Now)
	if err != nil {
		return domain.PatchResponse{}, err
	}

	if req.Offset != session.Offset {
		s.core.metrics.RecordConflict()
		logger.Infow("Offset conflict", "request_id", info.RequestID, "session_id", session.ID, "expected", session.Offset, "received", req.Offset)
		return domain.PatchResponse{}, &domain.ConflictError{Expected: session.Offset, Received: req.Offset, ActualSize: actual}
	}

	if req.Offset+int64(len(req.Body)) > session.TotalSize {
		return domain.PatchResponse{}, sizeExceeded(len(req.Body), req.Offset, session.TotalSize)
	}
	if err := verifyChecksum(req.Body, req.Checksum); err != nil {
		return domain.PatchResponse{}, err
	}

	newOffset := session.Offset
	if len(req.Body) > 0 {
		newOffset, err = s.append(ctx, session, req.Body, info.Now)
		if err != nil {
			return domain.PatchResponse{}, err
		}
	}

	if newOffset < session.TotalSize {
		return domain.PatchResponse{Offset: newOffset}, nil
	}

	record, err := s.finalizer.finalize(ctx, session, info.Now)
	if err != nil {
		return domain.PatchResponse{}, err
	}
	return domain.PatchResponse{Offset: newOffset, FileID: &record.ID}, nil
}

// head reports the ground-truth offset without mutating anything.
func (s *chunkService) head(ctx context.Context, req domain.HeadRequest) (domain.HeadResponse, error) {
	session, err := s.load(ctx, req.SessionID, req.Info.Now)
	if err != nil {
		return domain.HeadResponse{}, err
	}
	if session.Completed {
		return domain.HeadResponse{Offset: session.TotalSize, TotalSize: session.TotalSize}, nil
	}

	actual, err := s.staging.Size(ctx, session.StagingPath)
	switch {
	case errors.Is(err, port.ErrStagingMissing):
		actual = 0
		if session.Offset == session.TotalSize {
			stranded, err := s.finalizer.stranded(ctx, session)
			if err != nil {
				return domain.HeadResponse{}, err
			}
			if stranded != nil {
				actual = session.TotalSize
			}
		}
	case err != nil:
		return domain.HeadResponse{}, domain.Internal("stat staging object", err)
	}
	return domain.HeadResponse{Offset: actual, TotalSize: session.TotalSize}, nil
}

// strandedReservation finds the bytes of a finalize whose commit and rollback both
// failed. They can only exist once every byte was acknowledged and staging is gone.
func (s *chunkService) strandedReservation(ctx context.Context, session *domain.UploadSession) (*domain.FileRecord, error) {
	if session.Offset != session.TotalSize {
		return nil, nil
	}
	_, err := s.staging.Size(ctx, session.StagingPath)
	if !errors.Is(err, port.ErrStagingMissing) {
		return nil, nil
	}
	return s.finalizer.stranded(ctx, session)
}

// resumeFinalize accepts only the empty completing PATCH while the bytes sit in a reservation.
func (s *chunkService) resumeFinalize(ctx context.Context, session *domain.UploadSession, record *domain.FileRecord, req domain.PatchRequest) (domain.PatchResponse, error) {
	if req.Offset != session.TotalSize {
		s.core.metrics.RecordConflict()
		return domain.PatchResponse{}, &domain.ConflictError{Expected: session.TotalSize, Received: req.Offset, ActualSize: session.TotalSize}
	}
	if len(req.Body) > 0 {
		return domain.PatchResponse{}, sizeExceeded(len(req.Body), req.Offset, session.TotalSize)
	}

	committed, err := s.finalizer.resume(ctx, session, record)
	if err != nil {
		return domain.PatchResponse{}, err
	}
	return domain.PatchResponse{Offset: session.TotalSize, FileID: &committed.ID}, nil
}

func sizeExceeded(n int, offset, total int64) error {
	return &domain.ValidationError{
		Reason:  "size_exceeded",
		Message: fmt.Sprintf("chunk of %d bytes at offset %d exceeds upload length %d", n, offset, total),
		Cause:   domain.ErrSizeExceeded,
	}
}

// load fetches a session and rejects expired ones.
func (s *chunkService) load(ctx context.Context, sessionID string, now time.Time) (*domain.UploadSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.Internal("load session", err)
	}
	if session.Expired(now) {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrGone)
	}
	return session, nil
}

// reconcile makes the persisted offset agree with the staged bytes and returns the byte count.
func (s *chunkService) reconcile(ctx context.Context, session *domain.UploadSession, now time.Time) (int64, error) {
	actual, err := s.staging.Size(ctx, session.StagingPath)
	switch {
	case errors.Is(err, port.ErrStagingMissing):
		logger.Warnw("Staging object missing, recreating", "session_id", session.ID, "persisted_offset", session.Offset)
		path, err := s.staging.Create(ctx, session.ID)
		if err != nil {
			return 0, domain.Internal("recreate staging object", err)
		}
		session.StagingPath = path
		actual = 0
	case err != nil:
		return 0, domain.Internal("stat staging object", err)
	}

	if actual > session.TotalSize {
		return 0, domain.Internal("reconcile offset", fmt.Errorf("staged %d bytes exceed upload length %d", actual, session.TotalSize))
	}

	if actual != session.Offset {
		logger.Warnw("Repairing offset drift", "session_id", session.ID, "persisted_offset", session.Offset, "actual_offset", actual)
		if err := s.sessions.UpdateOffset(ctx, session.ID, actual, now); err != nil {
			return 0, domain.Internal("repair offset", err)
		}
		session.Offset = actual
	}
	return actual, nil
}

// append writes body and persists the new offset. A short write leaves the
// persisted offset untouched; the next request reconciles it from disk.
func (s *chunkService) append(ctx context.Context, session *domain.UploadSession, body []byte, now time.Time) (int64, error) {
	n, err := s.staging.Append(ctx, session.StagingPath, body)
	if err != nil {
		logger.Errorw("Failed to append chunk", "session_id", session.ID, "offset", session.Offset, "error", err.Error())
		return 0, domain.Internal("append chunk", err)
	}
	if n != len(body) {
		logger.Errorw("Short write on staging object", "session_id", session.ID, "want", len(body), "wrote", n)
		return 0, domain.Internal("append chunk", fmt.Errorf("short write: %d of %d bytes", n, len(body)))
	}

	newOffset := session.Offset + int64(n)
	if err := s.sessions.UpdateOffset(ctx, session.ID, newOffset, now); err != nil {
		return 0, domain.Internal("persist offset", err)
	}
	session.Offset = newOffset
	session.UpdatedAt = now

	s.core.metrics.RecordBytesReceived(n)
	logger.Debugw("Chunk appended", "session_id", session.ID, "bytes", n, "offset", newOffset, "total_size", session.TotalSize)
	return newOffset, nil
}
