package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/anthanhphan/go-resumable-upload/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

// reclaimService deletes expired sessions, their staged bytes, their tokens and any
// reservation a failed finalize left behind.
type reclaimService struct {
	core      *UploadServiceImpl
	admission *admissionService
	finalizer *finalizeService
	sessions  port.SessionRepository
	staging   port.StagingStore
	locker    port.SessionLocker
}

func newReclaimService(core *UploadServiceImpl, admission *admissionService, finalizer *finalizeService, sessions port.SessionRepository, staging port.StagingStore, locker port.SessionLocker) *reclaimService {
	return &reclaimService{core: core, admission: admission, finalizer: finalizer, sessions: sessions, staging: staging, locker: locker}
}

// reclaimExpired sweeps up to one batch of sessions that expired before now.
// Sessions locked by an in-flight request are skipped and picked up next sweep.
func (s *reclaimService) reclaimExpired(ctx context.Context, now time.Time) (domain.ReclaimStats, error) {
	var stats domain.ReclaimStats

	expired, err := s.sessions.ListExpired(ctx, now, s.core.reclaimBatch())
	if err != nil {
		return stats, domain.Internal("list expired sessions", err)
	}
	if len(expired) == 0 {
		return stats, nil
	}

	workers := s.core.reclaimWorkers()
	pool := resilience.NewWorkerPool(workers, workers*2, resilience.WithPanicHandler(func(r any) {
		logger.Errorw("Reclaim worker panicked", "panic", r)
	}))
	var mu sync.Mutex

	var submitErr error
	for _, session := range expired {
		err := pool.Submit(ctx, func() {
			bytes, ok := s.reclaimOne(ctx, session)

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				stats.Skipped++
				return
			}
			stats.ReclaimedSessions++
			stats.ReclaimedBytes += bytes
		})
		if err != nil {
			submitErr = err
			break
		}
	}
	pool.Drain()

	s.core.metrics.RecordReclaim(stats.ReclaimedSessions, stats.ReclaimedBytes)
	logger.Infow("Reclaim sweep finished", "examined", len(expired), "reclaimed_sessions", stats.ReclaimedSessions, "reclaimed_bytes", stats.ReclaimedBytes, "skipped", stats.Skipped)

	return stats, submitErr
}

// reclaimOne reports the bytes freed and whether the session was removed.
func (s *reclaimService) reclaimOne(ctx context.Context, session *domain.UploadSession) (int64, bool) {
	unlock, err := s.locker.Lock(ctx, session.ID)
	if err != nil {
		logger.Debugw("Skipping locked session", "session_id", session.ID, "error", err.Error())
		return 0, false
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warnw("Failed to release session lock", "session_id", session.ID, "error", err.Error())
		}
	}()

	size, err := s.staging.Size(ctx, session.StagingPath)
	if err != nil {
		if !errors.Is(err, port.ErrStagingMissing) {
			logger.Warnw("Failed to stat expired staging object", "session_id", session.ID, "error", err.Error())
		}
		size = 0
	}

	if !s.finalizer.discard(ctx, session.ID) {
		return 0, false
	}
	if err := s.staging.Remove(ctx, session.StagingPath); err != nil {
		logger.Errorw("Failed to remove expired staging object", "session_id", session.ID, "error", err.Error())
		return 0, false
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		logger.Errorw("Failed to delete expired session", "session_id", session.ID, "error", err.Error())
		return 0, false
	}

	// Completed sessions released their token at finalize; release is idempotent.
	s.admission.releaseSlot(ctx, session.Token())

	logger.Debugw("Expired session reclaimed", "session_id", session.ID, "completed", session.Completed, "bytes", size)
	return size, true
}
