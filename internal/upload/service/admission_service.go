package service

import (
	"context"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/google/uuid"
)

// hourlyRetention is how long hour buckets are kept before lazy pruning.
const hourlyRetention = 2 * time.Hour

// admissionService enforces the hourly quota and concurrency slots per client.
type admissionService struct {
	core  *UploadServiceImpl
	store port.AdmissionStore
	keyer port.ClientKeyer
}

func newAdmissionService(core *UploadServiceImpl, store port.AdmissionStore, keyer port.ClientKeyer) *admissionService {
	return &admissionService{core: core, store: store, keyer: keyer}
}

// requestSlot issues a token or returns a *domain.QuotaError without consuming anything.
func (s *admissionService) requestSlot(ctx context.Context, info domain.RequestInfo) (domain.AdmissionToken, error) {
	cfg := s.core.cfg.Upload
	key := s.keyer.Key(info.ClientIdentity)
	token := domain.AdmissionToken{
		ID:        uuid.NewString(),
		ClientKey: key,
		IssuedAt:  info.Now,
	}

	verdict, err := s.store.TryAcquire(ctx, domain.SlotRequest{
		ClientKey:        key,
		TokenID:          token.ID,
		Now:              info.Now,
		HourBucket:       hourBucket(info.Now),
		HourlyLimit:      cfg.HourlyLimit,
		ConcurrencyLimit: cfg.ConcurrencyLimit,
		TokenTTL:         cfg.TokenTTL(),
		Retention:        hourlyRetention,
	})
	if err != nil {
		return domain.AdmissionToken{}, domain.Internal("acquire admission slot", err)
	}

	if !verdict.Granted {
		qe := &domain.QuotaError{Reason: verdict.Reason, RetryAfter: s.retryAfter(verdict.Reason, info.Now)}
		s.core.metrics.RecordAdmissionDenied(string(verdict.Reason))
		logger.Infow("Admission denied", "request_id", info.RequestID, "client_key", key, "reason", verdict.Reason, "retry_after_seconds", qe.RetryAfterSeconds())
		return domain.AdmissionToken{}, qe
	}

	inUse, err := s.store.Outstanding(ctx, key, info.Now, cfg.TokenTTL())
	if err != nil {
		logger.Warnw("Failed to count outstanding admission tokens", "client_key", key, "error", err.Error())
	} else {
		s.core.metrics.RecordSlotsInUse(inUse)
	}

	logger.Debugw("Admission slot granted", "request_id", info.RequestID, "client_key", key, "token_id", token.ID, "slots_in_use", inUse)
	return token, nil
}

// releaseSlot frees a token. Release must survive request cancellation, so the
// caller's deadline is dropped; failures are logged and left to the token TTL.
func (s *admissionService) releaseSlot(ctx context.Context, token domain.AdmissionToken) {
	if token.ID == "" {
		return
	}
	if err := s.store.Release(context.WithoutCancel(ctx), token.ClientKey, token.ID); err != nil {
		logger.Errorw("Failed to release admission token", "client_key", token.ClientKey, "token_id", token.ID, "error", err.Error())
		return
	}
	logger.Debugw("Admission slot released", "client_key", token.ClientKey, "token_id", token.ID)
}

func (s *admissionService) retryAfter(reason domain.DenyReason, now time.Time) time.Duration {
	if reason == domain.DenyConcurrentLimit {
		return s.core.cfg.Upload.ConcurrencyRetryAfter()
	}
	return untilNextHour(now)
}

func hourBucket(now time.Time) int64 {
	return now.Unix() / 3600
}

func untilNextHour(now time.Time) time.Duration {
	return time.Duration(3600-now.Unix()%3600) * time.Second
}
