package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/config"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/metrics"
	"github.com/anthanhphan/go-resumable-upload/pkg/vault"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSRF = "csrf-ok"

var testNow = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

type harness struct {
	cfg       *config.Config
	svc       *UploadServiceImpl
	sessions  *memSessions
	files     *memFiles
	blobs     *memBlobs
	admission *memAdmission
	locker    *memLocker
	vault     *vault.Vault
}

func newHarness(t *testing.T, tweak func(cfg *config.Config)) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Upload.HourlyLimit = 0
	cfg.Upload.ConcurrencyLimit = 0
	cfg.Upload.MaxFileSize = 64 * 1024 * 1024
	if tweak != nil {
		tweak(cfg)
	}

	v, err := vault.New([]byte("test-master-key-0123456789abcdef"), nil)
	require.NoError(t, err)

	h := &harness{
		cfg:       cfg,
		sessions:  newMemSessions(),
		blobs:     newMemBlobs(),
		admission: newMemAdmission(),
		locker:    newMemLocker(),
		vault:     v,
	}
	h.files = newMemFiles(h.sessions)

	h.svc = NewUploadService(cfg, Dependencies{
		Sessions:   h.sessions,
		Files:      h.files,
		Staging:    h.blobs,
		Permanent:  h.blobs,
		Admission:  h.admission,
		Locker:     h.locker,
		Vault:      v,
		Hasher:     vault.NewHasher(vault.HashParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}),
		CSRF:       allowCSRF{token: testCSRF},
		Extensions: denyExtensions{"php": true},
		Keyer:      staticKeyer{},
		IDs:        &seqIDs{next: 1000},
		Metrics:    metrics.New(prometheus.NewRegistry()),
	})
	return h
}

func info(now time.Time) domain.RequestInfo {
	return domain.RequestInfo{RequestID: "req-1", ClientIdentity: "203.0.113.7", CSRFToken: testCSRF, Now: now}
}

func defaultMeta() map[string]string {
	return map[string]string{
		"filename":     "report.pdf",
		"comment":      "quarterly",
		"download_key": "download-secret",
		"delete_key":   "delete-secret",
		"replace_key":  "replace-secret",
	}
}

func (h *harness) create(t *testing.T, size int64) string {
	t.Helper()
	resp, err := h.svc.Handle(context.Background(), domain.CreateRequest{Info: info(testNow), TotalSize: size, Metadata: defaultMeta()})
	require.NoError(t, err)
	return resp.(domain.CreatedResponse).SessionID
}

func (h *harness) patch(sessionID string, offset int64, body []byte, now time.Time) (domain.PatchResponse, error) {
	resp, err := h.svc.Handle(context.Background(), domain.PatchRequest{Info: info(now), SessionID: sessionID, Offset: offset, Body: body})
	if err != nil {
		return domain.PatchResponse{}, err
	}
	return resp.(domain.PatchResponse), nil
}

func (h *harness) head(t *testing.T, sessionID string) domain.HeadResponse {
	t.Helper()
	resp, err := h.svc.Handle(context.Background(), domain.HeadRequest{Info: info(testNow), SessionID: sessionID})
	require.NoError(t, err)
	return resp.(domain.HeadResponse)
}

func (h *harness) outstanding() int {
	n, _ := h.admission.Outstanding(context.Background(), staticKeyer{}.Key("203.0.113.7"), testNow, time.Hour)
	return n
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestUploadService_EndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	const chunk = 5 * 1024 * 1024
	payload := randomBytes(t, 2*chunk)

	id := h.create(t, int64(len(payload)))
	assert.Equal(t, 1, h.outstanding())
	assert.Equal(t, domain.HeadResponse{Offset: 0, TotalSize: 2 * chunk}, h.head(t, id))

	resp, err := h.patch(id, 0, payload[:chunk], testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(chunk), resp.Offset)
	assert.Nil(t, resp.FileID)

	// HEAD twice with no PATCH in between answers the same.
	assert.Equal(t, h.head(t, id), h.head(t, id))
	assert.Equal(t, int64(chunk), h.head(t, id).Offset)

	resp, err = h.patch(id, chunk, payload[chunk:], testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2*chunk), resp.Offset)
	require.NotNil(t, resp.FileID)

	record := h.files.records[*resp.FileID]
	assert.Equal(t, domain.FileStatusActive, record.Status)
	assert.Equal(t, "report.pdf", record.Filename)
	assert.Equal(t, int64(2*chunk), record.Size)
	assert.Len(t, record.StorageName, 64)

	stored, ok := h.blobs.bytes(record.Location)
	require.True(t, ok)
	assert.Equal(t, sha256.Sum256(payload), sha256.Sum256(stored))

	ok, err = vault.Verify(record.DownloadKeyHash, []byte("download-secret"))
	require.NoError(t, err)
	assert.True(t, ok)
	replace, err := h.vault.Open(record.ReplaceKeySealed)
	require.NoError(t, err)
	assert.Equal(t, "replace-secret", string(replace))

	session, _ := h.sessions.get(id)
	assert.True(t, session.Completed)
	assert.Equal(t, 0, h.outstanding())

	assert.Equal(t, domain.HeadResponse{Offset: 2 * chunk, TotalSize: 2 * chunk}, h.head(t, id))

	retry, err := h.patch(id, 2*chunk, nil, testNow.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, resp.FileID, retry.FileID)

	_, err = h.patch(id, 0, []byte("late"), testNow.Add(2*time.Minute))
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(2*chunk), conflict.Expected)
}

func TestUploadService_HourlyQuota(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Upload.HourlyLimit = 2 })
	req := domain.CreateRequest{Info: info(testNow), TotalSize: 10, Metadata: defaultMeta()}

	for i := 0; i < 2; i++ {
		_, err := h.svc.Handle(context.Background(), req)
		require.NoError(t, err)
	}

	_, err := h.svc.Handle(context.Background(), req)
	var qe *domain.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, domain.DenyHourlyLimit, qe.Reason)
	assert.Equal(t, 30*time.Minute, qe.RetryAfter)
	assert.Equal(t, 2, h.outstanding())

	// Next hour bucket starts fresh.
	req.Info.Now = testNow.Add(time.Hour)
	_, err = h.svc.Handle(context.Background(), req)
	assert.NoError(t, err)
}

func TestUploadService_ConcurrencyLimit(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Upload.ConcurrencyLimit = 1 })

	id := h.create(t, 4)
	_, err := h.svc.Handle(context.Background(), domain.CreateRequest{Info: info(testNow), TotalSize: 4, Metadata: defaultMeta()})
	var qe *domain.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, domain.DenyConcurrentLimit, qe.Reason)
	assert.Equal(t, 60*time.Second, qe.RetryAfter)

	_, err = h.patch(id, 0, []byte("done"), testNow)
	require.NoError(t, err)

	_, err = h.svc.Handle(context.Background(), domain.CreateRequest{Info: info(testNow), TotalSize: 4, Metadata: defaultMeta()})
	assert.NoError(t, err)
}

func TestUploadService_CreateReleasesTokenOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *harness, req *domain.CreateRequest)
		wantErr error
		reason  string
	}{
		{
			name:    "BadCSRF",
			mutate:  func(_ *harness, req *domain.CreateRequest) { req.Info.CSRFToken = "forged" },
			wantErr: domain.ErrAuth,
		},
		{
			name:    "MissingFilename",
			mutate:  func(_ *harness, req *domain.CreateRequest) { delete(req.Metadata, "filename") },
			wantErr: domain.ErrValidation,
			reason:  "missing_filename",
		},
		{
			name:    "WeakSecret",
			mutate:  func(_ *harness, req *domain.CreateRequest) { req.Metadata["delete_key"] = "short" },
			wantErr: domain.ErrValidation,
			reason:  "weak_secret",
		},
		{
			name:    "MissingDeleteKey",
			mutate:  func(_ *harness, req *domain.CreateRequest) { delete(req.Metadata, "delete_key") },
			wantErr: domain.ErrValidation,
			reason:  "missing_delete_key",
		},
		{
			name:    "BadFolderID",
			mutate:  func(_ *harness, req *domain.CreateRequest) { req.Metadata["folder_id"] = "-3" },
			wantErr: domain.ErrValidation,
			reason:  "invalid_metadata",
		},
		{
			name:    "PersistenceFailure",
			mutate:  func(h *harness, _ *domain.CreateRequest) { h.sessions.createErr = errors.New("db down") },
			wantErr: domain.ErrInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(cfg *config.Config) { cfg.Upload.ConcurrencyLimit = 3 })
			req := domain.CreateRequest{Info: info(testNow), TotalSize: 100, Metadata: defaultMeta()}
			tt.mutate(h, &req)

			_, err := h.svc.Handle(context.Background(), req)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.reason != "" {
				var ve *domain.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.reason, ve.Reason)
			}
			assert.Equal(t, 0, h.outstanding())
			assert.Empty(t, h.blobs.objects)
		})
	}
}

func TestUploadService_CreateRejectsSize(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Upload.MaxFileSize = 100 })

	_, err := h.svc.Handle(context.Background(), domain.CreateRequest{Info: info(testNow), TotalSize: 101, Metadata: defaultMeta()})
	assert.ErrorIs(t, err, domain.ErrSizeExceeded)

	_, err = h.svc.Handle(context.Background(), domain.CreateRequest{Info: info(testNow), TotalSize: 0, Metadata: defaultMeta()})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NotErrorIs(t, err, domain.ErrSizeExceeded)
}

func TestUploadService_ConflictDoesNotMutate(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t, 20)

	_, err := h.patch(id, 0, []byte("0123456789"), testNow)
	require.NoError(t, err)
	before, _ := h.blobs.bytes("staging/" + id)
	before = bytes.Clone(before)

	_, err = h.patch(id, 0, []byte("XXXXXXXXXX"), testNow)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.ConflictError{Expected: 10, Received: 0, ActualSize: 10}, *conflict)

	after, _ := h.blobs.bytes("staging/" + id)
	assert.Equal(t, before, after)
	session, _ := h.sessions.get(id)
	assert.Equal(t, int64(10), session.Offset)
}

func TestUploadService_ReconcilesDrift(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t, 20)

	_, err := h.patch(id, 0, []byte("0123456789"), testNow)
	require.NoError(t, err)

	// Lose the tail of the staged bytes behind the service's back.
	h.blobs.objects["staging/"+id] = []byte("01234")
	assert.Equal(t, int64(5), h.head(t, id).Offset)

	_, err = h.patch(id, 10, []byte("abcde"), testNow)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(5), conflict.Expected)
	session, _ := h.sessions.get(id)
	assert.Equal(t, int64(5), session.Offset)

	resp, err := h.patch(id, 5, []byte("56789"), testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(10), resp.Offset)
}

func TestUploadService_RecreatesMissingStaging(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t, 8)

	_, err := h.patch(id, 0, []byte("abcd"), testNow)
	require.NoError(t, err)
	delete(h.blobs.objects, "staging/"+id)

	_, err = h.patch(id, 4, []byte("efgh"), testNow)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(0), conflict.ActualSize)

	resp, err := h.patch(id, 0, []byte("abcd"), testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(4), resp.Offset)
}

func TestUploadService_PatchValidation(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t, 8)
	body := []byte("abcd")
	goodSum := sha256.Sum256(body)

	_, err := h.patch(id, 0, []byte("too-long-body"), testNow)
	assert.ErrorIs(t, err, domain.ErrSizeExceeded)

	_, err = h.svc.Handle(context.Background(), domain.PatchRequest{
		Info: info(testNow), SessionID: id, Offset: 0, Body: body,
		Checksum: &domain.Checksum{Algorithm: "sha256", Sum: []byte("nope")},
	})
	assert.ErrorIs(t, err, domain.ErrChecksumMismatch)

	_, err = h.svc.Handle(context.Background(), domain.PatchRequest{
		Info: info(testNow), SessionID: id, Offset: 0, Body: body,
		Checksum: &domain.Checksum{Algorithm: "whirlpool", Sum: goodSum[:]},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NotErrorIs(t, err, domain.ErrChecksumMismatch)

	assert.Equal(t, int64(0), h.head(t, id).Offset)

	resp, err := h.svc.Handle(context.Background(), domain.PatchRequest{
		Info: info(testNow), SessionID: id, Offset: 0, Body: body,
		Checksum: &domain.Checksum{Algorithm: "sha256", Sum: goodSum[:]},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), resp.(domain.PatchResponse).Offset)
}

func TestUploadService_MissingAndExpired(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t, 8)
	later := testNow.Add(h.cfg.Upload.SessionTTL() + time.Second)

	_, err := h.patch("no-such-session", 0, nil, testNow)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.patch(id, 0, []byte("abcd"), later)
	assert.ErrorIs(t, err, domain.ErrGone)

	_, err = h.svc.Handle(context.Background(), domain.HeadRequest{Info: info(later), SessionID: id})
	assert.ErrorIs(t, err, domain.ErrGone)
}

func TestUploadService_Locked(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t, 8)

	unlock, err := h.locker.Lock(context.Background(), id)
	require.NoError(t, err)

	_, err = h.patch(id, 0, []byte("abcd"), testNow)
	assert.ErrorIs(t, err, domain.ErrLocked)

	require.NoError(t, unlock(context.Background()))
	_, err = h.patch(id, 0, []byte("abcd"), testNow)
	assert.NoError(t, err)
}

func TestUploadService_ShortWrite(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t, 8)
	h.blobs.shortBy = 1

	_, err := h.patch(id, 0, []byte("abcd"), testNow)
	assert.ErrorIs(t, err, domain.ErrInternal)
	session, _ := h.sessions.get(id)
	assert.Equal(t, int64(0), session.Offset)

	// The partial bytes are picked up by the next reconcile.
	h.blobs.shortBy = 0
	assert.Equal(t, int64(3), h.head(t, id).Offset)
}

func TestUploadService_RejectsExtensionAtFinalize(t *testing.T) {
	h := newHarness(t, nil)
	meta := defaultMeta()
	meta["filename"] = "shell.php"
	resp, err := h.svc.Handle(context.Background(), domain.CreateRequest{Info: info(testNow), TotalSize: 4, Metadata: meta})
	require.NoError(t, err)
	id := resp.(domain.CreatedResponse).SessionID

	_, err = h.patch(id, 0, []byte("<?ph"), testNow)
	assert.ErrorIs(t, err, domain.ErrInvalidExtension)

	_, ok := h.sessions.get(id)
	assert.False(t, ok)
	assert.Empty(t, h.blobs.objects)
	assert.Equal(t, 0, h.files.count())
	assert.Equal(t, 0, h.outstanding())
}

func TestUploadService_CommitFailureIsRetryable(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t, 4)
	h.files.commitErr = errors.New("serialization failure")

	_, err := h.patch(id, 0, []byte("data"), testNow)
	assert.ErrorIs(t, err, domain.ErrInternal)

	staged, ok := h.blobs.bytes("staging/" + id)
	require.True(t, ok)
	assert.Equal(t, []byte("data"), staged)
	assert.Equal(t, 0, h.files.count())
	session, _ := h.sessions.get(id)
	assert.False(t, session.Completed)
	assert.Equal(t, int64(4), session.Offset)

	h.files.commitErr = nil
	resp, err := h.patch(id, 4, nil, testNow)
	require.NoError(t, err)
	require.NotNil(t, resp.FileID)
	assert.Equal(t, 1, h.files.count())
}

func TestUploadService_PromoteFailureKeepsBytes(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t, 4)
	h.blobs.promoteErr = errors.New("disk full")

	_, err := h.patch(id, 0, []byte("data"), testNow)
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.Equal(t, 0, h.files.count())
	_, ok := h.blobs.bytes("staging/" + id)
	assert.True(t, ok)
	assert.Equal(t, 0, h.outstanding())
}

// strand fails the commit and its rollback so the bytes stay behind a pending record.
func (h *harness) strand(t *testing.T, id string) domain.FileRecord {
	t.Helper()
	h.files.setCommitErr(errors.New("connection reset"))
	h.blobs.demoteErr = errors.New("disk offline")

	_, err := h.patch(id, 0, []byte("data"), testNow)
	require.ErrorIs(t, err, domain.ErrInternal)

	h.files.setCommitErr(nil)
	h.blobs.demoteErr = nil

	pending, err := h.files.PendingForSession(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	return *pending[0]
}

func TestUploadService_StrandedFinalizeResumes(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t, 4)
	record := h.strand(t, id)

	assert.Equal(t, domain.FileStatusPending, record.Status)
	assert.Equal(t, 0, h.outstanding())
	_, ok := h.blobs.bytes("staging/" + id)
	assert.False(t, ok)
	held, ok := h.blobs.bytes(record.Location)
	require.True(t, ok)
	assert.Equal(t, []byte("data"), held)

	// The acknowledged offset does not go back to zero.
	assert.Equal(t, domain.HeadResponse{Offset: 4, TotalSize: 4}, h.head(t, id))

	var conflict *domain.ConflictError
	_, err := h.patch(id, 0, []byte("data"), testNow)
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(4), conflict.Expected)
	assert.Equal(t, int64(4), conflict.ActualSize)

	_, err = h.patch(id, 4, []byte("x"), testNow)
	assert.ErrorIs(t, err, domain.ErrSizeExceeded)
	_, ok = h.blobs.bytes("staging/" + id)
	assert.False(t, ok)

	resp, err := h.patch(id, 4, nil, testNow)
	require.NoError(t, err)
	require.NotNil(t, resp.FileID)
	assert.Equal(t, record.ID, *resp.FileID)
	assert.Equal(t, int64(4), resp.Offset)

	committed, ok := h.files.record(record.ID)
	require.True(t, ok)
	assert.Equal(t, domain.FileStatusActive, committed.Status)
	assert.Equal(t, 1, h.files.count())
	session, _ := h.sessions.get(id)
	assert.True(t, session.Completed)
	assert.Equal(t, domain.HeadResponse{Offset: 4, TotalSize: 4}, h.head(t, id))
}

func TestUploadService_StrandedResumeCommitFailsAgain(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t, 4)
	record := h.strand(t, id)

	// A second commit failure rolls the bytes back into staging this time.
	h.files.setCommitErr(errors.New("connection reset"))
	_, err := h.patch(id, 4, nil, testNow)
	assert.ErrorIs(t, err, domain.ErrInternal)

	staged, ok := h.blobs.bytes("staging/" + id)
	require.True(t, ok)
	assert.Equal(t, []byte("data"), staged)
	_, ok = h.files.record(record.ID)
	assert.False(t, ok)

	h.files.setCommitErr(nil)
	resp, err := h.patch(id, 4, nil, testNow)
	require.NoError(t, err)
	require.NotNil(t, resp.FileID)
	assert.Equal(t, 1, h.files.count())
}

func TestUploadService_ReclaimDiscardsStrandedReservation(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(t, 4)
	record := h.strand(t, id)

	later := testNow.Add(h.cfg.Upload.SessionTTL() + time.Minute)
	stats, err := h.svc.ReclaimExpired(context.Background(), later)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ReclaimedSessions)

	_, ok := h.sessions.get(id)
	assert.False(t, ok)
	_, ok = h.files.record(record.ID)
	assert.False(t, ok)
	assert.Empty(t, h.blobs.objects)
}

func TestUploadService_Capabilities(t *testing.T) {
	h := newHarness(t, nil)
	resp, err := h.svc.Handle(context.Background(), domain.OptionsRequest{})
	require.NoError(t, err)

	caps := resp.(domain.Capabilities)
	assert.Equal(t, "1.0.0", caps.Version)
	assert.Equal(t, h.cfg.Upload.MaxFileSize, caps.MaxSize)
	assert.Contains(t, caps.ChecksumAlgorithms, "crc32")
}

func TestUploadService_ReclaimExpired(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Upload.ConcurrencyLimit = 5 })
	stale := h.create(t, 100)
	busy := h.create(t, 100)
	done := h.create(t, 4)

	_, err := h.patch(stale, 0, bytes.Repeat([]byte("x"), 40), testNow)
	require.NoError(t, err)
	_, err = h.patch(done, 0, []byte("data"), testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, h.outstanding())

	unlock, err := h.locker.Lock(context.Background(), busy)
	require.NoError(t, err)

	// Nothing has expired yet.
	stats, err := h.svc.ReclaimExpired(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.ReclaimStats{}, stats)

	later := testNow.Add(h.cfg.Upload.SessionTTL() + time.Minute)
	stats, err = h.svc.ReclaimExpired(context.Background(), later)
	require.NoError(t, err)
	assert.Equal(t, domain.ReclaimStats{ReclaimedSessions: 2, ReclaimedBytes: 40, Skipped: 1}, stats)

	_, ok := h.sessions.get(stale)
	assert.False(t, ok)
	_, ok = h.sessions.get(done)
	assert.False(t, ok)
	_, ok = h.sessions.get(busy)
	assert.True(t, ok)
	assert.Equal(t, 1, h.outstanding())

	require.NoError(t, unlock(context.Background()))
	stats, err = h.svc.ReclaimExpired(context.Background(), later)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ReclaimedSessions)
	assert.Equal(t, 0, h.outstanding())
}
