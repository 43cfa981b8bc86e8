package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
)

// memSessions is an in-memory SessionRepository.
type memSessions struct {
	mu        sync.Mutex
	rows      map[string]domain.UploadSession
	createErr error
	updateErr error
}

func newMemSessions() *memSessions {
	return &memSessions{rows: make(map[string]domain.UploadSession)}
}

func (m *memSessions) Create(_ context.Context, s *domain.UploadSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.rows[s.ID] = *s
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*domain.UploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *memSessions) UpdateOffset(_ context.Context, id string, offset int64, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	s, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Offset = offset
	s.UpdatedAt = updatedAt
	m.rows[id] = s
	return nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memSessions) ListExpired(_ context.Context, now time.Time, limit int) ([]*domain.UploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.UploadSession
	for _, s := range m.rows {
		if s.ExpiresAt.Before(now) {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSessions) get(id string) (domain.UploadSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	return s, ok
}

func (m *memSessions) markCompleted(id string, fileID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.rows[id]
	s.Completed = true
	s.FileID = &fileID
	m.rows[id] = s
}

// memFiles is an in-memory FileRepository whose Commit also completes the session.
type memFiles struct {
	mu        sync.Mutex
	records   map[int64]domain.FileRecord
	sessions  *memSessions
	commitErr error
}

func newMemFiles(sessions *memSessions) *memFiles {
	return &memFiles{records: make(map[int64]domain.FileRecord), sessions: sessions}
}

func (m *memFiles) Reserve(_ context.Context, r *domain.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = *r
	return nil
}

func (m *memFiles) Commit(_ context.Context, fileID int64, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	r := m.records[fileID]
	r.Status = domain.FileStatusActive
	m.records[fileID] = r
	m.sessions.markCompleted(sessionID, fileID)
	return nil
}

func (m *memFiles) Delete(_ context.Context, fileID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, fileID)
	return nil
}

func (m *memFiles) PendingForSession(_ context.Context, sessionID string) ([]*domain.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.FileRecord
	for _, r := range m.records {
		if r.SessionID == sessionID && r.Status == domain.FileStatusPending {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memFiles) record(id int64) (domain.FileRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

func (m *memFiles) setCommitErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitErr = err
}

func (m *memFiles) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memBlobs backs both the staging and the permanent store with one map.
type memBlobs struct {
	mu         sync.Mutex
	objects    map[string][]byte
	shortBy    int
	promoteErr error
	demoteErr  error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (m *memBlobs) Create(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := "staging/" + sessionID
	m.objects[path] = []byte{}
	return path, nil
}

func (m *memBlobs) Size(_ context.Context, path string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	if !ok {
		return 0, port.ErrStagingMissing
	}
	return int64(len(b)), nil
}

func (m *memBlobs) Append(_ context.Context, path string, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	if !ok {
		return 0, port.ErrStagingMissing
	}
	n := len(data) - m.shortBy
	if n < 0 {
		n = 0
	}
	m.objects[path] = append(b, data[:n]...)
	return n, nil
}

func (m *memBlobs) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *memBlobs) Location(storageName string) string {
	return "files/" + storageName
}

func (m *memBlobs) Promote(_ context.Context, stagingPath, location string) error {
	return m.move(stagingPath, location, m.promoteErr)
}

func (m *memBlobs) Demote(_ context.Context, location, stagingPath string) error {
	return m.move(location, stagingPath, m.demoteErr)
}

func (m *memBlobs) move(from, to string, failWith error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if failWith != nil {
		return failWith
	}
	b, ok := m.objects[from]
	if !ok {
		return errors.New("source missing")
	}
	m.objects[to] = b
	delete(m.objects, from)
	return nil
}

func (m *memBlobs) bytes(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	return b, ok
}

// memAdmission mirrors the Redis script semantics in memory.
type memAdmission struct {
	mu     sync.Mutex
	hours  map[domain.ClientKey]map[int64]int
	tokens map[domain.ClientKey]map[string]time.Time
}

func newMemAdmission() *memAdmission {
	return &memAdmission{
		hours:  make(map[domain.ClientKey]map[int64]int),
		tokens: make(map[domain.ClientKey]map[string]time.Time),
	}
}

func (m *memAdmission) TryAcquire(_ context.Context, req domain.SlotRequest) (domain.SlotVerdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hours[req.ClientKey] == nil {
		m.hours[req.ClientKey] = make(map[int64]int)
		m.tokens[req.ClientKey] = make(map[string]time.Time)
	}
	if req.HourlyLimit > 0 && m.hours[req.ClientKey][req.HourBucket] >= req.HourlyLimit {
		return domain.SlotVerdict{Reason: domain.DenyHourlyLimit}, nil
	}
	for id, issued := range m.tokens[req.ClientKey] {
		if req.Now.Sub(issued) > req.TokenTTL {
			delete(m.tokens[req.ClientKey], id)
		}
	}
	if req.ConcurrencyLimit > 0 && len(m.tokens[req.ClientKey]) >= req.ConcurrencyLimit {
		return domain.SlotVerdict{Reason: domain.DenyConcurrentLimit}, nil
	}
	m.hours[req.ClientKey][req.HourBucket]++
	m.tokens[req.ClientKey][req.TokenID] = req.Now
	return domain.SlotVerdict{Granted: true}, nil
}

func (m *memAdmission) Release(_ context.Context, key domain.ClientKey, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens[key], tokenID)
	return nil
}

func (m *memAdmission) Outstanding(_ context.Context, key domain.ClientKey, _ time.Time, _ time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens[key]), nil
}

// memLocker is a process-local SessionLocker that fails fast on contention.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) Lock(_ context.Context, sessionID string) (port.Unlock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[sessionID] {
		return nil, domain.ErrLocked
	}
	l.held[sessionID] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, sessionID)
		return nil
	}, nil
}

type staticKeyer struct{}

func (staticKeyer) Key(identity string) domain.ClientKey { return domain.ClientKey("k:" + identity) }

type allowCSRF struct{ token string }

func (a allowCSRF) Validate(_, token string) bool { return a.token == "" || token == a.token }

type denyExtensions map[string]bool

func (d denyExtensions) Allowed(filename string) bool {
	for ext := range d {
		if len(filename) > len(ext) && filename[len(filename)-len(ext)-1:] == "."+ext {
			return false
		}
	}
	return true
}

type seqIDs struct {
	mu   sync.Mutex
	next int64
}

func (s *seqIDs) Next() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next, nil
}
