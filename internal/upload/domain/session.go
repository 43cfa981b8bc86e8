package domain

import "time"

// SessionState is derived from the persisted row; Rejected sessions are deleted, never stored.
type SessionState string

const (
	StateReceiving SessionState = "receiving"
	StateCompleted SessionState = "completed"
	StateRejected  SessionState = "rejected"
	StateExpired   SessionState = "expired"
)

// Metadata is the client-declared information attached to a session at creation.
type Metadata struct {
	Filename     string `json:"filename"`
	Comment      string `json:"comment,omitempty"`
	FolderID     *int64 `json:"folder_id,omitempty"`
	MaxDownloads *int   `json:"max_downloads,omitempty"`
	ExpireDays   *int   `json:"expire_days,omitempty"`
}

// SealedSecrets holds vault-sealed secrets. An empty string means the secret was not supplied.
type SealedSecrets struct {
	Download string
	Delete   string
	Replace  string
}

// UploadSession is the server-side record of one in-progress resumable upload.
type UploadSession struct {
	ID          string
	TotalSize   int64
	Offset      int64
	StagingPath string
	Metadata    Metadata
	Secrets     SealedSecrets
	ClientKey   ClientKey
	TokenID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
	Completed   bool
	FileID      *int64
}

func (s *UploadSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *UploadSession) State(now time.Time) SessionState {
	switch {
	case s.Completed:
		return StateCompleted
	case s.Expired(now):
		return StateExpired
	default:
		return StateReceiving
	}
}

// Token returns the admission token reference held by the session.
func (s *UploadSession) Token() AdmissionToken {
	return AdmissionToken{ID: s.TokenID, ClientKey: s.ClientKey, IssuedAt: s.CreatedAt}
}

// ReclaimStats summarizes one reclaim sweep.
type ReclaimStats struct {
	ReclaimedSessions int   `json:"reclaimed_sessions"`
	ReclaimedBytes    int64 `json:"reclaimed_bytes"`
	Skipped           int   `json:"skipped"`
}
