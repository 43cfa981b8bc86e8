package domain

import "time"

type FileStatus string

const (
	// FileStatusPending marks a reserved record whose bytes are not yet committed.
	FileStatusPending FileStatus = "pending"
	FileStatusActive  FileStatus = "active"
)

// FileRecord is the permanent record produced by finalization.
type FileRecord struct {
	ID               int64      `json:"id"`
	SessionID        string     `json:"-"`
	Filename         string     `json:"filename"`
	Comment          string     `json:"comment,omitempty"`
	Size             int64      `json:"size"`
	StorageName      string     `json:"-"`
	Location         string     `json:"-"`
	DownloadKeyHash  string     `json:"-"`
	DeleteKeyHash    string     `json:"-"`
	ReplaceKeySealed string     `json:"-"`
	FolderID         *int64     `json:"folder_id,omitempty"`
	MaxDownloads     *int       `json:"max_downloads,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Status           FileStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
}
