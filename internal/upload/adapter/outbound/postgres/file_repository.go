package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/anthanhphan/go-resumable-upload/pkg/dbx"
)

// ErrNotReserved is returned by Commit when the record is missing or already active.
var ErrNotReserved = errors.New("file record is not reserved")

// FileRepository stores permanent file records in the files table.
type FileRepository struct {
	db *sql.DB
}

var _ port.FileRepository = (*FileRepository)(nil)

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Reserve(ctx context.Context, f *domain.FileRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO files (id, session_id, filename, comment, size, storage_name, location,
			download_key_hash, delete_key_hash, replace_key_enc,
			folder_id, max_downloads, expires_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		f.ID, f.SessionID, f.Filename, f.Comment, f.Size, f.StorageName, f.Location,
		f.DownloadKeyHash, f.DeleteKeyHash, f.ReplaceKeySealed,
		f.FolderID, f.MaxDownloads, f.ExpiresAt, string(domain.FileStatusPending), f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Commit flips the record to active and closes the session in one transaction.
func (r *FileRepository) Commit(ctx context.Context, fileID int64, sessionID string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE files SET status = $2 WHERE id = $1 AND status = $3`,
			fileID, string(domain.FileStatusActive), string(domain.FileStatusPending))
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if err := dbx.ExpectOneRow(res, ErrNotReserved); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE upload_sessions SET completed = TRUE, file_id = $1, updated_at = now()
			WHERE id = $2 AND completed = FALSE`,
			fileID, sessionID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return dbx.ExpectOneRow(res, domain.ErrNotFound)
	})
}

// Delete only drops pending reservations; active records are never removed here.
func (r *FileRepository) Delete(ctx context.Context, fileID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM files WHERE id = $1 AND status = $2`,
		fileID, string(domain.FileStatusPending))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *FileRepository) PendingForSession(ctx context.Context, sessionID string) ([]*domain.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, filename, comment, size, storage_name, location,
			download_key_hash, delete_key_hash, replace_key_enc,
			folder_id, max_downloads, expires_at, status, created_at
		FROM files
		WHERE session_id = $1 AND status = $2
		ORDER BY id DESC`,
		sessionID, string(domain.FileStatusPending))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*domain.FileRecord
	for rows.Next() {
		var (
			f            domain.FileRecord
			status       string
			folderID     sql.NullInt64
			maxDownloads sql.NullInt32
			expiresAt    sql.NullTime
		)
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Filename, &f.Comment, &f.Size, &f.StorageName, &f.Location,
			&f.DownloadKeyHash, &f.DeleteKeyHash, &f.ReplaceKeySealed,
			&folderID, &maxDownloads, &expiresAt, &status, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if folderID.Valid {
			f.FolderID = &folderID.Int64
		}
		if maxDownloads.Valid {
			n := int(maxDownloads.Int32)
			f.MaxDownloads = &n
		}
		if expiresAt.Valid {
			f.ExpiresAt = &expiresAt.Time
		}
		f.Status = domain.FileStatus(status)
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
