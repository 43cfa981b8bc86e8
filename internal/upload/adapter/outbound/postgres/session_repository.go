package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/anthanhphan/go-resumable-upload/pkg/dbx"
)

const sessionColumns = `id, total_size, upload_offset, staging_path, metadata,
	download_secret, delete_secret, replace_secret, client_key, admission_token,
	created_at, updated_at, expires_at, completed, file_id`

// SessionRepository stores upload sessions in the upload_sessions table.
type SessionRepository struct {
	db dbx.DBTX
}

var _ port.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(db dbx.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.UploadSession) error {
	meta, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO upload_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.TotalSize, s.Offset, s.StagingPath, string(meta),
		s.Secrets.Download, s.Secrets.Delete, s.Secrets.Replace,
		string(s.ClientKey), s.TokenID,
		s.CreatedAt, s.UpdatedAt, s.ExpiresAt, s.Completed, s.FileID,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.UploadSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM upload_sessions WHERE id = $1`, id)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) UpdateOffset(ctx context.Context, id string, offset int64, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE upload_sessions SET upload_offset = $2, updated_at = $3 WHERE id = $1`,
		id, offset, updatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, domain.ErrNotFound)
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM upload_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.UploadSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM upload_sessions
		WHERE expires_at < $1 ORDER BY expires_at LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*domain.UploadSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.UploadSession, error) {
	var (
		s         domain.UploadSession
		meta      []byte
		clientKey string
		fileID    sql.NullInt64
	)
	err := row.Scan(
		&s.ID, &s.TotalSize, &s.Offset, &s.StagingPath, &meta,
		&s.Secrets.Download, &s.Secrets.Delete, &s.Secrets.Replace,
		&clientKey, &s.TokenID,
		&s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt, &s.Completed, &fileID,
	)
	if err != nil {
		return nil, err
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &s.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	s.ClientKey = domain.ClientKey(clientKey)
	if fileID.Valid {
		id := fileID.Int64
		s.FileID = &id
	}
	return &s, nil
}
