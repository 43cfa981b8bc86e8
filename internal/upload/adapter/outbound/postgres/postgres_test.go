package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/adapter/outbound/postgres/migrations"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func sessionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "total_size", "upload_offset", "staging_path", "metadata",
		"download_secret", "delete_secret", "replace_secret", "client_key", "admission_token",
		"created_at", "updated_at", "expires_at", "completed", "file_id",
	})
}

func TestSessionRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepository(db)
	folder := int64(4)
	s := &domain.UploadSession{
		ID:          "s1",
		TotalSize:   100,
		StagingPath: "/staging/ab/s1.part",
		Metadata:    domain.Metadata{Filename: "a.txt", FolderID: &folder},
		Secrets:     domain.SealedSecrets{Delete: "sealed-del"},
		ClientKey:   "ck",
		TokenID:     "tok",
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
		ExpiresAt:   testNow.Add(24 * time.Hour),
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO upload_sessions`)).
		WithArgs("s1", int64(100), int64(0), "/staging/ab/s1.part", `{"filename":"a.txt","folder_id":4}`,
			"", "sealed-del", "", "ck", "tok", testNow, testNow, testNow.Add(24*time.Hour), false, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), s))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_CreateError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepository(db)

	mock.ExpectExec(`INSERT INTO upload_sessions`).WillReturnError(errors.New("duplicate key"))

	err := repo.Create(context.Background(), &domain.UploadSession{ID: "s1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestSessionRepository_Get(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery(`SELECT .* FROM upload_sessions WHERE id = \$1`).
		WithArgs("s1").
		WillReturnRows(sessionRows().AddRow(
			"s1", int64(100), int64(40), "/staging/s1.part", []byte(`{"filename":"a.txt","max_downloads":3}`),
			"d", "x", "", "ck", "tok", testNow, testNow, testNow.Add(time.Hour), true, int64(77),
		))

	s, err := repo.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), s.Offset)
	assert.Equal(t, "a.txt", s.Metadata.Filename)
	require.NotNil(t, s.Metadata.MaxDownloads)
	assert.Equal(t, 3, *s.Metadata.MaxDownloads)
	assert.Equal(t, domain.ClientKey("ck"), s.ClientKey)
	assert.True(t, s.Completed)
	require.NotNil(t, s.FileID)
	assert.Equal(t, int64(77), *s.FileID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery(`SELECT .* FROM upload_sessions`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionRepository_UpdateOffset(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "missing", affected: 0, wantErr: domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewSessionRepository(db)

			mock.ExpectExec(`UPDATE upload_sessions SET upload_offset`).
				WithArgs("s1", int64(64), testNow).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.UpdateOffset(context.Background(), "s1", 64, testNow)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSessionRepository_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepository(db)

	mock.ExpectExec(`DELETE FROM upload_sessions WHERE id = \$1`).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "s1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_ListExpired(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery(`SELECT .* FROM upload_sessions\s+WHERE expires_at < \$1 ORDER BY expires_at LIMIT \$2`).
		WithArgs(testNow, 2).
		WillReturnRows(sessionRows().
			AddRow("a", int64(10), int64(5), "/a.part", []byte(`{"filename":"a"}`),
				"", "", "", "ck", "t1", testNow, testNow, testNow.Add(-2*time.Hour), false, nil).
			AddRow("b", int64(10), int64(10), "/b.part", []byte(`{"filename":"b"}`),
				"", "", "", "ck", "t2", testNow, testNow, testNow.Add(-time.Hour), true, int64(9)))

	got, err := repo.ListExpired(context.Background(), testNow, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Nil(t, got[0].FileID)
	assert.Equal(t, "b", got[1].Metadata.Filename)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_ListExpiredBadMetadata(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery(`SELECT .* FROM upload_sessions`).
		WillReturnRows(sessionRows().
			AddRow("a", int64(10), int64(5), "/a.part", []byte(`{not json`),
				"", "", "", "ck", "t1", testNow, testNow, testNow, false, nil))

	_, err := repo.ListExpired(context.Background(), testNow, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode metadata")
}

func TestFileRepository_Reserve(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFileRepository(db)
	record := &domain.FileRecord{
		ID:          42,
		Filename:    "report.pdf",
		Size:        1024,
		StorageName: "abcd",
		Location:    "/files/ab/abcd",
		SessionID:   "s1",
		CreatedAt:   testNow,
	}

	mock.ExpectExec(`INSERT INTO files`).
		WithArgs(int64(42), "s1", "report.pdf", "", int64(1024), "abcd", "/files/ab/abcd",
			"", "", "", nil, nil, nil, "pending", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reserve(context.Background(), record))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_Commit(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "commits both rows",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`UPDATE files SET status`).
					WithArgs(int64(42), "active", "pending").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`UPDATE upload_sessions SET completed = TRUE`).
					WithArgs(int64(42), "s1").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "record not pending",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`UPDATE files SET status`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			wantErr: ErrNotReserved,
		},
		{
			name: "session already completed",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`UPDATE files SET status`).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`UPDATE upload_sessions`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewFileRepository(db)
			tt.setup(mock)

			err := repo.Commit(context.Background(), 42, "s1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFileRepository_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFileRepository(db)

	mock.ExpectExec(`DELETE FROM files WHERE id = \$1 AND status = \$2`).
		WithArgs(int64(42), "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), 42))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_PendingForSession(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFileRepository(db)
	columns := []string{
		"id", "session_id", "filename", "comment", "size", "storage_name", "location",
		"download_key_hash", "delete_key_hash", "replace_key_enc",
		"folder_id", "max_downloads", "expires_at", "status", "created_at",
	}

	mock.ExpectQuery(`SELECT .* FROM files\s+WHERE session_id = \$1 AND status = \$2\s+ORDER BY id DESC`).
		WithArgs("s1", "pending").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(43), "s1", "a.txt", "", int64(4), "n43", "/files/n4/n43", "h", "", "", int64(7), int64(3), nil, "pending", testNow).
			AddRow(int64(42), "s1", "a.txt", "", int64(4), "n42", "/files/n4/n42", "h", "", "", nil, nil, nil, "pending", testNow))

	records, err := repo.PendingForSession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(43), records[0].ID)
	assert.Equal(t, "/files/n4/n43", records[0].Location)
	require.NotNil(t, records[0].FolderID)
	assert.Equal(t, int64(7), *records[0].FolderID)
	require.NotNil(t, records[0].MaxDownloads)
	assert.Equal(t, 3, *records[0].MaxDownloads)
	assert.Nil(t, records[1].FolderID)
	assert.Equal(t, domain.FileStatusPending, records[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(`SELECT .* FROM files`).WillReturnError(errors.New("conn reset"))
	_, err = repo.PendingForSession(context.Background(), "s1")
	assert.ErrorContains(t, err, "db error")
}

func TestRunMigrations(t *testing.T) {
	db, _ := newMock(t)

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, RunMigrations(context.Background(), db))
	assert.Equal(t, ".", gotDir)

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	err := RunMigrations(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.Migrations.ReadDir(".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	require.Len(t, entries, 2)
	assert.Equal(t, "00001_init.sql", entries[0].Name())
	assert.Equal(t, "00002_files_session.sql", entries[1].Name())
}
