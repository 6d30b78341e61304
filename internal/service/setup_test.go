package service

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/bracket-manager/internal/middleware"
	"github.com/AdamBeresnev/bracket-manager/internal/storage"
	"github.com/AdamBeresnev/bracket-manager/internal/store"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	database.SetMaxOpenConns(1)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "sqlite3", driver)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	t.Cleanup(func() { database.Close() })
	return database
}

var fixedNow = time.Date(2025, time.March, 14, 15, 9, 26, 0, time.UTC)

func clock() time.Time { return fixedNow }

type services struct {
	db        *sqlx.DB
	usage     *store.UsageStore
	quota     *QuotaService
	uploads   *UploadService
	saves     *SaveService
	brackets  *BracketService
	workspace *store.WorkspaceStore
	uploader  *storage.DiskUploader
}

func newServices(t *testing.T) *services {
	t.Helper()
	db := setupTestDB(t)

	uploader, err := storage.NewDiskUploader(t.TempDir(), "http://localhost:8080/files")
	require.NoError(t, err)

	usage := store.NewUsageStore(db)
	quota := NewQuotaService(usage, 1000, 500, nil)
	quota.now = clock

	uploads := NewUploadService(uploader, quota, 10*1024*1024,
		[]string{"image/jpeg", "image/png", "image/gif", "image/webp", "application/pdf"}, nil)
	uploads.now = clock

	saves := NewSaveService(store.NewSavedBracketStore(db), quota, "https://brackets.example.com/", nil)
	saves.now = clock

	workspace := store.NewWorkspaceStore(db)
	brackets := NewBracketService(workspace, saves, nil)
	brackets.now = clock

	return &services{
		db:        db,
		usage:     usage,
		quota:     quota,
		uploads:   uploads,
		saves:     saves,
		brackets:  brackets,
		workspace: workspace,
		uploader:  uploader,
	}
}

func workspaceCtx(id string) context.Context {
	return middleware.WithWorkspaceID(context.Background(), id)
}

// setUsage forces this month's counters, standing in for a busy month.
func setUsage(t *testing.T, db *sqlx.DB, uploads, saves int) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO usage (month, upload_count, save_count) VALUES (?, ?, ?)
		ON CONFLICT(month) DO UPDATE SET upload_count = excluded.upload_count, save_count = excluded.save_count`,
		fixedNow.Format("2006-01"), uploads, saves)
	require.NoError(t, err)
}
