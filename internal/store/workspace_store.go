package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/bracket-manager/internal/bracket"
	"github.com/jmoiron/sqlx"
)

// WorkspaceStore keeps the live bracket of each browser workspace. Reads never fail: a missing or
// unreadable row simply means there is nothing to restore.
type WorkspaceStore struct {
	db *sqlx.DB
}

const (
	upsertSnapshotQuery = `
		INSERT INTO workspaces (id, snapshot, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at
	`
	upsertSettingsQuery = `
		INSERT INTO workspaces (id, settings, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET settings = excluded.settings, updated_at = excluded.updated_at
	`
	getSnapshotQuery = "SELECT snapshot FROM workspaces WHERE id = ?"
	getSettingsQuery = "SELECT settings FROM workspaces WHERE id = ?"
	clearSettings    = "UPDATE workspaces SET settings = NULL, updated_at = ? WHERE id = ?"
)

func NewWorkspaceStore(db *sqlx.DB) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

func (s *WorkspaceStore) SaveSnapshot(ctx context.Context, workspaceID string, snap bracket.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, upsertSnapshotQuery, workspaceID, string(data), time.Now().UTC())
	return err
}

func (s *WorkspaceStore) LoadSnapshot(ctx context.Context, workspaceID string) (bracket.Snapshot, bool) {
	raw, ok := s.load(ctx, getSnapshotQuery, workspaceID)
	if !ok {
		return bracket.Snapshot{}, false
	}
	snap, err := bracket.DecodeSnapshot([]byte(raw))
	if err != nil {
		slog.Warn("discarding unreadable workspace snapshot", "workspace", workspaceID, "error", err)
		return bracket.Snapshot{}, false
	}
	return snap, true
}

func (s *WorkspaceStore) SaveSettings(ctx context.Context, workspaceID string, settings bracket.DisplaySettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, upsertSettingsQuery, workspaceID, string(data), time.Now().UTC())
	return err
}

func (s *WorkspaceStore) LoadSettings(ctx context.Context, workspaceID string) (bracket.DisplaySettings, bool) {
	raw, ok := s.load(ctx, getSettingsQuery, workspaceID)
	if !ok {
		return bracket.DisplaySettings{}, false
	}
	var settings bracket.DisplaySettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		slog.Warn("discarding unreadable display settings", "workspace", workspaceID, "error", err)
		return bracket.DisplaySettings{}, false
	}
	return settings, true
}

func (s *WorkspaceStore) ClearSettings(ctx context.Context, workspaceID string) error {
	_, err := s.db.ExecContext(ctx, clearSettings, time.Now().UTC(), workspaceID)
	return err
}

func (s *WorkspaceStore) load(ctx context.Context, query, workspaceID string) (string, bool) {
	var raw sql.NullString
	err := s.db.GetContext(ctx, &raw, query, workspaceID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("failed to read workspace", "workspace", workspaceID, "error", err)
		}
		return "", false
	}
	if !raw.Valid || raw.String == "" {
		return "", false
	}
	return raw.String, true
}
