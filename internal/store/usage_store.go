package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Counter names one of the monthly usage columns.
type Counter string

const (
	CounterUploads Counter = "upload_count"
	CounterSaves   Counter = "save_count"
)

type Usage struct {
	Month       string    `db:"month"`
	UploadCount int       `db:"upload_count"`
	SaveCount   int       `db:"save_count"`
	CreatedAt   time.Time `db:"created_at"`
	LastUpdated time.Time `db:"last_updated"`
}

type UsageStore struct {
	db *sqlx.DB
}

const getUsageQuery = "SELECT * FROM usage WHERE month = ?"

func NewUsageStore(db *sqlx.DB) *UsageStore {
	return &UsageStore{db: db}
}

// Get returns the counters for month ("2006-01"). A month with no activity yet is all zeros.
func (s *UsageStore) Get(ctx context.Context, month string) (Usage, error) {
	var u Usage
	err := s.db.GetContext(ctx, &u, getUsageQuery, month)
	if errors.Is(err, sql.ErrNoRows) {
		return Usage{Month: month}, nil
	}
	return u, err
}

func (s *UsageStore) Count(ctx context.Context, month string, c Counter) (int, error) {
	u, err := s.Get(ctx, month)
	if err != nil {
		return 0, err
	}
	if c == CounterSaves {
		return u.SaveCount, nil
	}
	return u.UploadCount, nil
}

// Increment bumps one counter for month and returns its new value.
func (s *UsageStore) Increment(ctx context.Context, month string, c Counter) (int, error) {
	if c != CounterUploads && c != CounterSaves {
		return 0, fmt.Errorf("unknown usage counter %q", c)
	}
	// c is one of the two column constants above
	query := fmt.Sprintf(`
		INSERT INTO usage (month, %[1]s, created_at, last_updated) VALUES (?, 1, ?, ?)
		ON CONFLICT(month) DO UPDATE SET %[1]s = %[1]s + 1, last_updated = excluded.last_updated
		RETURNING %[1]s
	`, c)

	now := time.Now().UTC()
	var count int
	err := s.db.GetContext(ctx, &count, query, month, now, now)
	return count, err
}
