package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// SavedBracket is a shared bracket. Document holds the JSON body returned by the API.
type SavedBracket struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Document  string    `db:"document"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type SavedBracketStore struct {
	db *sqlx.DB
}

const (
	createSavedBracketQuery = `
		INSERT INTO saved_brackets (id, title, document, created_at, updated_at)
		VALUES (:id, :title, :document, :created_at, :updated_at)
	`
	getSavedBracketQuery = "SELECT * FROM saved_brackets WHERE id = ?"
)

func NewSavedBracketStore(db *sqlx.DB) *SavedBracketStore {
	return &SavedBracketStore{db: db}
}

func (s *SavedBracketStore) Create(ctx context.Context, b *SavedBracket) error {
	_, err := s.db.NamedExecContext(ctx, createSavedBracketQuery, b)
	return err
}

func (s *SavedBracketStore) Get(ctx context.Context, id string) (*SavedBracket, error) {
	var b SavedBracket
	err := s.db.GetContext(ctx, &b, getSavedBracketQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
