package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresBackend stores the document as a JSONB row keyed by the store key.
type PostgresBackend struct {
	db  *sqlx.DB
	key string
}

// NewPostgresBackend creates a backend over db. Call EnsureSchema once at
// startup.
func NewPostgresBackend(db *sqlx.DB, key string) *PostgresBackend {
	return &PostgresBackend{db: db, key: key}
}

// EnsureSchema creates the snapshots table if it does not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			key        TEXT PRIMARY KEY,
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("postgres_backend.EnsureSchema: %w", err)
	}
	return nil
}

// Read fetches the document for the configured key.
func (b *PostgresBackend) Read(ctx context.Context) ([]byte, error) {
	var doc []byte
	err := b.db.GetContext(ctx, &doc, `SELECT document FROM snapshots WHERE key = $1`, b.key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("postgres_backend.Read: %w", err)
	}
	return doc, nil
}

// Write upserts the document.
func (b *PostgresBackend) Write(ctx context.Context, doc []byte) error {
	query := `
		INSERT INTO snapshots (key, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`
	if _, err := b.db.ExecContext(ctx, query, b.key, string(doc)); err != nil {
		return fmt.Errorf("postgres_backend.Write: %w", err)
	}
	return nil
}
