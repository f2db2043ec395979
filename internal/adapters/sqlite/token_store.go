// Package sqlite stores the CLI's bearer token in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/publicvoice/portal/internal/migrate"
	"github.com/publicvoice/portal/internal/ports"

	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

// TokenKey is the row key holding the bearer token.
const TokenKey = "publicvoice_token"

var _ ports.TokenStore = (*TokenStore)(nil)

// TokenStore is a single-visitor ports.TokenStore backed by the token_store table.
type TokenStore struct {
	db     *sql.DB
	key    string
	logger *slog.Logger
}

// NewTokenStore wraps an already migrated database.
func NewTokenStore(db *sql.DB, logger *slog.Logger) *TokenStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenStore{db: db, key: TokenKey, logger: logger}
}

// Open opens (creating if needed) the SQLite file at path and applies migrations.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer; avoids SQLITE_BUSY between the CLI and a stray second process.
	db.SetMaxOpenConns(1)

	if err := migrate.Run(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}

// Get returns the stored token; read failures are logged and reported as no token.
func (s *TokenStore) Get(ctx context.Context) string {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM token_store WHERE key = ?`, s.key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "token store read failed", "error", err)
		}
		return ""
	}
	return value
}

// Set upserts the token, or deletes the row when token is "".
func (s *TokenStore) Set(ctx context.Context, token string) error {
	if token == "" {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM token_store WHERE key = ?`, s.key); err != nil {
			return fmt.Errorf("failed to delete token_store[%s]: %w", s.key, err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, s.key, token)
	if err != nil {
		return fmt.Errorf("failed to set token_store[%s]: %w", s.key, err)
	}
	return nil
}
