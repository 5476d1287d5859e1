package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// TokenStore persists issued bearer tokens so logins survive a dev server
// restart.
type TokenStore struct {
	db *sql.DB
}

func OpenTokenStore(path string) (*TokenStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create token db dir: %w", err)
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open token db: %w", err)
	}
	database.SetMaxOpenConns(1)
	database.SetConnMaxLifetime(0)

	store := &TokenStore{db: database}
	if err := store.migrate(context.Background()); err != nil {
		database.Close()
		return nil, err
	}
	return store, nil
}

func (s *TokenStore) Close() error {
	return s.db.Close()
}

func (s *TokenStore) migrate(ctx context.Context) error {
	const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS tokens (
  token TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  expires_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tokens_expires ON tokens(expires_at);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate token schema: %w", err)
	}
	return nil
}

// Issue mints a fresh token for username, valid for ttl.
func (s *TokenStore) Issue(ctx context.Context, username string, ttl time.Duration, now time.Time) (string, error) {
	token := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tokens (token, username, expires_at) VALUES (?, ?, ?)`,
		token, username, now.Add(ttl).UTC())
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Validate reports whether token exists and is still live at now.
func (s *TokenStore) Validate(ctx context.Context, token string, now time.Time) (bool, error) {
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, `
SELECT expires_at FROM tokens WHERE token = ?`, token).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("validate token: %w", err)
	}
	return now.Before(expiresAt), nil
}

// PurgeExpired drops tokens past their expiry.
func (s *TokenStore) PurgeExpired(ctx context.Context, now time.Time) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at <= ?`, now.UTC()); err != nil {
		return fmt.Errorf("purge tokens: %w", err)
	}
	return nil
}
