package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrUnavailable wraps any failure to reach a partition's backing storage.
var ErrUnavailable = errors.New("settings storage unavailable")

// Partition is one named key-value store holding JSON records. The "sync"
// partition lives in the platform-synchronized config dir, the "local"
// partition on the device only; callers above this layer never see the split.
type Partition struct {
	name string
	db   *sql.DB
}

func OpenPartition(name, path string) (*Partition, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s partition dir: %v", ErrUnavailable, name, err)
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s partition: %v", ErrUnavailable, name, err)
	}
	database.SetMaxOpenConns(1)
	database.SetConnMaxLifetime(0)

	partition := &Partition{name: name, db: database}
	if err := partition.migrate(context.Background()); err != nil {
		database.Close()
		return nil, err
	}
	return partition, nil
}

func (p *Partition) Close() error {
	return p.db.Close()
}

func (p *Partition) migrate(ctx context.Context) error {
	const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS records (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate %s partition: %v", ErrUnavailable, p.name, err)
	}
	return nil
}

// Get returns the JSON record stored under key, or ok=false when the key has
// never been written.
func (p *Partition) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: read %s partition: %v", ErrUnavailable, p.name, err)
	}
	return []byte(value), true, nil
}

// Put overwrites the record under key in place.
func (p *Partition) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx, `
INSERT INTO records (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, string(value))
	if err != nil {
		return fmt.Errorf("%w: write %s partition: %v", ErrUnavailable, p.name, err)
	}
	return nil
}
