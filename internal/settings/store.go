// Package settings persists the companion's configuration across two storage
// partitions: non-sensitive fields in a synchronized partition, secrets in a
// local-only one. Callers read and write one merged record and never need to
// know which partition a field lives in.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// StorageKey is the fixed key both partitions store their record under.
const StorageKey = "mika-extension-settings"

const (
	DefaultBackendURL   = "http://localhost:8000"
	DefaultCompanionURL = "http://localhost:3000"
)

// Settings is the merged record. BackendURL points at the Mika backend,
// CompanionURL at the Metabase instance the chat panel is allowed to attach
// to. TokenExpiresAt is milliseconds since epoch, zero when no token is held.
type Settings struct {
	BackendURL     string `json:"mikaUrl"`
	CompanionURL   string `json:"metabaseUrl"`
	Username       string `json:"username"`
	Password       string `json:"password,omitempty"`
	Token          string `json:"mikaToken,omitempty"`
	TokenExpiresAt int64  `json:"mikaTokenExpires,omitempty"`
}

// TokenExpired reports whether a held token is past its expiry. A missing
// token is not "expired"; it is absent.
func (s Settings) TokenExpired(now time.Time) bool {
	return s.Token != "" && s.TokenExpiresAt > 0 && now.UnixMilli() >= s.TokenExpiresAt
}

func defaults() Settings {
	return Settings{
		BackendURL:   DefaultBackendURL,
		CompanionURL: DefaultCompanionURL,
	}
}

// syncRecord and localRecord are the per-partition shapes of a Write. The
// password and token material never enter the sync record.
type syncRecord struct {
	BackendURL   string `json:"mikaUrl"`
	CompanionURL string `json:"metabaseUrl"`
	Username     string `json:"username"`
}

type localRecord struct {
	Password       string `json:"password"`
	Token          string `json:"mikaToken"`
	TokenExpiresAt int64  `json:"mikaTokenExpires"`
}

// Store merges the two partitions behind one read/write surface.
type Store struct {
	sync  *Partition
	local *Partition
}

func Open(syncPath, localPath string) (*Store, error) {
	syncPartition, err := OpenPartition("sync", syncPath)
	if err != nil {
		return nil, err
	}
	localPartition, err := OpenPartition("local", localPath)
	if err != nil {
		syncPartition.Close()
		return nil, err
	}
	return &Store{sync: syncPartition, local: localPartition}, nil
}

func (s *Store) Close() error {
	syncErr := s.sync.Close()
	localErr := s.local.Close()
	if syncErr != nil {
		return syncErr
	}
	return localErr
}

// Read returns the merged record: defaults, overlaid with the sync record,
// overlaid with the local record, so secrets stored locally win on collision.
func (s *Store) Read(ctx context.Context) (Settings, error) {
	merged := defaults()

	for _, partition := range []*Partition{s.sync, s.local} {
		raw, ok, err := partition.Get(ctx, StorageKey)
		if err != nil {
			return Settings{}, err
		}
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &merged); err != nil {
			return Settings{}, fmt.Errorf("decode %s partition record: %w", partition.name, err)
		}
	}
	return merged, nil
}

// Write splits the record across the partitions and overwrites both in place.
// The two writes are independent; a crash between them leaves a record a
// subsequent save re-derives.
func (s *Store) Write(ctx context.Context, record Settings) error {
	syncRaw, err := json.Marshal(syncRecord{
		BackendURL:   record.BackendURL,
		CompanionURL: record.CompanionURL,
		Username:     record.Username,
	})
	if err != nil {
		return fmt.Errorf("encode sync record: %w", err)
	}
	localRaw, err := json.Marshal(localRecord{
		Password:       record.Password,
		Token:          record.Token,
		TokenExpiresAt: record.TokenExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("encode local record: %w", err)
	}

	if err := s.sync.Put(ctx, StorageKey, syncRaw); err != nil {
		return err
	}
	return s.local.Put(ctx, StorageKey, localRaw)
}

// SyncRecordRaw exposes the raw sync-partition record for tests and the
// status command; secrets must never appear in it.
func (s *Store) SyncRecordRaw(ctx context.Context) ([]byte, bool, error) {
	return s.sync.Get(ctx, StorageKey)
}
