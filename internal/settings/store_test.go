package settings

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "sync.sqlite"), filepath.Join(dir, "local.sqlite"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func TestReadAppliesDefaultsOnFirstRead(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.BackendURL != DefaultBackendURL {
		t.Fatalf("got.BackendURL = %q, want %q", got.BackendURL, DefaultBackendURL)
	}
	if got.CompanionURL != DefaultCompanionURL {
		t.Fatalf("got.CompanionURL = %q, want %q", got.CompanionURL, DefaultCompanionURL)
	}
	if got.Username != "" || got.Password != "" || got.Token != "" {
		t.Fatalf("first read carries unexpected values: %+v", got)
	}
}

func TestWriteThenReadRoundTripsMergedRecord(t *testing.T) {
	store := newTestStore(t)

	saved := Settings{
		BackendURL:   "http://localhost:8000",
		CompanionURL: "http://localhost:3000",
		Username:     "a",
		Password:     "b",
	}
	if err := store.Write(context.Background(), saved); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.BackendURL != saved.BackendURL {
		t.Fatalf("got.BackendURL = %q, want %q", got.BackendURL, saved.BackendURL)
	}
	if got.CompanionURL != saved.CompanionURL {
		t.Fatalf("got.CompanionURL = %q, want %q", got.CompanionURL, saved.CompanionURL)
	}
	if got.Username != saved.Username {
		t.Fatalf("got.Username = %q, want %q", got.Username, saved.Username)
	}
	if got.Password != saved.Password {
		t.Fatalf("got.Password = %q, want %q", got.Password, saved.Password)
	}
}

func TestWriteKeepsSecretsOutOfSyncPartition(t *testing.T) {
	store := newTestStore(t)

	err := store.Write(context.Background(), Settings{
		BackendURL:     "http://localhost:8000",
		CompanionURL:   "http://localhost:3000",
		Username:       "a",
		Password:       "hunter2",
		Token:          "tok-secret",
		TokenExpiresAt: time.Now().Add(time.Hour).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	raw, ok, err := store.SyncRecordRaw(context.Background())
	if err != nil {
		t.Fatalf("SyncRecordRaw() error = %v", err)
	}
	if !ok {
		t.Fatalf("SyncRecordRaw() ok = false, want record present")
	}
	if strings.Contains(string(raw), "hunter2") || strings.Contains(string(raw), "tok-secret") {
		t.Fatalf("sync partition record contains secret material: %s", raw)
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil {
		t.Fatalf("decode sync record: %v", err)
	}
	for _, key := range []string{"password", "mikaToken", "mikaTokenExpires"} {
		if _, present := record[key]; present {
			t.Fatalf("sync record holds %q, want it confined to the local partition", key)
		}
	}
}

func TestLocalPartitionWinsOnCollision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// A sync record written by another device claims a password; the local
	// partition's value must shadow it on read.
	if err := store.sync.Put(ctx, StorageKey, []byte(`{"mikaUrl":"http://backend:8000","password":"from-sync"}`)); err != nil {
		t.Fatalf("sync.Put() error = %v", err)
	}
	if err := store.local.Put(ctx, StorageKey, []byte(`{"password":"from-local","mikaToken":"t1","mikaTokenExpires":0}`)); err != nil {
		t.Fatalf("local.Put() error = %v", err)
	}

	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Password != "from-local" {
		t.Fatalf("got.Password = %q, want %q", got.Password, "from-local")
	}
	if got.BackendURL != "http://backend:8000" {
		t.Fatalf("got.BackendURL = %q, want %q", got.BackendURL, "http://backend:8000")
	}
	if got.Token != "t1" {
		t.Fatalf("got.Token = %q, want %q", got.Token, "t1")
	}
}

func TestWriteOverwritesInPlace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := Settings{BackendURL: "http://one:8000", CompanionURL: "http://one:3000", Username: "u1", Password: "p1"}
	second := Settings{BackendURL: "http://two:8000", CompanionURL: "http://two:3000", Username: "u2", Password: "p2"}

	if err := store.Write(ctx, first); err != nil {
		t.Fatalf("Write(first) error = %v", err)
	}
	if err := store.Write(ctx, second); err != nil {
		t.Fatalf("Write(second) error = %v", err)
	}

	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.BackendURL != second.BackendURL || got.Username != second.Username || got.Password != second.Password {
		t.Fatalf("Read() = %+v, want the second write throughout", got)
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()

	held := Settings{Token: "t", TokenExpiresAt: now.Add(time.Hour).UnixMilli()}
	if held.TokenExpired(now) {
		t.Fatalf("TokenExpired() = true for a live token")
	}

	stale := Settings{Token: "t", TokenExpiresAt: now.Add(-time.Second).UnixMilli()}
	if !stale.TokenExpired(now) {
		t.Fatalf("TokenExpired() = false for a stale token")
	}

	absent := Settings{}
	if absent.TokenExpired(now) {
		t.Fatalf("TokenExpired() = true for an absent token")
	}
}
