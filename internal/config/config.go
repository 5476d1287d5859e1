package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultModel = "oai-resp/gpt-5-mini"
)

// Config carries everything the client and the dev server read from the
// environment. Durable user settings (URLs, credentials, token) live in the
// settings store, not here.
type Config struct {
	Port          string
	DevMode       bool
	SyncStorePath string
	LocalDataPath string
	PromptTimeout time.Duration
	DefaultModel  string
	MaxTurns      int
	RunTimeout    time.Duration
	TokenTTL      time.Duration
	TokenDBPath   string
	Username      string
	Password      string
	SystemPrompt  string
}

func Load() Config {
	devMode := os.Getenv("MIKA_DEV") == "1"

	syncDir, localDir := storageDirs(devMode)

	cfg := Config{
		Port:          getenv("PORT", "8000"),
		DevMode:       devMode,
		SyncStorePath: getenv("MIKA_SYNC_STORE_PATH", filepath.Join(syncDir, "settings.sqlite")),
		LocalDataPath: getenv("MIKA_LOCAL_STORE_PATH", filepath.Join(localDir, "credentials.sqlite")),
		PromptTimeout: time.Duration(getenvInt("MIKA_PROMPT_TIMEOUT_SECONDS", 40)) * time.Second,
		DefaultModel:  getenv("AI_DEFAULT_MODEL", DefaultModel),
		MaxTurns:      getenvInt("AI_MAX_TURNS", 8),
		RunTimeout:    time.Duration(getenvInt("AI_RUN_TIMEOUT_SECONDS", 90)) * time.Second,
		TokenTTL:      time.Duration(getenvInt("MIKA_TOKEN_TTL_SECONDS", 3600)) * time.Second,
		TokenDBPath:   getenv("MIKA_TOKEN_DB_PATH", "db/mika_tokens.sqlite"),
		Username:      getenv("MIKA_USERNAME", "admin"),
		Password:      getenv("MIKA_PASSWORD", ""),
		SystemPrompt:  getenv("AI_SYSTEM_PROMPT", "You are Mika, an assistant that generates SQL queries and Metabase visualizations from user prompts. Answer in markdown and put runnable SQL in a fenced sql block."),
	}

	if cfg.MaxTurns < 1 {
		cfg.MaxTurns = 8
	}
	if cfg.PromptTimeout < time.Second {
		cfg.PromptTimeout = 40 * time.Second
	}
	if cfg.TokenTTL < time.Minute {
		cfg.TokenTTL = time.Hour
	}

	return cfg
}

// storageDirs picks the two partition roots: the user config dir stands in for
// platform-synchronized storage, the local share dir for device-local storage.
func storageDirs(devMode bool) (string, string) {
	if devMode {
		tmp := os.TempDir()
		return filepath.Join(tmp, "mika-sync"), filepath.Join(tmp, "mika-local")
	}
	confDir, err := os.UserConfigDir()
	if err != nil {
		confDir = "."
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(confDir, "mika"), filepath.Join(home, ".local", "share", "mika")
}

func getenv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func getenvInt(name string, fallback int) int {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
