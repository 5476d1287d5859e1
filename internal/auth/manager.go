// Package auth performs the login exchange against the Mika backend and folds
// the resulting bearer token into the settings store.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mika/internal/settings"
)

var (
	// ErrInvalidCredentials covers every non-success HTTP status from the
	// login endpoint; the backend is not interrogated further.
	ErrInvalidCredentials = errors.New("invalid credentials or server error")
	// ErrNetwork covers transport-level failures and unreadable responses.
	ErrNetwork = errors.New("network error")
)

// AuthResult is the outcome of a successful exchange. ExpiresAt is
// milliseconds since epoch.
type AuthResult struct {
	Token     string
	ExpiresAt int64
}

// SettingsStore is the slice of the settings store the manager uses.
type SettingsStore interface {
	Read(ctx context.Context) (settings.Settings, error)
	Write(ctx context.Context, record settings.Settings) error
}

type Manager struct {
	store  SettingsStore
	client *http.Client
	now    func() time.Time
}

func NewManager(store SettingsStore, client *http.Client) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{store: store, client: client, now: time.Now}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// Login exchanges credentials for a bearer token and persists the merged
// settings record on success. Repeated calls with the same credentials simply
// overwrite the stored token.
func (m *Manager) Login(ctx context.Context, backendURL, username, password string) (AuthResult, error) {
	endpoint := strings.TrimSuffix(strings.TrimSpace(backendURL), "/") + "/login"

	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: encode login request: %v", ErrNetwork, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: build login request: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		slog.Info("login failed", "reason", "transport", "error", err)
		return AuthResult{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Info("login failed", "reason", "status", "status", resp.StatusCode)
		return AuthResult{}, ErrInvalidCredentials
	}

	var decoded loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		slog.Info("login failed", "reason", "decode", "error", err)
		return AuthResult{}, fmt.Errorf("%w: decode login response: %v", ErrNetwork, err)
	}

	result := AuthResult{
		Token:     decoded.Token,
		ExpiresAt: m.now().UnixMilli() + decoded.ExpiresIn*1000,
	}

	record, err := m.store.Read(ctx)
	if err != nil {
		return AuthResult{}, err
	}
	record.BackendURL = strings.TrimSuffix(strings.TrimSpace(backendURL), "/")
	record.Username = username
	record.Password = password
	record.Token = result.Token
	record.TokenExpiresAt = result.ExpiresAt
	if err := m.store.Write(ctx, record); err != nil {
		return AuthResult{}, err
	}

	slog.Info("login succeeded", "expires_at_ms", result.ExpiresAt)
	return result, nil
}

// SaveAndLogin is the "save & login" user action: it persists the submitted
// settings first, so a failed login still leaves the form state saved, then
// runs the exchange.
func (m *Manager) SaveAndLogin(ctx context.Context, record settings.Settings) (AuthResult, error) {
	current, err := m.store.Read(ctx)
	if err != nil {
		return AuthResult{}, err
	}
	record.Token = current.Token
	record.TokenExpiresAt = current.TokenExpiresAt
	if err := m.store.Write(ctx, record); err != nil {
		return AuthResult{}, err
	}
	return m.Login(ctx, record.BackendURL, record.Username, record.Password)
}

// StatusMessage maps a Login outcome to the user-facing status line.
func StatusMessage(err error) string {
	switch {
	case err == nil:
		return "Login successful!"
	case errors.Is(err, ErrInvalidCredentials):
		return "Login failed: Invalid credentials or server error."
	case errors.Is(err, ErrNetwork):
		return "Login failed: Network error."
	default:
		return "Login failed: " + err.Error()
	}
}
