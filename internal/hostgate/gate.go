// Package hostgate decides whether the chat panel may attach to a page. The
// decision runs once per page load, before any UI is drawn, and fails closed:
// an unconfigured or malformed companion URL never allows attachment.
package hostgate

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"mika/internal/settings"
)

// SettingsReader is the slice of the settings store the gate needs.
type SettingsReader interface {
	Read(ctx context.Context) (settings.Settings, error)
}

type Gate struct {
	store SettingsReader
}

func New(store SettingsReader) *Gate {
	return &Gate{store: store}
}

// IsAllowed reports whether currentHost matches the configured companion
// host. Hostname comparison is exact and case-insensitive. Storage failures
// and unparsable companion URLs both gate closed.
func (g *Gate) IsAllowed(ctx context.Context, currentHost string) bool {
	record, err := g.store.Read(ctx)
	if err != nil {
		slog.Warn("host gate closed: settings unavailable", "error", err)
		return false
	}

	companionHost, ok := hostnameOf(record.CompanionURL)
	if !ok {
		slog.Warn("host gate closed: companion URL not usable", "companion_url", record.CompanionURL)
		return false
	}

	return strings.EqualFold(strings.TrimSpace(currentHost), companionHost)
}

// hostnameOf extracts the hostname component of a configured URL. Schemeless
// or empty values are rejected rather than guessed at.
func hostnameOf(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := parsed.Hostname()
	if host == "" {
		return "", false
	}
	return host, true
}
