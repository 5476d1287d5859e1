// Package cli wires the mika commands: login (save settings and exchange
// credentials), chat (gate on the page host and open the panel), and status.
package cli

import (
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"mika/internal/config"
	"mika/internal/settings"
)

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mika",
		Short:         "Chat with your Metabase data through a Mika backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newLoginCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newStatusCommand())
	return root
}

func Execute() error {
	return NewRootCommand().Execute()
}

func openStore(cfg config.Config) (*settings.Store, error) {
	return settings.Open(cfg.SyncStorePath, cfg.LocalDataPath)
}

// hostOfPage accepts either a page URL or a bare hostname and returns the
// hostname to gate on.
func hostOfPage(arg string) string {
	arg = strings.TrimSpace(arg)
	if parsed, err := url.Parse(arg); err == nil && parsed.Hostname() != "" {
		return parsed.Hostname()
	}
	if host, _, found := strings.Cut(arg, ":"); found {
		return host
	}
	return arg
}
