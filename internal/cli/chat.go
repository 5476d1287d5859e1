package cli

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"mika/internal/chat"
	"mika/internal/config"
	"mika/internal/hostgate"
	"mika/internal/render"
	"mika/internal/ui"
)

func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [page-url]",
		Short: "Open the chat panel for a Metabase page",
		Long: "Runs the host gate against the page's hostname (the configured companion\n" +
			"URL when omitted) and opens the chat panel only on a match.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.Read(cmd.Context())
			if err != nil {
				return err
			}

			page := record.CompanionURL
			if len(args) == 1 {
				page = args[0]
			}
			host := hostOfPage(page)

			gate := hostgate.New(store)
			if !gate.IsAllowed(cmd.Context(), host) {
				// Fail closed: no panel, no network traffic.
				return fmt.Errorf("chat is not enabled on %q", host)
			}

			session := chat.NewSession(record.BackendURL, record.Token, nil, cfg.PromptTimeout)
			if !session.Ready() {
				return fmt.Errorf("no backend URL or token configured; run `mika login` first")
			}

			slog.Info("opening chat panel", "host", host)
			model := ui.New(session, render.New(100))
			_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
			return err
		},
	}
}
