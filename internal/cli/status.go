package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mika/internal/config"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the merged settings record (secrets redacted)",
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

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend URL:   %s\n", record.BackendURL)
			fmt.Fprintf(out, "Companion URL: %s\n", record.CompanionURL)
			fmt.Fprintf(out, "Username:      %s\n", record.Username)
			fmt.Fprintf(out, "Password:      %s\n", redacted(record.Password != ""))
			fmt.Fprintf(out, "Token:         %s\n", redacted(record.Token != ""))

			switch {
			case record.Token == "":
				fmt.Fprintln(out, "Session:       not logged in")
			case record.TokenExpired(time.Now()):
				fmt.Fprintln(out, "Session:       token expired; run `mika login`")
			case record.TokenExpiresAt > 0:
				expires := time.UnixMilli(record.TokenExpiresAt)
				fmt.Fprintf(out, "Session:       token valid until %s\n", expires.Format(time.RFC3339))
			default:
				fmt.Fprintln(out, "Session:       token held (no expiry recorded)")
			}
			return nil
		},
	}
}

func redacted(set bool) string {
	if set {
		return "(set)"
	}
	return "(not set)"
}
