package cli

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"mika/internal/auth"
	"mika/internal/config"
	"mika/internal/settings"
)

func newLoginCommand() *cobra.Command {
	var backendURL, companionURL, username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save settings and log in to the Mika backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			current, err := store.Read(cmd.Context())
			if err != nil {
				return err
			}

			record := settings.Settings{
				BackendURL:   firstNonEmpty(backendURL, current.BackendURL),
				CompanionURL: firstNonEmpty(companionURL, current.CompanionURL),
				Username:     firstNonEmpty(username, current.Username),
				Password:     firstNonEmpty(password, current.Password),
			}
			if record.Password == "" {
				record.Password, err = promptPassword(cmd)
				if err != nil {
					return err
				}
			}
			if record.BackendURL == "" || record.CompanionURL == "" || record.Username == "" {
				return errors.New("please fill in all required fields: --backend-url, --companion-url, --username")
			}

			manager := auth.NewManager(store, http.DefaultClient)
			_, err = manager.SaveAndLogin(cmd.Context(), record)
			fmt.Fprintln(cmd.OutOrStdout(), auth.StatusMessage(err))
			if err != nil {
				return errors.New("login did not succeed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&backendURL, "backend-url", "", "Mika server URL")
	cmd.Flags().StringVar(&companionURL, "companion-url", "", "Metabase URL the chat panel attaches to")
	cmd.Flags().StringVar(&username, "username", "", "Mika username")
	cmd.Flags().StringVar(&password, "password", "", "Mika password (prompted when omitted)")
	return cmd
}

func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
