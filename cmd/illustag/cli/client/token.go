package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwantia/illustag/internal/api"
)

func NewTokenCommand() *cobra.Command {
	var ttl string

	cmd := &cobra.Command{
		Use:   "token <curator>",
		Short: "Issue a curator token for the HTTP API",
		Long: `Issue a bearer token signed with http.auth.secret.

The token authorizes uploads, deletions and curation requests against the agent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			auth := api.NewAuthenticator(cfg.HTTP.Auth.Secret)
			if auth == nil {
				return errors.New("http.auth.secret is not configured")
			}

			if ttl == "" {
				ttl = cfg.HTTP.Auth.TokenTTL
			}
			duration, err := time.ParseDuration(ttl)
			if err != nil {
				return fmt.Errorf("invalid token ttl: %w", err)
			}

			token, err := auth.Issue(args[0], duration)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&ttl, "ttl", "", "token lifetime, 0 for no expiry (default http.auth.token_ttl)")

	return cmd
}
