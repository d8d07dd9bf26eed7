package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forumkit/discussion-board/internal/config"
	"github.com/forumkit/discussion-board/internal/services/oidc"
)

// NewDiscoverCmd creates the issuer discovery check command
func NewDiscoverCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run identity provider discovery once and print the endpoints",
		Long:  "Resolves the configured issuer's well-known metadata the same way the server does at startup. Useful for verifying provider reachability before deploying.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger := zap.NewNop()
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			issuer, err := oidc.Discover(ctx, oidc.IssuerConfig{
				IssuerURL:    cfg.OIDCIssuerURL,
				ClientID:     cfg.OIDCClientID,
				ClientSecret: cfg.OIDCClientSecret,
				RedirectURL:  cfg.OIDCRedirectURL,
			}, logger)
			if err != nil {
				return fmt.Errorf("discovery failed: %w", err)
			}

			endpoint := issuer.Endpoint()
			fmt.Printf("Issuer:         %s\n", cfg.OIDCIssuerURL)
			fmt.Printf("Auth endpoint:  %s\n", endpoint.AuthURL)
			fmt.Printf("Token endpoint: %s\n", endpoint.TokenURL)

			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Overall discovery timeout including retries")

	return cmd
}
