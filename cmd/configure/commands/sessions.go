package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forumkit/discussion-board/internal/config"
	"github.com/forumkit/discussion-board/internal/session"
)

// NewSessionsCmd creates the session management command group
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage sessions in the session store",
	}

	cmd.AddCommand(newSessionsRevokeCmd())

	return cmd
}

func newSessionsRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token>",
		Short: "Revoke a session by its token",
		Long:  "Deletes the session record so the next request carrying this token is rejected. Revoking an unknown token is not an error.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := args[0]
			if token == "" {
				return fmt.Errorf("token cannot be empty")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.SessionStore != config.SessionStoreRedis {
				return fmt.Errorf("sessions are only revocable in the %s store", config.SessionStoreRedis)
			}

			store, err := session.NewRedisStore(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("failed to connect to session store: %w", err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close session store: %v\n", err)
				}
			}()

			ctx := context.Background()
			if _, err := store.GetSession(ctx, token); err != nil {
				if errors.Is(err, session.ErrNotFound) {
					fmt.Println("No session found for this token")
					return nil
				}
				return fmt.Errorf("failed to look up session: %w", err)
			}

			if err := store.DeleteSession(ctx, token); err != nil {
				return fmt.Errorf("failed to revoke session: %w", err)
			}

			fmt.Println("Session revoked")
			return nil
		},
	}
}
