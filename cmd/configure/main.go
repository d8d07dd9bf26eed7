package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forumkit/discussion-board/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "board-configure",
		Short: "Operations tool for the discussion board API",
		Long:  "CLI tool for checking the identity provider and managing sessions",
	}

	rootCmd.AddCommand(commands.NewDiscoverCmd())
	rootCmd.AddCommand(commands.NewSessionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
