// Package cli implements the dashload command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luckeyseven/dashload/internal/logger"
)

var version = "0.1.0"

// NewRootCmd builds the dashload command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "dashload",
		Short:   "Load generator for the team dashboard endpoint",
		Version: version,
		Long: `dashload simulates users that repeatedly load a team dashboard:
each task is a burst of sequential GET /api/team/{teamId}/dashboard
requests, followed by a short random think time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			format, _ := cmd.Flags().GetString("log-format")
			logger.InitWithWriter(level, format, cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "Log format: text or json")

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newHistoryCmd())
	return root
}

// Execute runs the root command against os.Args and prints any error.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
