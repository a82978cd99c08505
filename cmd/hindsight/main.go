// Command hindsight runs the Hindsight MCP server or its ingestion
// subcommands.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hindsight-dev/hindsight/internal/config"
)

var overrides config.Overrides

func main() {
	root := &cobra.Command{
		Use:   "hindsight",
		Short: "Local developer-history service for version control, tests, and AI chat transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmdRunE(cmd, args)
		},
	}

	root.PersistentFlags().StringVarP(&overrides.Database, "database", "d", "", "path to the hindsight database file")
	root.PersistentFlags().StringVarP(&overrides.Workspace, "workspace", "w", "", "path to the workspace to associate with this invocation")
	root.PersistentFlags().BoolVarP(&overrides.Verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVarP(&overrides.Quiet, "quiet", "q", false, "only log warnings and errors")
	root.PersistentFlags().BoolVar(&overrides.SkipInit, "skip-init", false, "skip running the migration ledger on startup")

	root.AddCommand(serveCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case cfg.Verbose:
		level = slog.LevelDebug
	case cfg.Quiet:
		level = slog.LevelWarn
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hindsight version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("hindsight 0.1.0")
			return nil
		},
	}
}
