package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hindsight-dev/hindsight/internal/config"
	"github.com/hindsight-dev/hindsight/internal/mcpserver"
	"github.com/hindsight-dev/hindsight/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio (also the default when no subcommand is given)",
		RunE:  serveCmdRunE,
	}
}

func serveCmdRunE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(overrides)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	db, err := store.OpenPathWithOptions(cfg.DatabasePath, store.OpenPathOptions{SkipInit: cfg.SkipInit})
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info("hindsight server starting", "database", cfg.DatabasePath, "workspace", cfg.WorkspacePath)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcpserver.New(db, cfg.DatabasePath, log)
	return server.Serve(ctx)
}
