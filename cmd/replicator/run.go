package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/antosikiss/replicator/internal/batch"
	"github.com/antosikiss/replicator/internal/config"
	"github.com/antosikiss/replicator/internal/store"
	"github.com/antosikiss/replicator/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one batch invocation and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(cfg.Service.LogLevel)
		defer func() { _ = logger.Sync() }()

		if err := cfg.Validate(); err != nil {
			zap.S().Errorf("invalid configuration: %s", err)
			return err
		}

		zap.S().Info("Starting batch run")
		defer zap.S().Info("Batch run finished")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		runner := batch.NewRunner(cfg, store.NewAirtableStore(cfg))
		return runner.RunBatch(ctx)
	},
}
