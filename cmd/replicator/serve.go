package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	apiserver "github.com/antosikiss/replicator/internal/api_server"
	"github.com/antosikiss/replicator/internal/batch"
	"github.com/antosikiss/replicator/internal/config"
	"github.com/antosikiss/replicator/internal/store"
	"github.com/antosikiss/replicator/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP trigger server and the background watcher",
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

		zap.S().Info("Starting server")
		defer zap.S().Info("Server stopped")

		runner := batch.NewRunner(cfg, store.NewAirtableStore(cfg))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Errorf("creating listener: %s", err)
				return
			}
			if err := apiserver.New(cfg, runner, listener).Run(ctx); err != nil {
				zap.S().Errorf("running api server: %s", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Errorf("creating metrics listener: %s", err)
				return
			}
			if err := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener).Run(ctx); err != nil {
				zap.S().Errorf("running metrics server: %s", err)
			}
		}()

		go runner.Watch(ctx, cfg.Service.PollInterval)

		<-ctx.Done()
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
