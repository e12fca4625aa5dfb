package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/docmatch-backend/internal/api"
	"github.com/eshaffer321/docmatch-backend/internal/application/service"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/config"
)

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	Port            int
	CleanupInterval time.Duration
}

func newServeCommand(global *GlobalFlags) *cobra.Command {
	flags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := global.LoadConfig()
			if flags.Port > 0 {
				cfg.Server.Port = flags.Port
			}
			return RunServe(cfg, flags, global.NewLogger(cfg, os.Stdout, "api"))
		},
	}

	cmd.Flags().IntVar(&flags.Port, "port", 0, "port to listen on (0 = config)")
	cmd.Flags().DurationVar(&flags.CleanupInterval, "cleanup-interval", 5*time.Minute, "how often stale reconcile jobs are checked")

	return cmd
}

// RunServe runs the API server.
func RunServe(cfg *config.Config, flags *ServeFlags, logger *slog.Logger) error {
	store, err := openStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	reconciler := service.NewReconcileService(cfg, store, logger)
	reconciler.StartBackgroundCleanup(flags.CleanupInterval)
	defer reconciler.StopBackgroundCleanup()

	server := api.NewServer(api.ConfigFrom(cfg.Server), store, reconciler, logger)

	// Handle graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
