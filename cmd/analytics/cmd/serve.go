package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trade-analytics-go/internal/analytics"
	"trade-analytics-go/internal/api"
	"trade-analytics-go/internal/goals"
	"trade-analytics-go/internal/mll"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analytics API and sweep active goals",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	port := a.cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	statistics := analytics.NewService(a.store, a.log, analytics.Options{CalmarMinDays: a.cfg.Analytics.CalmarMinDays})
	recompute := mll.NewService(a.store, a.log, a.retryPolicy(), a.cfg.Recompute.Workers)
	goalService := goals.NewService(a.store, a.log)

	handler := api.NewAPIHandler(a.log, statistics, recompute, a.store, goalService)
	server := api.NewServer(port, handler, a.log)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigchan:
			a.log.Info("Shutdown signal received, gracefully shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	server.Start()

	sweeper := goals.NewSweeper(goalService, a.log, time.Duration(a.cfg.Goals.SweepInterval)*time.Second)
	sweeper.Run(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Stop(shutdownCtx); err != nil {
		a.log.Error("API server shutdown failed", zap.Error(err))
		return err
	}

	a.log.Info("Analytics server has been shut down.")
	return nil
}
