// Package main provides the background sync worker entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trade-history-sync/internal/app"
	"github.com/trade-history-sync/internal/config"
	"github.com/trade-history-sync/internal/logging"
)

func main() {
	fmt.Println("Trade History Sync Worker")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if len(cfg.Sync.Leagues) == 0 {
		log.Fatalf("SYNC_LEAGUES is empty, nothing to synchronize")
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	syncWorker, err := a.NewWorker()
	if err != nil {
		logger.WithError(err).Fatal("Failed to create sync worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := syncWorker.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start sync worker")
	}

	logger.WithFields(map[string]interface{}{
		"leagues": cfg.Sync.Leagues,
		"locale":  string(a.Locale()),
	}).Info("Sync worker started")

	// Set up graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("Shutdown signal received, stopping worker")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()

	if err := syncWorker.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error stopping sync worker")
	}

	status := syncWorker.GetStatus()
	logger.WithFields(map[string]interface{}{
		"passes":      status.Passes,
		"rateLimited": status.RateLimited,
		"failures":    status.Failures,
	}).Info("Sync worker stopped")
}
