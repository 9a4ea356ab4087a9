package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/core"
	"github.com/mikey/email-guardian/internal/di"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	ingestService core.IngestService,
	storage core.Storage,
	reviewer core.CaseReviewer,
) error {
	defer logger.Sync()

	// Start the ingest service
	if err := ingestService.Start(); err != nil {
		logger.Fatal("Failed to start ingest service", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the ingest service
	if err := ingestService.Stop(); err != nil {
		logger.Error("Failed to stop ingest service", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := reviewer.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close case reviewer", zap.Error(err))
		}
	}

	if err := storage.Close(); err != nil {
		logger.Error("Failed to close storage", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
