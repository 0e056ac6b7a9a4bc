package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hine2110/dental-clinic-client-sub000/internal/billing"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize Billing Service
	service := billing.New(cfg, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	// Start service in a goroutine
	go func() {
		logger.Infof("Starting Billing Service on port %s", port)
		if err := service.Start(":" + port); err != nil {
			logger.Fatalf("Failed to start Billing Service: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Billing Service...")
	if err := service.Stop(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("Billing Service stopped")
}
