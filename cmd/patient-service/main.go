package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hine2110/dental-clinic-client-sub000/internal/patient"
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

	// Initialize Patient Service
	service := patient.New(cfg, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}

	// Start service in a goroutine
	go func() {
		logger.Infof("Starting Patient Service on port %s", port)
		if err := service.Start(":" + port); err != nil {
			logger.Fatalf("Failed to start Patient Service: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Patient Service...")
	if err := service.Stop(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("Patient Service stopped")
}
