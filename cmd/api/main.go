// Command api is the FurTag scan-notification API server.
//
// Usage:
//
//	furtag-api
//	API_PORT=8080 furtag-api

// @title FurTag Notification API
// @version 1.0.0
// @description Notifies pet owners when their pet's QR tag is scanned. Repeated scans within the throttle window are recorded but not re-notified.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/X-404JPG/furtagph/internal/api"
	"github.com/X-404JPG/furtagph/internal/config"
	"github.com/X-404JPG/furtagph/internal/db"
	"github.com/X-404JPG/furtagph/internal/mail"
	"github.com/X-404JPG/furtagph/internal/maintenance"
	"github.com/X-404JPG/furtagph/internal/postgres"
	"github.com/X-404JPG/furtagph/internal/scan"
	"github.com/X-404JPG/furtagph/internal/upload"

	_ "github.com/X-404JPG/furtagph/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Delivery transport, selected once per process and never swapped.
	mailer, err := mail.New(cfg)
	if err != nil {
		logger.Error("Failed to configure mail transport", "error", err)
		os.Exit(1)
	}
	if mailer == nil {
		logger.Warn("No mail transport configured; scans will not notify (MAIL_PROVIDER unset)")
	} else {
		logger.Info("Mail transport configured", "provider", cfg.MailProvider)
	}

	// Scan pipeline
	store := postgres.NewStore(pool.Pool)
	scanSvc := scan.NewService(store, mailer, cfg.ThrottleWindow, logger)
	scanHandler := scan.NewHandler(scanSvc, logger)

	// Image upload pass-through (optional)
	var uploadHandler *upload.Handler
	if cfg.UploadsEnabled() {
		uploader, err := upload.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			logger.Error("Failed to configure Cloudinary", "error", err)
			os.Exit(1)
		}
		uploadHandler = upload.NewHandler(uploader, logger)
		logger.Info("Image uploads enabled")
	} else {
		logger.Info("Image uploads disabled (no Cloudinary credentials)")
	}

	// Retention sweeper
	go maintenance.Start(ctx, store, cfg.ScanRetention, logger)

	// Create router
	router := api.NewRouter(pool, scanHandler, uploadHandler, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting FurTag Notification API",
			"addr", addr,
			"environment", cfg.Environment,
			"throttle_window", cfg.ThrottleWindow)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
