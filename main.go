package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pulseboard/internal/config"
	"pulseboard/internal/credentials"
	"pulseboard/internal/etl"
	"pulseboard/internal/handlers"
	"pulseboard/internal/httpx"
	"pulseboard/internal/scheduler"
	"pulseboard/internal/storage"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.Info("Starting Pulseboard metrics collection service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metric store: MySQL when a DSN is configured, in-memory otherwise.
	var store storage.Store
	if cfg.DatabaseDSN != "" {
		mysqlStore, err := storage.OpenMySQL(ctx, cfg.DatabaseDSN, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open database")
		}
		defer mysqlStore.Close()
		store = mysqlStore
		logger.Info("Using MySQL metric store")
	} else {
		store = storage.NewMemoryStore()
		logger.Warn("No DATABASE_DSN configured, using in-memory metric store")
	}

	credStore, err := credentials.NewFileStore(cfg.CredentialsPath, cfg.CredentialsKey, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open credential store")
	}

	orchestrator := etl.NewOrchestrator(credStore, store, httpx.Config{
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: cfg.RetryAttempts,
	}, logger)

	// Initialize handlers
	handler := handlers.New(store, credStore, orchestrator, logger)

	// Setup Gin router
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	handler.Register(router)

	// Daily collection cadence
	var sched *scheduler.Scheduler
	if cfg.EnableScheduler {
		sched = scheduler.New(orchestrator, logger)
		if err := sched.Start(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to start scheduler")
		}
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	if sched != nil {
		sched.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
