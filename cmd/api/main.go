package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"consign-review-api/internal/cache"
	"consign-review-api/internal/config"
	"consign-review-api/internal/handler"
	"consign-review-api/internal/metrics"
	"consign-review-api/internal/middleware"
	"consign-review-api/internal/remote"
	"consign-review-api/internal/repository"
	"consign-review-api/internal/router"
	"consign-review-api/internal/service"
	"consign-review-api/internal/workflow"

	log "github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()
	setupLogging(cfg.Log)

	log.WithFields(log.Fields{
		"environment": cfg.App.Environment,
		"version":     cfg.App.Version,
	}).Info("Starting consign review API...")

	// Initialize cache (sessions, tokens, catalog lookups)
	var c cache.Cache
	readiness := map[string]handler.Pinger{}
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		c = redisCache
		readiness["redis"] = redisCache
		log.Info("Redis cache initialized")
	default:
		c = cache.NewMemoryCache()
		log.Info("Memory cache initialized")
	}
	defer c.Close()

	// Initialize audit repository based on config
	auditRepo, err := repository.NewAuditRepository(cfg.Audit)
	if err != nil {
		log.WithError(err).WithField("type", cfg.Audit.Type).Fatal("Failed to initialize audit repository")
	}
	defer auditRepo.Close()
	log.WithField("type", cfg.Audit.Type).Info("Audit repository initialized")

	// Platform API client
	client := remote.New(remote.Config{
		BaseURL:      cfg.Remote.BaseURL,
		Timeout:      cfg.Remote.Timeout,
		BulkheadSize: cfg.Remote.BulkheadSize,
		BulkheadWait: cfg.Remote.BulkheadWait,
		Breaker: remote.BreakerSettings{
			MinRequests:  cfg.Remote.BreakerRequests,
			FailureRatio: cfg.Remote.BreakerRatio,
			Interval:     cfg.Remote.BreakerInterval,
			Timeout:      cfg.Remote.BreakerTimeout,
		},
	})

	// Initialize services
	dispatcher := workflow.NewDispatcher(client)
	masterItems := workflow.NewMasterItems(client, c, workflow.MasterItemsConfig{
		ListTTL:     cfg.Cache.MasterItemTTL,
		CategoryTTL: cfg.Cache.CategoryTTL,
	})
	reviewService := service.NewReviewService(client, dispatcher, masterItems, c, auditRepo, service.ReviewConfig{
		SessionTTL: cfg.Cache.SessionTTL,
		LockTTL:    cfg.DispatchLockTTL(),
	})
	tokenService := service.NewTokenService(c, cfg.Auth.TokenTTL)
	metrics.SetSessionCounter(reviewService.CountSessions)

	cleanup := service.NewCleanupScheduler(auditRepo, service.CleanupConfig{
		Retention:       cfg.Audit.Retention,
		CleanupInterval: cfg.Audit.CleanupInterval,
	})
	cleanup.Start()
	defer cleanup.Stop()

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version, readiness)
	reviewHandler := handler.NewReviewHandler(reviewService)
	authHandler := handler.NewAuthHandler(tokenService, client)
	adminHandler := handler.NewAdminHandler(handler.AdminConfig{
		Sessions:  reviewService,
		AuditRepo: auditRepo,
		Breakers:  client.BreakerStates,
		Cleanup:   cleanup.LastRun,
		DBType:    cfg.Audit.Type,
		CacheType: cfg.Cache.Type,
	})

	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Tokens:      tokenService,
		PublicPaths: router.PublicPaths,
	})

	// Create router
	r := router.New(router.Config{
		Handler:        healthHandler,
		ReviewHandler:  reviewHandler,
		AdminHandler:   adminHandler,
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.WithField("address", cfg.Server.Address()).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown error")
	}

	log.Info("Server stopped")
}

func setupLogging(cfg config.LogConfig) {
	if cfg.Format == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
}
