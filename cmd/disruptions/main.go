package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/rajasatyajit/TransitDisruptions/config"
	"github.com/rajasatyajit/TransitDisruptions/internal/api"
	"github.com/rajasatyajit/TransitDisruptions/internal/classifier"
	"github.com/rajasatyajit/TransitDisruptions/internal/database"
	"github.com/rajasatyajit/TransitDisruptions/internal/dedup"
	"github.com/rajasatyajit/TransitDisruptions/internal/logger"
	"github.com/rajasatyajit/TransitDisruptions/internal/metrics"
	middlewares "github.com/rajasatyajit/TransitDisruptions/internal/middleware"
	"github.com/rajasatyajit/TransitDisruptions/internal/pipeline"
	"github.com/rajasatyajit/TransitDisruptions/internal/ratelimit"
	"github.com/rajasatyajit/TransitDisruptions/internal/store"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting TransitDisruptions service",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
	)

	// Initialize metrics
	metrics.Init(cfg.Metrics.Enabled)
	if cfg.Metrics.Enabled {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close(ctx)
	if db.IsConfigured() {
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to apply schema", "error", err)
		}
	}

	eventStore := store.New(db)

	// Redis backs both message dedup and API rate limiting when configured
	var (
		deduper   dedup.Deduper = dedup.NewMemory(cfg.Redis.DedupTTL)
		rateLimit               = middlewares.RateLimit(cfg.API.RateLimitRPM)
	)
	if cfg.Redis.URL != "" {
		client, err := ratelimit.Connect(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "error", err)
		}
		limiter := ratelimit.NewManager(client, cfg.Redis.KeyPrefix, cfg.API.RateLimitRPM)
		defer limiter.Close()

		deduper = dedup.NewRedis(client, cfg.Redis.KeyPrefix, cfg.Redis.DedupTTL)
		rateLimit = middlewares.RedisRateLimit(limiter)
		logger.Info("Redis enabled", "prefix", cfg.Redis.KeyPrefix)
	}

	cls, err := classifier.FromConfig(cfg.Extractor)
	if err != nil {
		logger.Fatal("Failed to initialize classifier", "error", err)
	}

	sources, err := pipeline.BuildSources(cfg.Sources, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		logger.Fatal("Failed to build sources", "error", err)
	}

	// Initialize pipeline
	eventPipeline := pipeline.New(eventStore, cls, deduper, sources, cfg.Pipeline)

	// Start pipeline in background
	if cfg.Pipeline.Enabled {
		go func() {
			if err := eventPipeline.Run(ctx); err != nil {
				logger.Error("Pipeline error", "error", err)
			}
		}()
	}

	adminHash, err := adminSecretHash(cfg.Admin)
	if err != nil {
		logger.Fatal("Failed to hash admin secret", "error", err)
	}
	loc, err := time.LoadLocation(cfg.Extractor.Timezone)
	if err != nil {
		logger.Fatal("Failed to load time zone", "error", err)
	}

	// Setup HTTP server
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.ReadTimeout))
	r.Use(middlewares.Security)
	r.Use(middlewares.CORS(cfg.API.AllowedOrigins))
	r.Use(rateLimit)

	// Initialize API handlers
	apiHandler := api.NewHandler(eventStore, cls, eventPipeline, api.Options{
		API:             cfg.API,
		AdminSecretHash: adminHash,
		Location:        loc,
		Version:         Version,
		BuildTime:       BuildTime,
		GitCommit:       GitCommit,
	})
	apiHandler.RegisterRoutes(r)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

// adminSecretHash returns the configured bcrypt hash, hashing a plain
// secret when only that is set. No secret disables the admin routes.
func adminSecretHash(cfg config.AdminConfig) ([]byte, error) {
	if cfg.SecretHash != "" {
		return []byte(cfg.SecretHash), nil
	}
	if cfg.Secret == "" {
		return nil, nil
	}
	return bcrypt.GenerateFromPassword([]byte(cfg.Secret), bcrypt.DefaultCost)
}

func startMetricsServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", "address", addr, "path", path)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", "error", err)
	}
}
