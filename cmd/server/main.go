package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/leaguekit/internal"
	"github.com/DukeRupert/leaguekit/internal/collab"
	"github.com/DukeRupert/leaguekit/internal/forms"
	"github.com/DukeRupert/leaguekit/internal/handler"
	"github.com/DukeRupert/leaguekit/internal/media"
	"github.com/DukeRupert/leaguekit/internal/metrics"
	"github.com/DukeRupert/leaguekit/internal/middleware"
	"github.com/DukeRupert/leaguekit/internal/pricing"
	"github.com/DukeRupert/leaguekit/internal/service"
	"github.com/DukeRupert/leaguekit/internal/storage"
	"github.com/DukeRupert/leaguekit/internal/worker"
)

// openStorage builds the configured storage provider. The returned closer
// releases its connections on shutdown.
func openStorage(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (storage.Storage, io.Closer, error) {
	switch cfg.StorageProvider {
	case storage.ProviderLocal:
		st, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: cfg.LocalStoragePath}, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	case storage.ProviderRedis:
		st, err := storage.NewRedisStorage(ctx, storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil

	case storage.ProviderPostgres:
		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("database ping failed: %w", err)
		}
		if err := internal.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database ready")
		return storage.NewPostgresStorage(db, logger), db, nil

	case storage.ProviderR2:
		st, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	default:
		logger.Warn("using in-memory storage; carts and drafts are lost on restart")
		return storage.NewMemoryStorage(), nil, nil
	}
}

// openCollaborator returns the HTTP collaborator client, or the in-process
// memory backend when no base URL is configured.
func openCollaborator(cfg *internal.Config, logger *slog.Logger) (collab.Client, error) {
	if cfg.CollabBaseURL == "" {
		logger.Warn("COLLAB_BASE_URL not set, using in-memory collaborator backend")
		return collab.NewMemoryBackend(logger), nil
	}
	return collab.NewHTTPClient(collab.HTTPConfig{
		BaseURL: cfg.CollabBaseURL,
		Timeout: cfg.CollabTimeout,
	}, logger)
}

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	st, closer, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	client, err := openCollaborator(cfg, logger)
	if err != nil {
		return fmt.Errorf("collaborator initialization failed: %w", err)
	}

	repo, err := forms.NewBundledRepository(logger)
	if err != nil {
		return fmt.Errorf("template loading failed: %w", err)
	}
	logger.Info("Templates loaded", "count", len(repo.List()))

	// Initialize services
	registration := service.NewRegistrationService(repo, client, st, service.Config{
		LoadTimeout: cfg.SessionLoadTimeout,
		Pricing: pricing.Defaults{
			KitBasePrice: cfg.KitBasePrice,
			EntryBaseFee: cfg.EntryBaseFee,
		},
		Media: media.NewRecompressor(cfg.ImageRecompressThreshold),
	}, logger)

	// Initialize middleware
	isSecure := cfg.IsSecure()
	clientMw := middleware.NewClientMiddleware(logger, isSecure)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure, cfg.AllowedOrigins)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuth := middleware.NewBasicAuthMiddleware("metrics", cfg.MetricsUsername, cfg.MetricsPassword)
	adminAuth := middleware.NewBasicAuthMiddleware("admin", cfg.AdminUsername, cfg.AdminPassword)
	if !adminAuth.Enabled() {
		logger.Warn("ADMIN_USERNAME/ADMIN_PASSWORD not set, price settings writes are unprotected")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, 10*time.Minute, logger)
	defer limiter.Close()
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, logger)

	// Initialize handlers
	formHandler := handler.NewFormHandler(registration, logger)
	cartHandler := handler.NewCartHandler(registration, logger)
	settingsHandler := handler.NewSettingsHandler(registration, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	formHandler.RegisterRoutes(mux, rateLimitMw.Limit)
	cartHandler.RegisterRoutes(mux, rateLimitMw.Limit)
	settingsHandler.RegisterRoutes(mux, middleware.Stack(rateLimitMw.Limit, adminAuth.Handler))

	// Metrics and logging sit inside WithClient: they see the client id and
	// the request the mux stamps with its matched pattern.
	stack := middleware.Stack(
		securityMw.Handler,
		clientMw.WithClient,
		metrics.Middleware,
		loggingMw.Handler,
	)

	// ==========================================================================
	// Background session sweep
	// ==========================================================================

	bg, err := worker.New(worker.DefaultConfig(), logger)
	if err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}
	sweep := worker.NewTask("session_sweep", func(ctx context.Context) error {
		if n := registration.Sweep(cfg.SessionIdleTimeout); n > 0 {
			logger.Info("Dropped idle sessions", "clients", n)
		}
		return nil
	})
	if err := bg.Register(sweep, cfg.SessionSweepEvery); err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}
	bg.Start(ctx)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           stack(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	bg.Stop()

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
