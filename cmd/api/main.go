package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/deviceguard/internal/auth"
	"github.com/BradenHooton/deviceguard/internal/background"
	"github.com/BradenHooton/deviceguard/internal/config"
	"github.com/BradenHooton/deviceguard/internal/database"
	"github.com/BradenHooton/deviceguard/internal/handlers"
	middlewareCustom "github.com/BradenHooton/deviceguard/internal/middleware"
	"github.com/BradenHooton/deviceguard/internal/repositories"
	"github.com/BradenHooton/deviceguard/internal/routes"
	"github.com/BradenHooton/deviceguard/internal/services"
	pkghttp "github.com/BradenHooton/deviceguard/pkg/http"
	pkglogger "github.com/BradenHooton/deviceguard/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("policy", cfg.Guard.Policy),
		slog.Int("max_attempts", cfg.Guard.MaxAttempts),
		slog.Duration("block_duration", cfg.Guard.BlockDuration))

	// Initialize attempt store
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, closeStore, err := openStore(startupCtx, cfg, logger)
	startupCancel()
	if err != nil {
		logger.Error("failed to open attempt store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	// Records the primary store failed to persist are held here until it recovers
	fallback := repositories.NewMemoryAttemptStore()

	pruners := map[string]background.Pruner{"fallback": fallback}
	if mem, ok := store.(*repositories.MemoryAttemptStore); ok {
		pruners["session"] = mem
	}
	cleanupManager := background.NewCleanupManager(pruners, logger, cfg.Guard.CleanupInterval, retentionFor(cfg.Guard))

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	})
	verifier := auth.NewCredentialVerifier(cfg.Auth.Username, cfg.Auth.PasswordHash, timingDelay)

	// Security alerts
	alerts := services.MultiAlertNotifier{services.NewLogAlertNotifier(logger)}
	if cfg.Alert.Enabled() {
		sesCtx, sesCancel := context.WithTimeout(context.Background(), 10*time.Second)
		sesNotifier, err := services.NewSESAlertNotifier(sesCtx, cfg.Alert.AWSRegion, cfg.Alert.EmailFrom, cfg.Alert.EmailTo, cfg.Alert.Application, logger)
		sesCancel()
		if err != nil {
			logger.Error("failed to initialize alert email service", slog.Any("error", err))
			os.Exit(1)
		}
		alerts = append(alerts, sesNotifier)
	}

	auditLogger := pkglogger.NewAuditLogger(logger, cfg.Server.Env)

	guardService := services.NewGuardService(
		store,
		fallback,
		verifier,
		alerts,
		services.SystemClock{},
		services.GuardConfig{
			MaxAttempts:   cfg.Guard.MaxAttempts,
			BlockDuration: cfg.Guard.BlockDuration,
			WarnAfter:     cfg.Guard.WarnAfter,
			StoreTimeout:  cfg.Guard.StoreTimeout,
		},
		logger,
		auditLogger,
	)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	guardHandler := handlers.NewGuardHandler(guardService, ipConfig)

	var checker handlers.HealthChecker
	if hc, ok := store.(handlers.HealthChecker); ok {
		checker = hc
	}
	healthHandler := handlers.NewHealthHandler(checker, cfg.Guard.Policy, logger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, guardHandler, healthHandler, middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Server.AuthRequestsPerMinute,
		IPConfig:          ipConfig,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// openStore returns the attempt store the configured policy calls for, and a
// function releasing its resources
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.AttemptStore, func(), error) {
	if cfg.Guard.Policy == config.PolicySession {
		logger.Info("using in-memory attempt store; blocks last for the process lifetime at most")
		return repositories.NewMemoryAttemptStore(), func() {}, nil
	}

	switch cfg.Guard.Store {
	case config.StoreSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return &sqliteStore{repositories.NewSQLiteAttemptRepository(db), db}, db.Close, nil

	default:
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return &postgresStore{repositories.NewDeviceAttemptRepository(db), db}, db.Close, nil
	}
}

// postgresStore pairs the repository with its pool so /health can check it
type postgresStore struct {
	*repositories.DeviceAttemptRepository
	db *database.DB
}

func (s *postgresStore) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

type sqliteStore struct {
	*repositories.SQLiteAttemptRepository
	db *database.SQLiteDB
}

func (s *sqliteStore) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// retentionFor keeps clear in-memory records at least as long as a block lasts
func retentionFor(g config.GuardConfig) time.Duration {
	if g.MemoryRetention < g.BlockDuration {
		return g.BlockDuration
	}
	return g.MemoryRetention
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
