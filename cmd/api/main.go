package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/BradenHooton/csm/internal/auth"
	"github.com/BradenHooton/csm/internal/background"
	"github.com/BradenHooton/csm/internal/config"
	"github.com/BradenHooton/csm/internal/handlers"
	"github.com/BradenHooton/csm/internal/metrics"
	middlewareCustom "github.com/BradenHooton/csm/internal/middleware"
	"github.com/BradenHooton/csm/internal/repositories"
	"github.com/BradenHooton/csm/internal/routes"
	"github.com/BradenHooton/csm/internal/services"
	"github.com/BradenHooton/csm/internal/setup"
	"github.com/BradenHooton/csm/internal/telemetry"
	pkghttp "github.com/BradenHooton/csm/pkg/http"
	pkglogger "github.com/BradenHooton/csm/pkg/logger"
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

	logger = pkglogger.NewJSON(os.Stdout, cfg.Server.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("storage", cfg.Storage.Backend),
	)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("failed to initialize tracing", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize storage
	store, err := repositories.Open(ctx, &cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to open storage", slog.Any("error", err))
		os.Exit(1)
	}
	if err := setup.Migrate(ctx, store, logger); err != nil {
		logger.Error("failed to migrate storage", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	userManager := repositories.NewUserManager(store.Users)
	alertRepo := repositories.NewAlertRepository(store.Alerts)
	emailRepo := repositories.NewEmailConfigRepository(store.EmailConfig)
	bundleRepo := repositories.NewSupportBundleRepository(store.SupportBundles)
	auditRepo := repositories.NewAuditLogRepository(store.AuditLogs)

	// Token revocation
	revocations, memoryRevocations, err := newRevocationStore(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to initialize token revocation", slog.Any("error", err))
		os.Exit(1)
	}

	emailSender, err := newEmailSender(ctx, cfg.Email, logger)
	if err != nil {
		logger.Error("failed to initialize email sender", slog.Any("error", err))
		os.Exit(1)
	}

	bundleStore, err := newBundleStore(ctx, cfg.SupportBundle, logger)
	if err != nil {
		logger.Error("failed to initialize support bundle store", slog.Any("error", err))
		os.Exit(1)
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.LoginDelayBase,
		RandomDelay: cfg.Auth.LoginDelayRandom,
	})

	// Initialize services
	auditService := services.NewAuditService(auditRepo, logger)
	emailService := services.NewEmailService(emailRepo, emailSender, cfg.Email.FromAddress, auditService, logger)
	userService := services.NewUserService(userManager, auditService, logger)
	alertService := services.NewAlertService(alertRepo, emailService, auditService, logger)
	bundleService := services.NewSupportBundleService(bundleRepo, alertRepo, auditRepo, userManager, bundleStore, auditService, logger)
	authService := services.NewAuthService(userManager, tokenManager, revocations, timingDelay, auditService, logger)

	// Background retention
	var revocationPurger background.RevocationPurger
	if memoryRevocations != nil {
		revocationPurger = memoryRevocations
	}
	retentionManager := background.NewRetentionManager(auditService, bundleService, revocationPurger, background.RetentionConfig{
		AuditLogAge:      time.Duration(cfg.Retention.AuditLogDays) * 24 * time.Hour,
		SupportBundleAge: time.Duration(cfg.Retention.SupportBundleDays) * 24 * time.Hour,
		Interval:         cfg.Retention.CleanupInterval,
	}, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(registry)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.CORSAllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middlewareCustom.Metrics)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	// Register routes
	routes.RegisterRoutes(router, routes.Handlers{
		Users:         handlers.NewUserHandler(userService),
		Alerts:        handlers.NewAlertHandler(alertService),
		Email:         handlers.NewEmailHandler(emailService),
		SupportBundle: handlers.NewSupportBundleHandler(bundleService),
		Audit:         handlers.NewAuditHandler(auditService),
		Auth:          handlers.NewAuthHandler(authService),
		Health:        handlers.NewHealthHandler(store, store.Backend, logger),
		Metrics:       metrics.Handler(registry),
	}, routes.Options{
		TokenManager:   tokenManager,
		Revocations:    revocations,
		Users:          userManager,
		LoginRateLimit: cfg.Server.LoginRateLimit,
		IPConfig:       &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies},
		Logger:         logger,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start retention task
	retentionCtx, retentionCancel := context.WithCancel(ctx)
	defer retentionCancel()

	go retentionManager.Start(retentionCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	retentionCancel()
	retentionManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	exitCode := 0
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		exitCode = 1
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", slog.Any("error", err))
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Error("storage close error", slog.Any("error", err))
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	logger.Info("server stopped gracefully")
}

// newRevocationStore uses Redis when REDIS_URL is set. The memory store is
// also returned so the retention task can purge it.
func newRevocationStore(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (auth.RevocationStore, *auth.MemoryRevocationStore, error) {
	if cfg.URL == "" {
		logger.Warn("REDIS_URL not set, revoked tokens are kept in memory")
		mem := auth.NewMemoryRevocationStore()
		return mem, mem, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("token revocation backed by redis", slog.String("addr", opts.Addr))
	return auth.NewRedisRevocationStore(client), nil, nil
}

func newEmailSender(ctx context.Context, cfg config.EmailConfig, logger *slog.Logger) (services.EmailSender, error) {
	if !cfg.Enabled {
		logger.Info("email delivery disabled, messages are logged only")
		return services.NewLogEmailSender(logger), nil
	}
	return services.NewSESEmailSender(ctx, cfg.Region, logger)
}

func newBundleStore(ctx context.Context, cfg config.SupportBundleConfig, logger *slog.Logger) (services.BundleStore, error) {
	if cfg.Bucket == "" {
		logger.Info("support bundles stored on local disk", slog.String("dir", cfg.LocalDir))
		return services.NewFileBundleStore(cfg.LocalDir), nil
	}
	logger.Info("support bundles stored in s3", slog.String("bucket", cfg.Bucket))
	return services.NewS3BundleStore(ctx, cfg)
}
