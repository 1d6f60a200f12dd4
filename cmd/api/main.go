package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/palisadehq/palisade/internal/auth"
	"github.com/palisadehq/palisade/internal/background"
	"github.com/palisadehq/palisade/internal/config"
	"github.com/palisadehq/palisade/internal/database"
	"github.com/palisadehq/palisade/internal/handlers"
	middlewareCustom "github.com/palisadehq/palisade/internal/middleware"
	"github.com/palisadehq/palisade/internal/models"
	"github.com/palisadehq/palisade/internal/repositories"
	"github.com/palisadehq/palisade/internal/routes"
	"github.com/palisadehq/palisade/internal/services"
	pkghttp "github.com/palisadehq/palisade/pkg/http"
	pkglogger "github.com/palisadehq/palisade/pkg/logger"
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

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	attemptRepo := repositories.NewAttemptRepository(db)
	lockoutRepo := repositories.NewLockoutRepository(db)
	policyRepo := repositories.NewPolicyRepository(db)
	requestLogRepo := repositories.NewRequestLogRepository(db)

	// Security audit logging
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Lockout engine
	lockoutService := services.NewLockoutService(
		attemptRepo,
		lockoutRepo,
		policyRepo,
		services.LockoutConfig{
			MaxFailedAttempts:      cfg.Security.MaxFailedAttempts,
			LockoutDurationMinutes: cfg.Security.LockoutDurationMinutes,
			WindowMinutes:          cfg.Security.WindowMinutes,
			DecisionRetries:        cfg.Security.DecisionRetries,
		},
		logger,
		auditLogger,
	)

	// Store-backed rate limiter
	rateLimitService := services.NewRateLimitService(requestLogRepo, logger, auditLogger, nil)

	// Policy management
	policyService := services.NewPolicyService(policyRepo, models.SecurityPolicy{
		MaxFailedAttempts:      cfg.Security.MaxFailedAttempts,
		LockoutDurationMinutes: cfg.Security.LockoutDurationMinutes,
		WindowMinutes:          cfg.Security.WindowMinutes,
	}, logger, auditLogger)

	// Identity-provider token verification
	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret)

	// Cleanup manager for storage hygiene
	cleanupManager := background.NewCleanupManager(
		lockoutService,
		attemptRepo,
		rateLimitService,
		logger,
		cfg.Security.CleanupInterval,
	)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	securityHandler := handlers.NewSecurityHandler(
		lockoutService,
		rateLimitService,
		handlers.RateLimits{
			LoginMaxRequests:  cfg.RateLimit.LoginMaxRequests,
			StatusMaxRequests: cfg.RateLimit.StatusMaxRequests,
			Window:            time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute,
		},
		ipConfig,
	)
	policyHandler := handlers.NewPolicyHandler(policyService)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, securityHandler, policyHandler, verifier,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute})

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
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
