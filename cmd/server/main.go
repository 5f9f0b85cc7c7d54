package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/ZanzyTHEbar/karten-melder/docs"
	"github.com/ZanzyTHEbar/karten-melder/internal/config"
	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/ZanzyTHEbar/karten-melder/internal/feedback"
	"github.com/ZanzyTHEbar/karten-melder/internal/handlers"
	"github.com/ZanzyTHEbar/karten-melder/internal/middleware"
	"github.com/ZanzyTHEbar/karten-melder/internal/monitoring"
	"github.com/ZanzyTHEbar/karten-melder/internal/plz"
	"github.com/ZanzyTHEbar/karten-melder/internal/privacy"
	"github.com/ZanzyTHEbar/karten-melder/internal/ranking"
	"github.com/ZanzyTHEbar/karten-melder/internal/ratelimit"
	"github.com/ZanzyTHEbar/karten-melder/internal/reports"
	"github.com/ZanzyTHEbar/karten-melder/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// @title Karten-Melder API
// @version 1.0
// @description Community reports of advertising cards left on parked cars.
// @BasePath /
func main() {
	cfg, err := config.Load(getEnvOrDefault("CONFIG_FILE", "config.yaml"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := setupLogging(cfg, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, appLogger, clockwork.NewRealClock())
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Warm up ranking cache and start auto-refresh
	go func() {
		slog.Info("Warming up ranking cache")
		a.rankings.WarmCache(ctx)
		a.rankings.AutoRefresh(ctx, cfg.Rankings.RefreshInterval)
	}()

	// Retention cleanup (runs daily)
	go a.privacy.ScheduleCleanup(ctx, a.rankings.Invalidate)

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// app holds the wired services and the router
type app struct {
	router       *gin.Engine
	db           *database.DB
	rankings     *ranking.Service
	rankingCache *ranking.RankingCache
	privacy      *privacy.PrivacyService
	limiter      *ratelimit.RateLimiter
	redis        *ratelimit.RedisClient
	metrics      *monitoring.Metrics
}

// setupLogging builds the JSON logger and installs it as the slog default,
// so package-level slog calls and the request middleware share one output.
func setupLogging(cfg *config.Config, w io.Writer) *monitoring.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	appLogger := monitoring.NewLoggerTo(w, level)
	slog.SetDefault(appLogger.Logger)
	return appLogger
}

func newApp(ctx context.Context, cfg *config.Config, appLogger *monitoring.Logger, clock clockwork.Clock) (*app, error) {
	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := database.NewRepository(db)

	appMetrics := monitoring.NewMetrics()

	postal, err := plz.NewService(repo, clock)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load postal codes: %w", err)
	}

	rankingCache := ranking.NewRankingCache(cfg.Rankings.CacheTTL, clock, appMetrics)
	rankings := ranking.NewService(repo, rankingCache, clock,
		ranking.HomeView{Days: cfg.Rankings.RecentDays, Limit: cfg.Rankings.HomeLimit},
		ranking.HomeView{Days: 0, Limit: cfg.Rankings.HomeLimit},
	)

	// Redis is optional; the limiter falls back to memory without it
	redisClient, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Warn("Redis unavailable, continuing without it", "error", err)
	}
	limiter := ratelimit.NewRateLimiterWithClock(redisClient, ratelimit.Config{
		BurstMultiplier: cfg.RateLimit.BurstMultiplier,
	}, appMetrics, clock)

	securityConfig := security.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = cfg.AllowedOrigins
	securityConfig.RequestTimeout = cfg.RequestTimeout
	securityMiddleware := security.NewSecurityMiddleware(securityConfig)

	sessions := security.NewSessionManager(security.Credentials{
		Username: cfg.Admin.Username,
		Password: cfg.Admin.Password,
	}, cfg.Admin.JWTSecret, cfg.Admin.SessionTTL, clock)

	privacyService := privacy.NewService(repo, appMetrics, clock, cfg.RetentionDays)

	h := handlers.New(handlers.Deps{
		Reports:   reports.NewService(repo, postal, rankings, securityMiddleware, appMetrics, clock),
		Rankings:  rankings,
		Feedback:  feedback.NewService(repo, securityMiddleware, appMetrics, clock),
		Postal:    postal,
		Privacy:   privacyService,
		Sessions:  sessions,
		Snapshots: repo,
		Counter:   repo,
		Database:  db,
		Metrics:   appMetrics,
		Limiter:   limiter,
		Redis:     redisClient,
		Limits: handlers.Limits{
			Submissions: ratelimit.PerMinute(cfg.RateLimit.SubmissionsPerMin),
			Logins:      ratelimit.PerMinute(cfg.RateLimit.LoginsPerMin),
		},
		Clock: clock,
	})

	r, err := setupRouter(securityMiddleware, appMetrics, appLogger)
	if err != nil {
		limiter.Close()
		rankingCache.Close()
		db.Close()
		return nil, err
	}
	h.Register(r)

	return &app{
		router:       r,
		db:           db,
		rankings:     rankings,
		rankingCache: rankingCache,
		privacy:      privacyService,
		limiter:      limiter,
		redis:        redisClient,
		metrics:      appMetrics,
	}, nil
}

func setupRouter(sm *security.SecurityMiddleware, appMetrics *monitoring.Metrics, appLogger *monitoring.Logger) (*gin.Engine, error) {
	r := gin.New()

	if err := r.SetTrustedProxies(sm.Config().TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	// Monitoring first so every request is counted
	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))
	r.Use(monitoring.SecurityMonitoringMiddleware(appLogger, sm.Config().MaxBodyBytes))

	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	r.Use(sm.CORS())
	r.Use(sm.SecurityHeaders)
	r.Use(sm.RequestTimeout)
	r.Use(sm.ValidateContentType)
	r.Use(sm.LimitBody)
	r.Use(middleware.Compression(middleware.DefaultCompressionConfig()))

	return r, nil
}

// Close releases background workers and connections
func (a *app) Close() {
	a.limiter.Close()
	a.rankingCache.Close()
	errors.SafeClose(a.redis, "redis client")
	errors.SafeClose(a.db, "database")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
