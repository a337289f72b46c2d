package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/optm/optm/internal/config"
	"github.com/optm/optm/internal/domain/optm"
	"github.com/optm/optm/internal/platform/auth"
	"github.com/optm/optm/internal/platform/cache"
	"github.com/optm/optm/internal/platform/db"
	"github.com/optm/optm/internal/platform/events"
	"github.com/optm/optm/internal/platform/metrics"
	"github.com/optm/optm/internal/platform/middleware"
	"github.com/optm/optm/internal/platform/openapi"
	"github.com/optm/optm/internal/platform/reporting"
)

const version = "0.1.0"

func newLogger(env, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(lvl).With().Timestamp().Str("service", "optm-server").Logger()
}

// authMiddleware picks token validation for the resolved auth mode. The public
// health and metrics endpoints are never authenticated.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	switch cfg.ResolvedAuthMode() {
	case config.AuthModeDevelopment:
		return auth.DevAuthMiddleware()
	case config.AuthModeSharedSecret:
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		})
	default:
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		})
	}
}

// app holds everything the HTTP surface is assembled from.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pool     *pgxpool.Pool
	metrics  *metrics.Metrics
	analysis *optm.Handler
	reports  *reporting.Handler
	checks   []db.Check
}

func (a *app) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	if a.metrics != nil {
		e.Use(a.metrics.Middleware())
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, db.TenantHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(a.cfg.BodyLimit, a.cfg.AnalysisBodyLimit))
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout, "/metrics"))
	e.Use(authMiddleware(a.cfg))
	e.Use(db.TenantMiddleware(a.pool, a.cfg.DefaultTenant, auth.AuthSkipper))
	e.Use(middleware.Audit(a.logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(a.pool, a.checks...))
	if a.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
	}))
	a.analysis.RegisterRoutes(apiV1)
	a.reports.RegisterRoutes(apiV1)
	openapi.NewGenerator(e, "/api/v1", version, "").RegisterRoutes(e)

	return e
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		logger.Warn().Msg("development auth mode: unauthenticated requests are treated as an admin of the default clinic")
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	svc := optm.NewService(optm.NewSnapshotRepoPG(pool), optm.NewReportRepoPG(pool))
	svc.SetLogger(logger.With().Str("component", "analysis").Logger())

	var checks []db.Check
	if cfg.CacheEnabled() {
		client, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			// The cache is an optimisation; run without it.
			logger.Warn().Err(err).Msg("redis unavailable, analysis cache disabled")
		} else {
			defer client.Close()
			svc.SetCache(cache.New(client, cache.WithDefaultTTL(cfg.AnalysisCacheTTL)), cfg.AnalysisCacheTTL)
			checks = append(checks, db.Check{Name: "cache", Ping: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}})
			logger.Info().Dur("ttl", cfg.AnalysisCacheTTL).Msg("analysis cache enabled")
		}
	}

	if cfg.EventsEnabled() {
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer producer.Close()
		svc.SetPublisher(producer)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("analysis events enabled")
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New(true)
		svc.SetRecorder(m)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		metrics:  m,
		analysis: optm.NewHandler(svc),
		reports:  reporting.NewHandler(pool),
		checks:   checks,
	}
	e := a.routes()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
