package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/rxintake/rxintake/internal/domain/admin"
	"github.com/rxintake/rxintake/internal/domain/intake"
	"github.com/rxintake/rxintake/internal/domain/review"
	"github.com/rxintake/rxintake/internal/platform/auth"
	"github.com/rxintake/rxintake/internal/platform/blobstore"
	"github.com/rxintake/rxintake/internal/platform/db"
	"github.com/rxintake/rxintake/internal/platform/middleware"
	"github.com/rxintake/rxintake/internal/platform/session"
)

// routerDeps is everything newRouter mounts.
type routerDeps struct {
	logger      zerolog.Logger
	corsOrigins []string
	uploadLimit int64
	rateLimit   middleware.RateLimitConfig

	pinger    db.Pinger
	poolStats func() *db.PoolStats
	memStore  *blobstore.InMemory

	intake    *intake.Service
	review    *review.Service
	directory *admin.Directory
	authn     session.Authenticator
	issuer    *auth.TokenIssuer
	revoked   auth.Revocations
}

func newRouter(d routerDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.corsOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(d.uploadLimit))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.pinger != nil {
		e.GET("/health/db", db.HealthHandler(d.pinger, d.poolStats))
	}
	if d.memStore != nil {
		d.memStore.RegisterRoutes(e.Group("/storage"))
	}

	apiV1 := e.Group("/api/v1")
	intake.NewHandler(d.intake).RegisterRoutes(apiV1)

	gate := auth.RequireSession(d.issuer, d.revoked)
	protected := apiV1.Group("/admin", gate)
	review.NewHandler(d.review).RegisterRoutes(protected)
	admin.NewHandler(d.directory, d.authn, d.issuer, d.revoked).
		RegisterRoutes(apiV1, protected, gate, middleware.RateLimit(d.rateLimit))

	return e
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	// Config
	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg.Env, os.Stdout)
	if cfg.IsDev() {
		logger.Warn().Msg("running in development mode; set ENV=production for deployments")
	}

	ctx := context.Background()
	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize dependencies")
	}
	defer d.Close()
	logger.Info().Str("storage", cfg.StorageBackend).Msg("connected to database")

	key, err := cfg.SigningKey()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve signing key")
	}
	if cfg.SessionSigningKey == "" {
		logger.Warn().Msg("SESSION_SIGNING_KEY not set; using an ephemeral key")
	}
	issuer, err := auth.NewTokenIssuer(key, cfg.SessionTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token issuer")
	}
	revoked, closeRevoked, err := buildRevocations(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open revocation store")
	}
	defer closeRevoked()
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set; token revocations are lost on restart")
	}

	limit, _ := cfg.UploadLimit()
	e := newRouter(routerDeps{
		logger:      logger,
		corsOrigins: cfg.CORSOrigins,
		uploadLimit: limit,
		rateLimit:   middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, BurstSize: cfg.RateLimitBurst},
		pinger:      d.pool,
		poolStats:   func() *db.PoolStats { return db.StatsOf(d.pool) },
		memStore:    d.memStore,
		intake:      d.intake,
		review:      d.review,
		directory:   d.directory,
		authn:       d.authn,
		issuer:      issuer,
		revoked:     revoked,
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
