package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bbmovie/auth/internal/auth/cache"
	httpapi "github.com/bbmovie/auth/internal/auth/http"
	"github.com/bbmovie/auth/internal/auth/service"
	"github.com/bbmovie/auth/internal/auth/store"
	"github.com/bbmovie/auth/internal/auth/store/drivers/sqlite"
	"github.com/bbmovie/auth/pkg/cryptox"
	"github.com/bbmovie/auth/pkg/josex"
	"github.com/bbmovie/auth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db          store.Store
	rdb         *redis.Client
	revocations *cache.Revocations
	keys        *josex.KeyCache
	strategy    *josex.Strategy

	// Services
	authService         *service.AuthService
	keyRotationService  *service.KeyRotationService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Key-at-rest encryption and password pepper sources
	if cfg.MasterKeyPath != "" {
		cryptox.SetMasterKeyPath(cfg.MasterKeyPath)
	}
	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initRedis(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initTokenProviders(); err != nil {
		_ = app.db.Close()
		_ = app.rdb.Close()
		return nil, err
	}

	app.initServices()

	// First boot generates a signing key; later boots reload the stored set.
	if err := app.keyRotationService.EnsureActiveKey(context.Background()); err != nil {
		_ = app.db.Close()
		_ = app.rdb.Close()
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"provider", app.strategy.Active().Name(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.rdb.Close(); err != nil {
		app.logger.Error("error closing redis client", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initRedis connects the revocation cache and verifies the connection.
func (app *Application) initRedis() error {
	app.rdb = redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", app.cfg.RedisAddr, err)
	}

	app.revocations = cache.New(app.rdb, app.cfg.RevocationTTL)
	app.logger.Info("revocation cache connected", "addr", app.cfg.RedisAddr)
	return nil
}

// initTokenProviders builds the key cache, the three token providers, and
// the strategy with the configured provider active. After a restart the
// previous slot is empty; tokens from a pre-restart provider switch expire
// on their own within the access TTL.
func (app *Application) initTokenProviders() error {
	app.keys = josex.NewKeyCache(store.NewKeyStoreAdapter(app.db), app.cfg.RSABits)

	hmacProvider, err := app.buildHMACProvider()
	if err != nil {
		return err
	}

	strategy, err := josex.NewStrategy(app.cfg.Provider,
		josex.NewJWEProvider(ProviderRSAJWE, app.keys),
		josex.NewJWSProvider(ProviderRSAJWS, app.keys),
		hmacProvider,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize provider strategy: %w", err)
	}
	app.strategy = strategy

	return nil
}

// buildHMACProvider uses the configured secret when present, so HMAC tokens
// can survive a restart; otherwise the secret (and every HMAC token) is
// process-scoped.
func (app *Application) buildHMACProvider() (*josex.HMACProvider, error) {
	if app.cfg.HMACSecret != "" {
		return josex.NewHMACProviderWithSecret(ProviderHMACJWS, []byte(app.cfg.HMACSecret)), nil
	}

	p, err := josex.NewHMACProvider(ProviderHMACJWS)
	if err != nil {
		return nil, fmt.Errorf("failed to generate HMAC secret: %w", err)
	}
	return p, nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.authService = service.NewAuthService(
		app.db,
		app.revocations,
		app.strategy,
		app.cfg.Issuer,
		app.cfg.AccessTTL,
		app.cfg.RefreshTTL,
	)

	app.keyRotationService = service.NewKeyRotationService(
		app.db,
		app.keys,
		app.cfg.RSABits,
		app.cfg.KeyRetainFloor,
		app.cfg.KeyPruneGrace,
	)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.keyRotationService,
		app.logger,
		app.cfg.KeyRotateInterval,
		app.cfg.KeyPruneInterval,
		app.cfg.SessionSweepInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		app.strategy,
		BuildVersion,
		app.db,
		app.revocations,
		app.logger,
	)

	router.AuthService = app.authService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
