package app

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

	goredis "github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/authflow/internal/auth/cache"
	"github.com/aussiebroadwan/authflow/internal/auth/events"
	"github.com/aussiebroadwan/authflow/internal/auth/events/kafka"
	httpapi "github.com/aussiebroadwan/authflow/internal/auth/http"
	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
	redisstore "github.com/aussiebroadwan/authflow/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/authflow/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	redis      goredis.UniversalClient
	cache      *cache.RedisBackend
	keyManager *jwtx.KeyManager
	hasher     cryptox.PasswordHasher
	bus        *events.Bus
	kafka      *kafka.Forwarder // nil when no brokers are configured

	// Services
	tokenService        *service.TokenService
	actionIssuer        *service.ActionTokenIssuer
	actionService       *service.ActionService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
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

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.PasswordHasher{Pepper: pepper}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	keyManager, err := InitAuthKeys(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		_ = app.redis.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	app.initEvents()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown drains HTTP traffic first, then stops background work and closes
// the stores the handlers were using.
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

	var errs []error
	if app.kafka != nil {
		if err := app.kafka.Close(); err != nil {
			app.logger.Error("error closing kafka writer", "error", err)
			errs = append(errs, err)
		}
	}
	if err := app.redis.Close(); err != nil {
		app.logger.Error("error closing redis client", "error", err)
		errs = append(errs, err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens SQLite and applies migrations
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
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

// initCache connects to Redis, which backs the DTO cache and action requests.
func (app *Application) initCache() error {
	app.redis = goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    []string{app.cfg.RedisAddr},
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})
	app.cache = cache.NewRedisBackend(app.redis)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.cache.Ping(ctx); err != nil {
		_ = app.redis.Close()
		return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.RedisAddr, err)
	}

	app.logger.Info("redis connected", "addr", app.cfg.RedisAddr, "db", app.cfg.RedisDB)
	return nil
}

// initEvents builds the bus and its external forwarder.
func (app *Application) initEvents() {
	app.bus = events.NewBus()

	// Without brokers the log stands in for the notification surface
	if len(app.cfg.KafkaBrokers) == 0 {
		app.bus.AddForwarder(events.LogForwarder{})
		app.logger.Warn("no kafka brokers configured, events are only logged")
		return
	}

	writer := kafka.NewWriter(app.cfg.KafkaBrokers, app.cfg.KafkaTopic)
	app.kafka = kafka.NewForwarder(writer, app.cfg.EventSource)
	app.bus.AddForwarder(app.kafka)
	app.logger.Info("forwarding events to kafka", "brokers", app.cfg.KafkaBrokers, "topic", app.cfg.KafkaTopic)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Store:      app.db,
		Bus:        app.bus,
		Hasher:     app.hasher,
		KeyManager: app.keyManager,
		Issuer:     app.cfg.Issuer,
		TTLs:       app.cfg.TokenTTLs,
		RoleFilter: app.cfg.RoleFilter,
	}

	app.actionIssuer = &service.ActionTokenIssuer{
		Store:      app.db,
		Bus:        app.bus,
		KeyManager: app.keyManager,
		Issuer:     app.cfg.Issuer,
		TTLs:       app.cfg.TokenTTLs,
	}

	app.actionService = &service.ActionService{
		Store:          app.db,
		ActionRequests: redisstore.NewActionRequests(app.cache, app.cfg.ActionRequestTTL),
		Bus:            app.bus,
		Hasher:         app.hasher,
		Verifier:       app.keyManager.Verifier,
	}

	app.userService = &service.UserService{
		Store:   app.db,
		Bus:     app.bus,
		Hasher:  app.hasher,
		Cache:   service.NewUserCache(app.cache, app.cfg.CacheDefaultTTL),
		Actions: app.actionIssuer,
	}

	// Sagas need both services, so they are registered last
	service.RegisterSagas(app.bus, app.userService, app.actionService)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.Cache = app.cache
	router.TokenService = app.tokenService
	router.ActionService = app.actionService
	router.ActionIssuer = app.actionIssuer
	router.UserService = app.userService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
