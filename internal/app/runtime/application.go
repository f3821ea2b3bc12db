// Package runtime assembles configuration, stores, services and the HTTP
// server into a runnable calculator application.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/auth"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/httpapi"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage/memory"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage/postgres"
	redisstore "github.com/Razlynski/calculator-mvc-isaac/internal/app/storage/redis"
	"github.com/Razlynski/calculator-mvc-isaac/internal/config"
	"github.com/Razlynski/calculator-mvc-isaac/internal/middleware"
	"github.com/Razlynski/calculator-mvc-isaac/internal/platform/database"
	"github.com/Razlynski/calculator-mvc-isaac/internal/platform/migrations"
	"github.com/Razlynski/calculator-mvc-isaac/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	handler http.Handler
	server  *http.Server
	limiter *middleware.RateLimiter
	db      *sqlx.DB
	redis   *goredis.Client
}

// LoadConfig reads the runtime configuration from the environment.
func LoadConfig() (*config.Config, error) {
	return config.Load()
}

// NewApplication constructs the application from cfg. When migrate is
// true the Postgres schema is brought up to date before stores are wired.
func NewApplication(cfg *config.Config, migrate bool) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	windows, historyStore, db, redisClient, err := buildStores(cfg, migrate, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}
	closeStores := func() {
		if db != nil {
			_ = db.Close()
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}

	application, err := app.New(app.Stores{Windows: windows, History: historyStore}, app.Options{
		HistoryLimit:  cfg.History.DisplayLimit,
		SessionTTL:    cfg.History.SessionTTL,
		SweepSchedule: cfg.History.SweepSchedule,
	}, log)
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("assemble application: %w", err)
	}

	authMgr := auth.NewManager(cfg.Auth.Secret, cfg.Auth.Users).WithTTL(cfg.Auth.TokenTTL)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	}

	handler, err := httpapi.New(application, httpapi.Options{
		Tokens:         cfg.Auth.Tokens,
		APIKeyHashes:   cfg.Auth.APIKeyHashes,
		AuthManager:    authMgr,
		AuditMax:       cfg.Audit.BufferSize,
		AuditFile:      cfg.Audit.FilePath,
		AuditDB:        db,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimiter:    limiter,
		Tracing:        middleware.NewTracingMiddleware(log),
	})
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("assemble http handler: %w", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Application{
		cfg:     cfg,
		log:     log,
		app:     application,
		handler: handler,
		server:  server,
		limiter: limiter,
		db:      db,
		redis:   redisClient,
	}, nil
}

// App exposes the assembled service layer, mainly for tests.
func (a *Application) App() *app.Application {
	return a.app
}

// Handler exposes the fully wrapped HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// Run starts background services and the HTTP server, then blocks until
// the context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	if a.limiter != nil {
		a.limiter.StartCleanup(ctx, a.cfg.RateLimit.CleanupInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server, background services and store
// connections in that order.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var firstErr error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		firstErr = err
	}
	if err := a.app.Stop(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	return firstErr
}

func buildStores(cfg *config.Config, migrate bool, log *logger.Logger) (storage.WindowStore, storage.HistoryStore, *sqlx.DB, *goredis.Client, error) {
	switch cfg.Database.Driver {
	case "", "memory":
		mem := memory.New()
		return mem, mem, nil, nil, nil

	case "postgres":
		db, err := openPostgres(cfg.Database, migrate)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		store := postgres.New(db)
		return store, store, db, nil, nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		windows := redisstore.New(client, cfg.History.SessionTTL)

		// History records outlive window snapshots, so they go to
		// Postgres when a DSN is configured and to memory otherwise.
		if cfg.Database.DSN != "" {
			db, err := openPostgres(cfg.Database, migrate)
			if err != nil {
				_ = client.Close()
				return nil, nil, nil, nil, err
			}
			return windows, postgres.New(db), db, client, nil
		}
		log.Warn("redis driver without DATABASE_URL keeps history in memory")
		return windows, memory.New(), nil, client, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func openPostgres(cfg config.DatabaseConfig, migrate bool) (*sqlx.DB, error) {
	db, err := database.Open(context.Background(), cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if migrate {
		if err := migrations.Apply(db.DB); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	return db, nil
}
