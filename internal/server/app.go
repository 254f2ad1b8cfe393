// Package server initializes and runs the DRM server: it connects to the
// database, applies migrations, wires the services together, and serves the
// HTTP API until the process is signalled to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/drmkeeper/internal/cryptox"
	"github.com/dmitrijs2005/drmkeeper/internal/logging"
	"github.com/dmitrijs2005/drmkeeper/internal/server/access"
	"github.com/dmitrijs2005/drmkeeper/internal/server/config"
	"github.com/dmitrijs2005/drmkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/drmkeeper/internal/server/notify"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/drmkeeper/internal/server/services"
	"github.com/dmitrijs2005/drmkeeper/internal/server/storage"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	router http.Handler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := openDB(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	var serverKeyPEM []byte
	if cfg.ServerPrivateKeyFile != "" {
		serverKeyPEM, err = os.ReadFile(cfg.ServerPrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("server key read error: %w", err)
		}
	}
	envelope, err := cryptox.NewEnvelope(cfg.MasterSecret, serverKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("envelope init error: %w", err)
	}

	store := storage.NewS3Storage(cfg)
	oracle := access.NewClient(cfg.AccessServiceURL)
	hub := notify.NewHub(logger)

	keySvc := services.NewKeyService(db, rm, cfg, envelope, store, logger)
	licenseSvc := services.NewLicenseService(db, rm, cfg, envelope, oracle)
	sessionSvc := services.NewSessionService(db, rm)
	revocationSvc := services.NewRevocationService(db, rm, cfg, hub, logger)
	deviceSvc := services.NewDeviceService(db, rm)

	handler := httpapi.NewHandler(keySvc, licenseSvc, sessionSvc, revocationSvc, hub, deviceSvc, logger)
	router := httpapi.NewRouter(handler, []byte(cfg.SecretKey))

	return &App{config: cfg, logger: logger, db: db, router: router}, nil
}

// openDB opens the pool and pings it with exponential backoff, so the server
// survives starting before the database is ready.
func openDB(ctx context.Context, dsn string, logger logging.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn(ctx, "database not ready, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.router,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "http server error", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown error", "error", err)
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}

	app.logger.Info(context.Background(), "server stopped")
}
