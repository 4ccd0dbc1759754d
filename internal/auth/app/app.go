package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/pulsehq/pulse/internal/auth/http"
	"github.com/pulsehq/pulse/internal/auth/notify"
	"github.com/pulsehq/pulse/internal/auth/service"
	"github.com/pulsehq/pulse/internal/auth/store"
	"github.com/pulsehq/pulse/internal/auth/store/drivers/sqlite"
	"github.com/pulsehq/pulse/pkg/jwtx"
	"github.com/pulsehq/pulse/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the auth service together: store, services, notifier
// and the HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	notifier notify.Notifier

	sessionService      *service.SessionService
	recoveryService     *service.RecoveryService
	verifierService     *service.VerifierService
	throttleService     *service.ThrottleService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "pulse-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initNotifier(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
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

// Shutdown drains the HTTP server, stops the background worker and closes
// the store and notifier.
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

	if err := app.notifier.Close(); err != nil {
		app.logger.Error("error closing notifier", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
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

func (app *Application) initNotifier() error {
	if app.cfg.NotifyAMQPURL == "" {
		app.notifier = notify.NewLogNotifier(app.logger)
		return nil
	}

	n, err := notify.NewAMQPNotifier(app.cfg.NotifyAMQPURL, app.cfg.NotifyAMQPExchange, app.logger)
	if err != nil {
		return fmt.Errorf("failed to connect notifier: %w", err)
	}
	app.notifier = n
	app.logger.Info("amqp notifier connected", "exchange", app.cfg.NotifyAMQPExchange)
	return nil
}

func (app *Application) initServices() error {
	signer, err := jwtx.NewSignerHS256(app.cfg.JWTSecret)
	if err != nil {
		return err
	}
	verifier, err := jwtx.NewVerifierHS256(app.cfg.JWTSecret, app.cfg.Issuer)
	if err != nil {
		return err
	}

	app.verifierService = &service.VerifierService{
		Verifier: verifier,
		Store:    app.db,
	}

	app.throttleService = &service.ThrottleService{
		Store:       app.db,
		MaxAttempts: app.cfg.RecoveryMaxAttempts,
		Window:      app.cfg.RecoveryWindow,
	}

	app.sessionService = &service.SessionService{
		Store:      app.db,
		Signer:     signer,
		Verifier:   app.verifierService,
		Notifier:   app.notifier,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}

	app.recoveryService = &service.RecoveryService{
		Store:    app.db,
		Notifier: app.notifier,
		Throttle: app.throttleService,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)

	return nil
}

func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(app.db, app.logger, BuildVersion)
	app.router.Sessions = app.sessionService
	app.router.Recovery = app.recoveryService
	app.router.Verifier = app.verifierService
	app.router.RefreshTTL = app.cfg.RefreshTTL
	app.router.SecureCookies = app.cfg.SecureCookies
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: app.router,
	}
}
