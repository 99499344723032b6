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

	"github.com/ducgiangtran/switchboard/internal/notify"
	"github.com/ducgiangtran/switchboard/internal/notifyd/service"
	"github.com/ducgiangtran/switchboard/internal/notifyd/store"
	"github.com/ducgiangtran/switchboard/internal/notifyd/store/drivers/sqlite"
	"github.com/ducgiangtran/switchboard/internal/queue"
	"github.com/ducgiangtran/switchboard/pkg/httpx"
	"github.com/ducgiangtran/switchboard/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application runs the notification consumer: the manual-ack loop that
// drains the durable queue and persists notifications.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	amqp     *queue.AMQPConsumer
	notifier *service.StoreNotifier
	consumer *notify.Consumer

	server    *http.Server
	startTime time.Time
}

// New creates an Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "notifyd",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		startTime: time.Now(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	consumer, err := queue.NewAMQPConsumer(cfg.AMQPURL, cfg.QueueName, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	app.amqp = consumer

	app.notifier = &service.StoreNotifier{Store: app.db, Logger: app.logger}
	app.consumer = notify.NewConsumer(app.notifier, app.logger)
	app.initHTTP()

	return app, nil
}

// Run starts the consumer loop and the health endpoint and blocks until
// shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("notification consumer starting", "port", app.cfg.Port, "version", BuildVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := app.amqp.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	consumerErrors := make(chan error, 1)
	go func() {
		consumerErrors <- app.consumer.Run(ctx, deliveries)
	}()

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
	case err := <-consumerErrors:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consumer failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		cancel()

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down notification consumer...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Closing the broker connection stops deliveries; unacked messages go
	// back to the queue for the next instance.
	if err := app.amqp.Close(); err != nil {
		app.logger.Error("error closing broker connection", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("notification consumer stopped")
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

func (app *Application) initHTTP() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"uptime":  time.Since(app.startTime).String(),
			"version": BuildVersion,
		})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := app.db.Ping(r.Context()); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "degraded",
				"database": "error: " + err.Error(),
			})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           slogx.HTTPMiddleware(app.logger)(mux),
		ReadHeaderTimeout: 3 * time.Second,
	}
}
