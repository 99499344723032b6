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

	"github.com/redis/go-redis/v9"

	"github.com/ducgiangtran/switchboard/internal/presence"
	"github.com/ducgiangtran/switchboard/internal/queue"
	"github.com/ducgiangtran/switchboard/internal/relay"
	"github.com/ducgiangtran/switchboard/pkg/httpx"
	"github.com/ducgiangtran/switchboard/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	// resubscribeDelay paces reconnect attempts when the subscriber
	// connection drops.
	resubscribeDelay = time.Second
)

// Application runs the relay bridge: the presence pub/sub subscriber that
// forwards transitions onto the durable notification queue.
type Application struct {
	cfg    Config
	logger *slog.Logger

	redis     *redis.Client
	presence  *presence.Store
	publisher *queue.AMQPPublisher
	bridge    *relay.Bridge

	server    *http.Server
	startTime time.Time
}

// New creates an Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "presenced",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		startTime: time.Now(),
	}

	app.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	app.presence = presence.New(app.redis, app.logger)

	publisher, err := queue.NewAMQPPublisher(cfg.AMQPURL, cfg.QueueName, app.logger)
	if err != nil {
		_ = app.redis.Close()
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	app.publisher = publisher

	app.bridge = relay.NewBridge(app.presence, app.publisher, app.logger)
	app.initHTTP()

	return app, nil
}

// Run starts the bridge and the health endpoint and blocks until shutdown
// is requested. A dropped subscriber connection is re-established after a
// short delay; events published while disconnected are lost, which is the
// documented property of the pub/sub layer.
func (app *Application) Run() error {
	app.logger.Info("presence bridge starting", "port", app.cfg.Port, "version", BuildVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridgeErrors := make(chan error, 1)
	go func() {
		bridgeErrors <- app.runBridge(ctx)
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
	case err := <-bridgeErrors:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("bridge failed: %w", err)
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

// runBridge keeps the bridge subscribed until ctx is canceled.
func (app *Application) runBridge(ctx context.Context) error {
	for {
		err := app.bridge.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		app.logger.Error("subscriber connection lost, resubscribing", "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resubscribeDelay):
		}
	}
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down presence bridge...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.publisher.Close(); err != nil {
		app.logger.Error("error closing broker connection", "error", err)
	}
	if err := app.redis.Close(); err != nil {
		app.logger.Error("error closing redis client", "error", err)
	}

	app.logger.Info("presence bridge stopped")
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
		if err := app.redis.Ping(r.Context()).Err(); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"redis":  "error: " + err.Error(),
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
