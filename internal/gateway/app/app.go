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

	httpapi "github.com/ducgiangtran/switchboard/internal/gateway/http"
	"github.com/ducgiangtran/switchboard/pkg/interclient"
	"github.com/ducgiangtran/switchboard/pkg/intertoken"
	"github.com/ducgiangtran/switchboard/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	// Identity is the caller name minted into every outbound token and
	// sent in the x-request-source header.
	Identity = "gateway"
)

// Application encapsulates the gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	pool   *interclient.Pool
	issuer *intertoken.Issuer
	relay  *interclient.Relay

	server *http.Server
	router *httpapi.Router
}

// New creates an Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.TokenPrivateKeyFile == "" {
		return nil, fmt.Errorf("INTERNAL_TOKEN_PRIVATE_KEY_FILE is required")
	}
	pemKey, err := os.ReadFile(cfg.TokenPrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read token private key: %w", err)
	}
	issuer, err := intertoken.NewIssuer(pemKey, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to load token private key: %w", err)
	}
	app.issuer = issuer

	app.pool = interclient.NewPool(cfg.CallTimeout)
	app.relay = interclient.NewRelay(app.pool, app.issuer, Identity, app.logger)

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("gateway starting", "port", app.cfg.Port, "version", BuildVersion,
		"user_service", app.cfg.UserServiceURL)

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
	app.logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.pool.Clear()

	app.logger.Info("gateway stopped")
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.relay, app.cfg.UserServiceURL, BuildVersion, app.logger)
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
