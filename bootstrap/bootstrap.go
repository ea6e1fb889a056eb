// Package bootstrap wires all dependencies and starts the gateway server.
// Configuration is loaded once at startup from the YAML file named by
// CONFIG_PATH (or the --config flag); there is no dynamic reload path
// (spec.md Non-goals).
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/artpar/gatewayd/app"
	"github.com/artpar/gatewayd/client"
	"github.com/artpar/gatewayd/config"
	"github.com/artpar/gatewayd/domain/route"
	"github.com/artpar/gatewayd/metrics"
	"github.com/artpar/gatewayd/schedule"
)

// Environment variable names read at startup. These are the only config
// values that come from the environment; everything else comes from the
// config file named by CONFIG_PATH / --config (SPEC_FULL.md §6).
const (
	EnvConfigPath = "CONFIG_PATH"
	EnvHost       = "HOST"
	EnvPort       = "PORT"
	EnvLogLevel   = "LOG_LEVEL"
)

// App represents the running gateway.
type App struct {
	Logger     zerolog.Logger
	HTTPServer *http.Server

	registry *client.Registry
}

// New loads cfgPath, builds every client, matcher and scheduler it
// describes, and wires them into an http.Server bound to host:port.
func New(cfgPath, host, port string) (*App, error) {
	logger := setupLoggerFromEnv()
	logger.Info().Str("config", cfgPath).Msg("loading configuration")

	holder, err := config.NewHolder(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := holder.Get()

	ctx := context.Background()
	registry, err := client.Build(ctx, cfg.Clients, logger)
	if err != nil {
		return nil, fmt.Errorf("build clients: %w", err)
	}

	matcher, err := route.NewMatcher(cfg.Routes)
	if err != nil {
		registry.CloseAll()
		return nil, fmt.Errorf("build route matcher: %w", err)
	}

	collector := metrics.New()
	sched := schedule.NewWithMetrics(registry, collector)
	gateway := app.NewGatewayServiceWithMetrics(matcher, sched, logger, collector)

	router := newRouter(gateway)

	addr := fmt.Sprintf("%s:%s", host, port)
	a := &App{
		Logger:   logger,
		registry: registry,
		HTTPServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
	}

	logger.Info().Str("addr", addr).Int("routes", len(cfg.Routes)).Int("clients", len(cfg.Clients)).Msg("gateway configured")
	return a, nil
}

// newRouter mounts the liveness and metrics endpoints ahead of the
// catch-all gateway handler, per SPEC_FULL.md §6: both are excluded from
// the user-route 404/405 semantics because they're matched first.
func newRouter(gateway http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Mount("/", gateway)

	return r
}

// Run starts the HTTP server and blocks until an interrupt or the server
// fails to start.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the HTTP server and closes every backend
// client connection.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.registry != nil {
		if err := a.registry.CloseAll(); err != nil {
			a.Logger.Error().Err(err).Msg("client registry close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLoggerFromEnv() zerolog.Logger {
	levelStr := os.Getenv(EnvLogLevel)
	if levelStr == "" {
		levelStr = "info"
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
