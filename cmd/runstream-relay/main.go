package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "github.com/kode4food/runstream"
	"github.com/kode4food/runstream/internal/auth"
	"github.com/kode4food/runstream/internal/config"
	"github.com/kode4food/runstream/internal/server"
	"github.com/kode4food/runstream/pkg/log"
)

type relay struct {
	cfg        *config.Config
	hub        *server.Hub
	simulator  *server.Simulator
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var ErrLoadTokens = errors.New("failed to load relay tokens")

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("Invalid env file", log.Error(err))
		os.Exit(1)
	}

	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	r := &relay{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	r.setupLogging()

	if err := r.run(); err != nil {
		slog.Error("Failed to start relay", log.Error(err))
		os.Exit(1)
	}
}

func (r *relay) run() error {
	opts, err := r.serverOptions()
	if err != nil {
		return err
	}

	r.hub = server.NewHub()
	r.simulator = server.NewSimulator(
		r.hub, r.cfg.SimulatedSteps, r.cfg.SimulatedInterval,
	)
	r.apiServer = server.NewServer(r.hub, r.simulator, opts...)
	r.startServer()

	signal.Notify(r.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(r.quit)
	<-r.quit

	r.shutdown()
	return nil
}

func (r *relay) setupLogging() {
	level := log.ParseLevel(r.cfg.LogLevel)
	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name+"-relay", env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Relay starting",
		slog.String("log_level", r.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("api_host", r.cfg.APIHost),
		slog.Int("api_port", r.cfg.APIPort),
		slog.Int("simulated_steps", r.cfg.SimulatedSteps),
		slog.Duration("simulated_interval", r.cfg.SimulatedInterval),
		slog.Bool("auth", r.cfg.TokenFile != ""))
}

func (r *relay) serverOptions() ([]server.Option, error) {
	if r.cfg.TokenFile == "" {
		return nil, nil
	}
	ts, err := auth.NewFileTokenSource(r.cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadTokens, err)
	}
	return []server.Option{server.WithTokens(ts)}, nil
}

func (r *relay) startServer() {
	r.httpServer = &http.Server{
		Addr:    r.cfg.Addr(),
		Handler: r.apiServer.SetupRoutes(),
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", r.httpServer.Addr))
		err := r.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
			r.quit <- syscall.SIGTERM
		}
	}()
}

func (r *relay) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), r.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := r.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	r.apiServer.CloseWebSockets()
	r.simulator.Stop()
	r.hub.Close()

	slog.Info("Relay exited")
}
