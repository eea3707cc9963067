// Command metaco-agent keeps a local copy of the metaCo enabled flag in sync
// with the native host's state file and serves it over a localhost API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/metaco/metaco/internal/agent"
	"github.com/metaco/metaco/internal/api"
	"github.com/metaco/metaco/internal/auth"
	"github.com/metaco/metaco/internal/config"
	"github.com/metaco/metaco/internal/events"
	"github.com/metaco/metaco/internal/host"
	"github.com/metaco/metaco/internal/identity"
	"github.com/metaco/metaco/internal/notify"
	"github.com/metaco/metaco/internal/router"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "YAML settings file (default: built-in defaults)")
		addr     = flag.String("addr", "", "HTTP listen address (overrides api.addr)")
		hostPath = flag.String("host", "", "host binary (overrides host.path)")
		debug    = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	// Configure logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.LoadSettings(*cfgPath)
	if err != nil {
		slog.Error("cannot load settings", "path", *cfgPath, "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.API.Addr = *addr
	}
	if *hostPath != "" {
		cfg.Host.Path = *hostPath
	}

	statePath, err := cfg.StatePath()
	if err != nil {
		slog.Error("cannot resolve state file", "err", err)
		os.Exit(1)
	}

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Host dialer
	var dialer agent.Dialer
	switch cfg.Host.Mode {
	case config.HostModeInProcess:
		store := config.NewJSONStore(statePath)
		dialer = agent.NewLocalDialer(host.NewHandler(func() (config.Store, error) { return store, nil }))
		slog.Info("using in-process host", "state", statePath)
	default:
		dialer = agent.NewProcessDialer(cfg.HostPath(), config.StateFileEnv+"="+statePath)
		slog.Info("using host process", "path", cfg.HostPath(), "state", statePath)
	}

	bus := events.NewBus()

	a := agent.New(dialer, bus, agent.Options{
		PollInterval:   cfg.Agent.PollInterval,
		RequestTimeout: cfg.Agent.RequestTimeout,
		SpawnRate:      cfg.Agent.SpawnRate,
		SpawnBurst:     cfg.Agent.SpawnBurst,
	})

	// State file watcher
	if cfg.Agent.WatchStateFile {
		w, err := agent.WatchStateFile(statePath, a.Refresh)
		if err != nil {
			slog.Warn("state file watch disabled", "err", err)
		} else {
			defer w.Close()
		}
	}

	// Query router
	table, err := router.LoadTable(cfg.Router.SiloMap)
	if err != nil {
		slog.Error("cannot load silo map", "path", cfg.Router.SiloMap, "err", err)
		os.Exit(1)
	}
	slog.Info("silo map loaded", "silos", table.Len())
	rt := router.New(table, a)

	// Notifications
	notifier := notify.Select(cfg.Notify.Desktop)
	notifySub := bus.Subscribe("notify")
	go notify.Watch(ctx, notifySub, notifier)

	// Auth service
	authSvc, err := auth.NewService(cfg.API.TokenFile)
	if err != nil {
		slog.Error("auth service initialization failed", "err", err)
		os.Exit(1)
	}
	defer authSvc.Close()
	if authSvc.IsOpenMode() {
		slog.Info("local API is open (no token file)")
	}

	agentDone := make(chan struct{})
	go func() {
		defer close(agentDone)
		if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("agent stopped", "err", err)
		}
	}()

	// HTTP server
	handler := api.NewRouter(api.Deps{
		Sync:   a,
		Router: rt,
		Events: bus,
		Auth:   authSvc,
		Info:   func() identity.Info { return identity.Get(statePath, cfg.Host.Mode) },
	})

	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0, // 0 = no timeout (needed for SSE)
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("metaCo agent listening", "addr", cfg.API.Addr, "version", identity.GetVersion())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()

	// Graceful HTTP shutdown
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	select {
	case <-agentDone:
	case <-shutCtx.Done():
		slog.Warn("agent did not stop in time")
	}
	bus.Unsubscribe("notify")

	slog.Info("shutdown complete")
}
