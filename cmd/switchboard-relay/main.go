// switchboard-relay is the local daemon a client UI talks to. It accepts
// operations over a loopback WebSocket, answers reads from its cache and
// forwards everything else to a switchboard node. With --signal it also
// negotiates WebRTC calls for the user of the relay token.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/syntrixbase/switchboard/internal/config"
	"github.com/syntrixbase/switchboard/internal/logging"
	"github.com/syntrixbase/switchboard/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configDir    string
		upstream     string
		listen       string
		cacheKind    string
		enableSignal bool
	)

	flags := pflag.NewFlagSet("switchboard-relay", pflag.ContinueOnError)
	flags.StringVarP(&configDir, "config", "c", "config", "directory holding config.yml and config.local.yml")
	flags.StringVar(&upstream, "upstream", "", "base URL of the switchboard node (overrides relay.upstream)")
	flags.StringVar(&listen, "listen", "", "loopback address to serve /v1/relay on (overrides relay.listen)")
	flags.StringVar(&cacheKind, "cache", "", "cache backend, memory or pebble (overrides relay.cache.backend)")
	flags.BoolVar(&enableSignal, "signal", false, "negotiate calls for the relay token's user (sets relay.signal.enabled)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return err
	}
	if upstream != "" {
		cfg.Relay.Upstream = upstream
	}
	if listen != "" {
		cfg.Relay.Listen = listen
	}
	if cacheKind != "" {
		cfg.Relay.Cache.Backend = cacheKind
	}
	if enableSignal {
		cfg.Relay.Signal.Enabled = true
	}
	if err := cfg.Relay.Validate(cfg.Deployment.Mode); err != nil {
		return err
	}

	if err := logging.Initialize(cfg.Logging, "switchboard-relay"); err != nil {
		return err
	}
	defer logging.Shutdown()

	mgr := services.NewManager(cfg, services.Options{RunRelay: true})
	if err := mgr.Init(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize relay: %w", err)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	errs, err := mgr.Start(bgCtx)
	if err != nil {
		return err
	}
	slog.Info("Relay listening", "addr", cfg.Relay.Listen, "upstream", cfg.Relay.Upstream, "signal", cfg.Relay.Signal.Enabled)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-errs:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	bgCancel()
	mgr.Shutdown(shutdownCtx)
	return runErr
}
