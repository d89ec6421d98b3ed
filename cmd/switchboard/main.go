// switchboard runs a realtime node: the operations API that commits and
// publishes mutations, and the gateway that streams topic events to
// WebSocket and SSE clients.
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
		configDir  string
		runAPI     bool
		runGateway bool
		runRelay   bool
		issueToken string
	)

	flags := pflag.NewFlagSet("switchboard", pflag.ContinueOnError)
	flags.StringVarP(&configDir, "config", "c", "config", "directory holding config.yml and config.local.yml")
	flags.BoolVar(&runAPI, "api", false, "serve the operations API")
	flags.BoolVar(&runGateway, "gateway", false, "serve the realtime gateway")
	flags.BoolVar(&runRelay, "relay", false, "also serve the operation relay on this node")
	flags.StringVar(&issueToken, "issue-token", "", "print a signed development token for the given user id and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	// With no component selected a node runs both the API and the gateway.
	if !runAPI && !runGateway {
		runAPI, runGateway = true, true
	}

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return err
	}
	if err := logging.Initialize(cfg.Logging, "switchboard"); err != nil {
		return err
	}
	defer logging.Shutdown()

	mgr := services.NewManager(cfg, services.Options{
		RunAPI:     runAPI,
		RunGateway: runGateway,
		RunRelay:   runRelay,
	})

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()
	if err := mgr.Init(initCtx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if issueToken != "" {
		token, err := mgr.Authenticator().Tokens().IssueToken(issueToken, issueToken, "")
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	slog.Info("Starting switchboard",
		"mode", cfg.Deployment.Mode,
		"node_id", cfg.Deployment.NodeID,
		"api", runAPI,
		"gateway", runGateway,
		"relay", runRelay,
	)

	return serve(mgr, cfg.Server.ShutdownTimeout)
}

func serve(mgr *services.Manager, shutdownTimeout time.Duration) error {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	errs, err := mgr.Start(bgCtx)
	if err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		slog.Info("Shutting down", "signal", sig.String())
	case runErr = <-errs:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	bgCancel()
	mgr.Shutdown(shutdownCtx)

	slog.Info("All services stopped")
	return runErr
}
