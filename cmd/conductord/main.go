// Conductord is the agent orchestration daemon.
//
// It loads the agent definition file into a registry, coordinates agent
// activation and handoffs over a shared context, and exposes the
// orchestration operations over HTTP.
//
// Configuration is loaded from a YAML file and CONDUCTORD_* environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (agents.txt in the working directory)
//	conductord
//
//	# Point at a config file
//	conductord -config /etc/conductord/config.yaml
//
//	# Configure via environment
//	CONDUCTORD_SERVER_PORT=9280 CONDUCTORD_AGENTS_FILE=team.txt conductord
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/relayforge/conductord/internal/config"
	conductorhttp "github.com/relayforge/conductord/internal/http"
	"github.com/relayforge/conductord/internal/logging"
	"github.com/relayforge/conductord/internal/orchestrator"
	"github.com/relayforge/conductord/internal/registry"
	"github.com/relayforge/conductord/internal/sharedctx"
	"github.com/relayforge/conductord/internal/workflow"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("conductord\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// run starts the daemon and blocks until the context is cancelled:
//
//  1. Loads and validates configuration
//  2. Initializes the logger
//  3. Builds the orchestrator (context store, registry, coordinator,
//     executor)
//  4. Subscribes the optional NATS context-change notifier
//  5. Starts the agent-file watcher when enabled
//  6. Serves HTTP until shutdown
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting conductord",
		zap.String("version", version),
		zap.String("agent_file", cfg.Agents.File),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	orch, err := orchestrator.New(cfg.Agents.File, logger, workflow.Options{
		StepTimeout: cfg.Workflow.StepTimeout,
	})
	if err != nil {
		return fmt.Errorf("initializing orchestrator: %w", err)
	}
	logger.Info("agent registry loaded", zap.Int("agents", orch.Registry().Len()))

	if cfg.Notify.NATSURL != "" {
		nc, err := nats.Connect(cfg.Notify.NATSURL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS at %s: %w", cfg.Notify.NATSURL, err)
		}
		defer nc.Close()

		notifier := sharedctx.NewNATSNotifier(nc, cfg.Notify.SubjectPrefix, logger.Named("notify"))
		orch.Store().Subscribe(notifier.Observer())
		logger.Info("context change notifier connected",
			zap.String("url", cfg.Notify.NATSURL),
			zap.String("subject_prefix", cfg.Notify.SubjectPrefix))
	}

	if cfg.Agents.Watch {
		watcher, err := registry.NewWatcher(orch.Registry(), cfg.Agents.File, cfg.Agents.WatchDebounce, logger.Named("watcher"))
		if err != nil {
			return fmt.Errorf("creating agent file watcher: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("starting agent file watcher: %w", err)
		}
		logger.Info("watching agent file", zap.Duration("debounce", cfg.Agents.WatchDebounce))
	}

	srv, err := conductorhttp.NewServer(orch, logger.Named("http"), &conductorhttp.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
