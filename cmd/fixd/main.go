// Fixd is the code remediation daemon.
//
// It loads the recipe corpus, connects the embedding and generation
// backends, and serves the remediation API over HTTP.
//
// Configuration is read from ~/.config/fixd/config.yaml (or -config) and
// FIXD_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (ollama on localhost:11434)
//	fixd
//
//	# Configure via environment
//	FIXD_SERVER_PORT=9000 FIXD_GENERATION_MODEL=qwen2.5-coder:7b fixd
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

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/config"
	httpserver "github.com/fyrsmithlabs/fixd/internal/http"
	"github.com/fyrsmithlabs/fixd/internal/logging"
	"github.com/fyrsmithlabs/fixd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/fixd/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  fixd [-config path]   Start the remediation daemon\n")
			fmt.Fprintf(os.Stderr, "  fixd version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("fixd: %v", err)
	}
}

func printVersion() {
	fmt.Printf("fixd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts fixd and blocks until ctx is cancelled:
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Builds the remediation pipeline (see initDependencies)
//  4. Serves HTTP until shutdown, then drains and releases everything
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	return runWithConfig(ctx, cfg)
}

func runWithConfig(ctx context.Context, cfg *config.Config) error {
	// Telemetry comes first so the logger can mirror into its log provider.
	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg.Logging, logging.WithLoggerProvider(tel.LoggerProvider()))
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
		if err := tel.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown failed: %v\n", err)
		}
	}()
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", h.Reasons))
	}

	logger.Info(ctx, "starting fixd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("generation_provider", cfg.Generation.Provider),
		zap.String("embeddings_provider", cfg.Embeddings.Provider),
	)

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		// A hung generation must not outlive the shutdown budget.
		releaseCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := deps.Shutdown(releaseCtx); err != nil {
			logger.Warn(ctx, "shutdown released resources with errors", zap.Error(err))
		}
	}()

	srv, err := httpserver.NewServer(httpserver.Deps{
		Remediator: deps.service,
		Stats:      deps.recorder,
		Corpus:     deps.store,
		Embedder:   deps.embedder,
		Version:    version,
	}, logger.Underlying(), &httpserver.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		BodyLimit:    cfg.Server.BodyLimit,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info(ctx, "fixd stopped")
	return nil
}

// initLogger builds the structured logger from the logging section.
// Records are mirrored over OTLP when a log provider is supplied.
func initLogger(cfg config.LoggingConfig, opts ...logging.Option) (*logging.Logger, error) {
	lcfg := logging.NewDefaultConfig()
	lcfg.OTEL = true
	if cfg.Level != "" {
		level, err := logging.LevelFromString(cfg.Level)
		if err != nil {
			return nil, err
		}
		lcfg.Level = level
	}
	if cfg.Format != "" {
		lcfg.Format = cfg.Format
	}
	return logging.NewLogger(lcfg, opts...)
}
