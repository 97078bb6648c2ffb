// Package main implements the molpool binary, which pools the predictions of
// finished single-task estimators into a consensus and evaluates it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/molpool/molpool/internal/app"
	"github.com/molpool/molpool/internal/config"
	"github.com/molpool/molpool/internal/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configFile  string
		dataDir     string
		trainedDir  string
		mode        string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Run directory (data/, descriptors/, estimators/)")
	flag.StringVar(&trainedDir, "trained-dir", "", "Run directory of a previous fit (predict mode)")
	flag.StringVar(&mode, "mode", "", "Stage to run: fit, predict, evaluate")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "molpool - consensus pooling of single-task estimators\n\n")
		fmt.Fprintf(os.Stderr, "Usage: molpool [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  molpool --mode fit --data-dir /runs/r1\n")
		fmt.Fprintf(os.Stderr, "  molpool --mode predict --data-dir /runs/r2 --trained-dir /runs/r1\n")
		fmt.Fprintf(os.Stderr, "  molpool --config /etc/molpool/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MOLPOOL_MODE            Stage (fit, predict, evaluate)\n")
		fmt.Fprintf(os.Stderr, "  MOLPOOL_DATA_DIR        Run directory\n")
		fmt.Fprintf(os.Stderr, "  MOLPOOL_TRAINED_DIR     Trained run directory\n")
		fmt.Fprintf(os.Stderr, "  MOLPOOL_STORAGE_TYPE    Storage type (none, local, s3)\n")
		fmt.Fprintf(os.Stderr, "  MOLPOOL_LOG_LEVEL       Log level (debug, info, warn, error)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("molpool version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if err := run(configFile, dataDir, trainedDir, mode); err != nil {
		fmt.Fprintf(os.Stderr, "molpool: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, dataDir, trainedDir, mode string) error {
	cfg, err := loadConfig(configFile, dataDir, trainedDir, mode)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("molpool starting",
		zap.String("version", version),
		zap.String("mode", string(cfg.Mode)),
		zap.String("data_dir", cfg.DataDir),
		zap.String("storage", cfg.Storage.Type))

	application, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	res, err := application.Run(logger.ContextWithLogger(ctx, log))
	if err != nil {
		return err
	}
	log.Info("molpool finished",
		zap.String("run_id", res.RunID),
		zap.Int("published", len(res.Published)))
	return nil
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, trainedDir, mode string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if trainedDir != "" {
		cfg.TrainedDir = trainedDir
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}

	return cfg, nil
}
