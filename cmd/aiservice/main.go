package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/pratititech/ai-service/internal/application"
	"github.com/pratititech/ai-service/internal/config"
	"github.com/pratititech/ai-service/internal/logging"
)

var signalNotifyContext = signal.NotifyContext

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run bootstraps the service and returns the process exit code. The logger is
// closed before returning, so the shutdown entry is always flushed.
func run(args []string, stdout, stderr io.Writer) int {
	kingpinApp := kingpin.New("ai-service", "AI Service - loads configuration, initialises logging and prepares artifacts")
	kingpinApp.UsageWriter(stderr)
	kingpinApp.ErrorWriter(stderr)
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").Default(config.DefaultConfigFile).String()
	envFile := kingpinApp.Flag("env-file", "Optional dotenv file consulted after the process environment").Default(config.DefaultEnvFile).String()
	logLevel := kingpinApp.Flag("log-level", "Overrides Logging.LogLevel").String()
	artifactsDir := kingpinApp.Flag("artifacts-dir", "Overrides Artifacts.ArtifactsDirPath").String()

	if _, err := kingpinApp.Parse(args); err != nil {
		fmt.Fprintf(stderr, "ai-service: %v\n", err)
		return 2
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
		EnvFile:    *envFile,
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *artifactsDir != "" {
		overrides.ArtifactsDir = artifactsDir
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Logging, logging.WithConsole(stdout))
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		if closeErr := logger.Close(); closeErr != nil {
			fmt.Fprintf(stderr, "failed to close logger: %v\n", closeErr)
		}
	}()

	logger.Debug("configuration loaded",
		zap.String("config", *configFile),
		zap.String("log_file", logger.FilePath()),
		zap.String("log_dir", cfg.Logging.Dir),
		zap.String("artifacts_dir", cfg.Artifacts.DirPath),
	)

	ctx, stop := signalNotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := application.New(cfg, logger.Logger, application.WithLogFile(logger.FilePath()))
	if err := app.Run(ctx); err != nil {
		return 1
	}
	return 0
}
