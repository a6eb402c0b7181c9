package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pratititech/ai-service/internal/config"
)

// ManifestFileName is the run manifest written into the artifacts directory.
const ManifestFileName = "run.yml"

const (
	startMessage    = "Starting the AI Service..."
	shutdownMessage = "AI Service stopped."
)

// Step is a named startup task.
type Step struct {
	Name string
	Run  Task
}

// Option customises an App.
type Option func(*App)

// WithSteps replaces the default startup steps. The artifacts directory is
// always ensured first.
func WithSteps(steps ...Step) Option {
	return func(a *App) { a.steps = steps }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(a *App) { a.runID = id }
}

// WithLogFile records the live log file path in the run manifest.
func WithLogFile(path string) Option {
	return func(a *App) { a.logFile = path }
}

// App encapsulates the startup sequence and its dependencies.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	runID   string
	logFile string
	steps   []Step
	now     func() time.Time
}

// New wires an App from the resolved configuration and the injected logger.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) *App {
	a := &App{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.runID == "" {
		a.runID = uuid.NewString()
	}
	a.logger = logger.With(zap.String("run_id", a.runID))
	if a.steps == nil {
		a.steps = []Step{{Name: "write-manifest", Run: a.writeManifest}}
	}
	return a
}

// RunID identifies this process run in logs and artifacts.
func (a *App) RunID() string {
	return a.runID
}

// Run executes the startup steps in order and stops at the first failure,
// which is logged and returned as a *ServiceError. Cancellation of ctx fails
// the next step the same way. The shutdown notice is always the last entry
// logged.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info(startMessage)
	defer a.logger.Info(shutdownMessage)

	steps := append([]Step{{Name: "ensure-artifacts-dir", Run: a.ensureArtifactsDir}}, a.steps...)
	for _, step := range steps {
		if err := Guard(ctx, step.Name, step.Run); err != nil {
			a.logger.Error("startup step failed", zap.String("step", step.Name), zap.Error(err))
			return err
		}
		a.logger.Debug("startup step completed", zap.String("step", step.Name))
	}

	return nil
}

func (a *App) ensureArtifactsDir(context.Context) error {
	if err := os.MkdirAll(a.cfg.Artifacts.DirPath, 0o755); err != nil {
		return locate(fmt.Errorf("create artifacts directory: %w", err))
	}
	return nil
}

// manifest records what this run was started with.
type manifest struct {
	RunID     string    `yaml:"run_id"`
	PID       int       `yaml:"pid"`
	StartedAt time.Time `yaml:"started_at"`
	LogFile   string    `yaml:"log_file,omitempty"`
	LogDir    string    `yaml:"log_dir"`
	LogLevel  string    `yaml:"log_level"`
}

func (a *App) writeManifest(context.Context) error {
	data, err := yaml.Marshal(manifest{
		RunID:     a.runID,
		PID:       os.Getpid(),
		StartedAt: a.now().UTC(),
		LogFile:   a.logFile,
		LogDir:    a.cfg.Logging.Dir,
		LogLevel:  a.cfg.Logging.Level,
	})
	if err != nil {
		return locate(fmt.Errorf("encode manifest: %w", err))
	}

	path := filepath.Join(a.cfg.Artifacts.DirPath, ManifestFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return locate(fmt.Errorf("write manifest: %w", err))
	}

	a.logger.Info("run manifest written", zap.String("path", path))
	return nil
}
