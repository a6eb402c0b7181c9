package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pratititech/ai-service/internal/archive"
	"github.com/pratititech/ai-service/internal/config"
	"github.com/pratititech/ai-service/internal/rotate"
)

// Logger is the service logger: a console sink plus a rotating file sink.
// It is constructed once by the entry point and passed to every component.
type Logger struct {
	*zap.Logger
	file *rotate.Writer
}

type options struct {
	console io.Writer
	workDir string
	policy  rotate.Policy
	now     func() time.Time
}

// Option customises New.
type Option func(*options)

// WithConsole sets the console sink. Standard output is the default.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithWorkDir sets the directory holding the live log file. Relative log
// directories are resolved against it. The default is the process working directory.
func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

// WithPolicy overrides the midnight rollover.
func WithPolicy(p rotate.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithClock sets the clock driving rotation.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates the console and file logger described by cfg. The log directory
// is created if absent; every rotation moves rotated files into it.
func New(cfg config.LoggingConfig, opts ...Option) (*Logger, error) {
	o := options{
		console: os.Stdout,
		workDir: ".",
		policy:  rotate.Midnight,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	logDir := cfg.Dir
	if !filepath.IsAbs(logDir) {
		logDir = filepath.Join(o.workDir, logDir)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	consoleCore := zapcore.NewCore(
		newEncoder(),
		zapcore.Lock(zapcore.AddSync(consoleWriter{o.console})),
		level,
	)
	// Rotation failures are reported on the console only; the file sink is
	// locked while hooks and the error handler run.
	fallback := zap.New(consoleCore)

	archiver := &archive.Archiver{
		SourceDir: o.workDir,
		BaseName:  cfg.FileName,
		Dir:       logDir,
		Layout:    o.policy.Layout(),
		Keep:      cfg.StorageDuration,
	}

	file, err := rotate.New(filepath.Join(o.workDir, cfg.FileName),
		rotate.WithPolicy(o.policy),
		rotate.WithRetention(cfg.StorageDuration),
		rotate.WithClock(o.now),
		rotate.WithHook(archiver.AfterRotate),
		rotate.WithErrorHandler(func(err error) {
			fallback.Error("log rotation failed", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileCore := zapcore.NewCore(newEncoder(), file, level)

	return &Logger{
		Logger: zap.New(zapcore.NewTee(consoleCore, fileCore), zap.ErrorOutput(zapcore.Lock(os.Stderr))),
		file:   file,
	}, nil
}

// ParseLevel maps a configured level name to a zap level. Besides zap's own
// names it accepts "warning" and "critical".
func ParseLevel(level string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	switch name {
	case "warning":
		name = "warn"
	case "critical":
		name = "fatal"
	}

	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return lvl, fmt.Errorf("invalid log level '%s': %w", level, err)
	}
	return lvl, nil
}

// FilePath returns the live log file path.
func (l *Logger) FilePath() string {
	return l.file.Path()
}

// Rotate forces a rollover of the file sink, archiving the rotated file.
func (l *Logger) Rotate() error {
	return l.file.Rotate()
}

// Close flushes buffered entries and closes the file sink.
func (l *Logger) Close() error {
	return multierr.Combine(l.Logger.Sync(), l.file.Close())
}

// newEncoder renders entries as "timestamp - LEVEL - message".
func newEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " - "
	return zapcore.NewConsoleEncoder(cfg)
}

// consoleWriter hides Sync so that syncing a terminal is never reported as an error.
type consoleWriter struct {
	io.Writer
}
