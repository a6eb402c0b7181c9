package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/pratititech/ai-service/internal/config"
)

func testConfig() config.LoggingConfig {
	return config.LoggingConfig{
		FileName:        "ai_service.log",
		Dir:             "logs",
		StorageDuration: 3,
		Level:           "info",
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, err := New(testConfig(), WithWorkDir(dir), WithConsole(&console))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected logger instance")
	}

	logger.Info("hello")
	logger.Debug("filtered")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if !strings.Contains(console.String(), "INFO - hello") {
		t.Fatalf("expected console entry, got %q", console.String())
	}
	if strings.Contains(console.String(), "filtered") {
		t.Fatalf("debug entry should be filtered at info level")
	}

	data, err := os.ReadFile(filepath.Join(dir, "ai_service.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "INFO - hello") {
		t.Fatalf("expected file entry, got %q", string(data))
	}
	if logger.FilePath() != filepath.Join(dir, "ai_service.log") {
		t.Fatalf("unexpected file path %s", logger.FilePath())
	}
}

func TestNewCreatesLogDir(t *testing.T) {
	dir := t.TempDir()

	logger, err := New(testConfig(), WithWorkDir(dir), WithConsole(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = logger.Close() }()

	info, err := os.Stat(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("expected log directory: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected logs to be a directory")
	}
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	cfg := testConfig()
	cfg.Level = "chatty"

	if _, err := New(cfg, WithWorkDir(t.TempDir())); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestParseLevel(t *testing.T) {
	testCases := map[string]zapcore.Level{
		"DEBUG":    zapcore.DebugLevel,
		"info":     zapcore.InfoLevel,
		"Warning":  zapcore.WarnLevel,
		"warn":     zapcore.WarnLevel,
		"ERROR":    zapcore.ErrorLevel,
		"critical": zapcore.FatalLevel,
	}

	for name, want := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseLevel(name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
		})
	}
}

func TestRotationArchivesIntoLogDir(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 10, 23, 0, 0, 0, time.Local)
	clock := func() time.Time { return now }

	logger, err := New(testConfig(), WithWorkDir(dir), WithConsole(&bytes.Buffer{}), WithClock(clock))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Info("first day")
	now = now.Add(2 * time.Hour)
	logger.Info("second day")
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}

	archived, err := os.ReadFile(filepath.Join(dir, "logs", "ai_service.log.20240310"))
	if err != nil {
		t.Fatalf("expected archived log: %v", err)
	}
	if !strings.Contains(string(archived), "first day") || strings.Contains(string(archived), "second day") {
		t.Fatalf("unexpected archived content %q", string(archived))
	}

	live, err := os.ReadFile(filepath.Join(dir, "ai_service.log"))
	if err != nil {
		t.Fatalf("read live log: %v", err)
	}
	if !strings.Contains(string(live), "second day") {
		t.Fatalf("expected live file to hold the new day, got %q", string(live))
	}

	if _, err := os.Stat(filepath.Join(dir, "ai_service.log.20240310")); !os.IsNotExist(err) {
		t.Fatalf("expected rotated file to leave the working directory, got %v", err)
	}
}

func TestRotateRespectsRetention(t *testing.T) {
	dir := t.TempDir()
	logs := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logs, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, day := range []string{"20240301", "20240302", "20240303"} {
		if err := os.WriteFile(filepath.Join(logs, "ai_service.log."+day), nil, 0o644); err != nil {
			t.Fatalf("seed backup: %v", err)
		}
	}

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)
	logger, err := New(testConfig(), WithWorkDir(dir), WithConsole(&bytes.Buffer{}), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Info("entry")
	if err := logger.Rotate(); err != nil {
		t.Fatalf("Rotate returned error: %v", err)
	}

	entries, err := os.ReadDir(logs)
	if err != nil {
		t.Fatalf("read logs: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected retention of 3 files, got %d", len(entries))
	}
	if _, err := os.Stat(filepath.Join(logs, "ai_service.log.20240301")); !os.IsNotExist(err) {
		t.Fatalf("expected oldest backup to be pruned")
	}
}
