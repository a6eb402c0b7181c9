package main

import (
	"bytes"
	"context"
	"os"
	osSignal "os/signal"
	"path/filepath"
	"strings"
	"testing"
)

const testConfig = `Logging:
  LogFileName: ai_service.log
  LogDir: logs
  LogStorageDuration: 7
  LogLevel: INFO
Artifacts:
  ArtifactsDirPath: artifacts
`

func setupWorkDir(t *testing.T) string {
	t.Helper()
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_DIR", "")
	t.Setenv("ARTIFACTS_DIR_PATH", "")

	dir := t.TempDir()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(testConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestRunBootstrapsService(t *testing.T) {
	dir := setupWorkDir(t)
	var stdout, stderr bytes.Buffer

	for i := 0; i < 2; i++ {
		if code := run(nil, &stdout, &stderr); code != 0 {
			t.Fatalf("run %d exited with %d (stderr: %s)", i, code, stderr.String())
		}
	}

	for _, path := range []string{"artifacts", "logs"} {
		info, err := os.Stat(filepath.Join(dir, path))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", path, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "artifacts", "run.yml")); err != nil {
		t.Fatalf("expected run manifest: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "ai_service.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if last := lines[len(lines)-1]; !strings.Contains(last, "AI Service stopped.") {
		t.Fatalf("expected shutdown entry last, got %q", last)
	}
	if !strings.Contains(stdout.String(), "Starting the AI Service...") {
		t.Fatalf("expected console output, got %q", stdout.String())
	}
}

func TestRunFailsWithoutConfig(t *testing.T) {
	setupWorkDir(t)
	var stdout, stderr bytes.Buffer

	code := run([]string{"--config", "missing.yml"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "failed to load configuration") {
		t.Fatalf("expected configuration error, got %q", stderr.String())
	}
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	setupWorkDir(t)
	var stdout, stderr bytes.Buffer

	if code := run([]string{"--no-such-flag"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestRunAppliesFlags(t *testing.T) {
	dir := setupWorkDir(t)
	var stdout, stderr bytes.Buffer

	code := run([]string{"--artifacts-dir", "out", "--log-level", "debug"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "run.yml")); err != nil {
		t.Fatalf("expected manifest in flag-provided artifacts dir: %v", err)
	}
	if !strings.Contains(stdout.String(), "configuration loaded") {
		t.Fatalf("expected debug entries at debug level, got %q", stdout.String())
	}
}

func TestRunInterruptedBySignal(t *testing.T) {
	setupWorkDir(t)
	t.Cleanup(func() {
		signalNotifyContext = osSignal.NotifyContext
	})

	signalNotifyContext = func(parent context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(parent)
		cancel()
		return ctx, cancel
	}

	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stdout.String(), "AI Service stopped.") {
		t.Fatalf("expected shutdown entry, got %q", stdout.String())
	}
}
