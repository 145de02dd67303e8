package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rsextract/internal/config"
	"rsextract/internal/dataset"
	"rsextract/internal/logging"
	"rsextract/internal/pool"
	"rsextract/internal/take"
	"rsextract/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv(config.EnvSerial1, "")
	t.Setenv(config.EnvSerial2, "")
	opts = append([]testsupport.ConfigOption{testsupport.WithStubbedFFmpeg(testsupport.CaptureFFmpegScript)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(base, "rsextract.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

// useInProcessRunner makes `run` process takes in the test binary instead
// of re-executing rsextract.
func useInProcessRunner(t *testing.T) {
	t.Helper()
	original := newTakeRunner
	newTakeRunner = func(_ *commandContext, cfg *config.Config, runID string) pool.Runner {
		return pool.RunnerFunc(func(ctx context.Context, job dataset.Job) take.Status {
			processor, err := take.NewProcessor(cfg, logging.NewNop())
			if err != nil {
				return take.Status{Kind: take.StatusError, Action: job.Action, Take: job.Take, Err: err}
			}
			return processor.Process(logging.WithRunID(ctx, runID), job.Action, job.Take)
		})
	}
	t.Cleanup(func() {
		newTakeRunner = original
	})
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
