package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"rsextract/internal/testsupport"
)

func TestRunProcessesTakesAndRecordsLedger(t *testing.T) {
	env := setupCLITestEnv(t)
	useInProcessRunner(t)
	testsupport.WriteTake(t, env.cfg, "pour", 1, testsupport.Recording{Frames: 4}, testsupport.Recording{Frames: 4})
	testsupport.WriteRecording(t, testsupport.TakePath(env.cfg, "pour", 2, 1), testsupport.Recording{Frames: 2})
	testsupport.WriteTake(t, env.cfg, "lift", 1, testsupport.Recording{Frames: 3}, testsupport.Recording{Frames: 3})

	out, _, err := runCLI(t, []string{"run", "--workers", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Found 3 takes to process. Starting parallel processing with 2 workers...")
	requireContains(t, out, "Dataset processing complete.")
	requireContains(t, out, "Completed 2, skipped 1, failed 0 (7 frames)")

	rgb := filepath.Join(env.cfg.Paths.OutputDir, "pour", "pour_take_01_merged_rgb.mov")
	if _, err := os.Stat(rgb); err != nil {
		t.Fatalf("expected merged video: %v", err)
	}

	out, _, err = runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var report statusOutput
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if len(report.Runs) != 1 || report.Runs[0].Completed != 2 || report.Runs[0].Skipped != 1 || report.Runs[0].FinishedAt == nil {
		t.Fatalf("unexpected runs %+v", report.Runs)
	}
	if len(report.Takes) != 3 {
		t.Fatalf("unexpected takes %+v", report.Takes)
	}
	if report.Takes[1].Action != "pour" || report.Takes[1].Take != 1 || report.Takes[1].Frames != 4 {
		t.Fatalf("unexpected pour/1 entry %+v", report.Takes[1])
	}
	if report.Takes[2].Status != "skipped" {
		t.Fatalf("pour/2 should be skipped, got %+v", report.Takes[2])
	}

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, report.Runs[0].ID)
	requireContains(t, out, "completed")
}

func TestRunSingleAction(t *testing.T) {
	env := setupCLITestEnv(t)
	useInProcessRunner(t)
	testsupport.WriteTake(t, env.cfg, "pour", 1, testsupport.Recording{Frames: 2}, testsupport.Recording{Frames: 2})
	testsupport.WriteTake(t, env.cfg, "lift", 1, testsupport.Recording{Frames: 2}, testsupport.Recording{Frames: 2})

	out, _, err := runCLI(t, []string{"run", "--action", "lift"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Found 1 takes")
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.OutputDir, "pour")); !os.IsNotExist(err) {
		t.Fatalf("pour should not be processed, stat err %v", err)
	}
}

func TestRunWithoutTakes(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.DatasetDir, 0o755); err != nil {
		t.Fatalf("mkdir dataset: %v", err)
	}
	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "No takes found to process.")
}

func TestRunRefusesConcurrentRun(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteTake(t, env.cfg, "pour", 1, testsupport.Recording{Frames: 2}, testsupport.Recording{Frames: 2})
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	lock := flock.New(env.cfg.LockPath())
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	t.Cleanup(func() { _ = lock.Unlock() })

	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err == nil {
		t.Fatal("expected lock error")
	}
	requireContains(t, err.Error(), "another rsextract run is active")
}

func TestRunFailsPreflightWithoutDataset(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err == nil {
		t.Fatal("expected preflight error")
	}
	requireContains(t, err.Error(), "Dataset directory")
}
