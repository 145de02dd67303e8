package main

import (
	"os"
	"testing"

	"rsextract/internal/testsupport"
)

func TestTakesListsNextNumber(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteRecording(t, testsupport.TakePath(env.cfg, "pour", 1, 1), testsupport.Recording{Frames: 1})
	testsupport.WriteRecording(t, testsupport.TakePath(env.cfg, "pour", 4, 1), testsupport.Recording{Frames: 1})
	testsupport.WriteRecording(t, testsupport.TakePath(env.cfg, "lift", 2, 2), testsupport.Recording{Frames: 1})

	out, _, err := runCLI(t, []string{"takes"}, env.configPath)
	if err != nil {
		t.Fatalf("takes: %v", err)
	}
	requireContains(t, out, "01 04")
	requireContains(t, out, "05")

	out, _, err = runCLI(t, []string{"takes", "--action", "lift"}, env.configPath)
	if err != nil {
		t.Fatalf("takes --action: %v", err)
	}
	requireContains(t, out, "lift")
	requireContains(t, out, "01")
}

func TestTakesEmptyDataset(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.DatasetDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	out, _, err := runCLI(t, []string{"takes"}, env.configPath)
	if err != nil {
		t.Fatalf("takes: %v", err)
	}
	requireContains(t, out, "No actions found.")
}

func TestStatusWithoutLedger(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "No runs recorded yet.")
}

func TestDepsReportsStubbedFFmpeg(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.DatasetDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	out, _, err := runCLI(t, []string{"deps"}, env.configPath)
	if err != nil {
		t.Fatalf("deps: %v\n%s", err, out)
	}
	requireContains(t, out, "FFmpeg:")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "Video encoder:")
}

func TestStatusLineRendering(t *testing.T) {
	line := renderStatusLine("FFmpeg", statusError, "binary \"ffmpeg\" not found", false)
	requireContains(t, line, "FFmpeg:")
	requireContains(t, line, "[ERROR] binary")
	colored := renderStatusLine("FFmpeg", statusOK, "", true)
	if colored[:len(ansiGreen)] != ansiGreen {
		t.Fatalf("expected green prefix, got %q", colored)
	}
}
