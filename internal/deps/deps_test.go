package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, executableName(name))
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, t.TempDir(), "present")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Optional", Command: "also-not-present-binary", Optional: true},
		{Name: "Blank"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[3].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[3].Detail)
	}

	missing := Missing(results)
	if len(missing) != 2 || missing[0].Name != "Missing" || missing[1].Name != "Blank" {
		t.Fatalf("Missing() = %#v", missing)
	}
}

func TestCheckFFmpegConfiguredCommand(t *testing.T) {
	ffmpeg := writeStub(t, t.TempDir(), "my-ffmpeg")
	status := CheckFFmpeg(ffmpeg)
	if !status.Available || status.Command != ffmpeg {
		t.Fatalf("unexpected status %#v", status)
	}

	status = CheckFFmpeg(filepath.Join(t.TempDir(), "absent-ffmpeg"))
	if status.Available || status.Detail == "" {
		t.Fatalf("expected unavailable configured binary, got %#v", status)
	}
}

func TestCheckFFmpegFromPath(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeStub(t, dir, "ffmpeg")
	t.Setenv("PATH", dir)

	status := CheckFFmpeg("")
	if !status.Available {
		t.Fatalf("expected ffmpeg on PATH, got %#v", status)
	}
	// The test binary's directory never holds an ffmpeg, so PATH wins.
	if status.Command != ffmpeg {
		t.Fatalf("resolved %q, want %q", status.Command, ffmpeg)
	}

	t.Setenv("PATH", t.TempDir())
	if status := CheckFFmpeg(""); status.Available {
		t.Fatalf("expected ffmpeg to be missing, got %#v", status)
	}
}
