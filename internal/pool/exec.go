package pool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"rsextract/internal/dataset"
	"rsextract/internal/take"
)

var commandContext = exec.CommandContext

// ErrWorkerFailed marks a worker process that exited without a status report.
var ErrWorkerFailed = errors.New("worker process failed")

const stderrTailLines = 5

// ExecRunner runs each take in a fresh `rsextract worker` process.
type ExecRunner struct {
	// Binary is the rsextract executable; defaults to the running binary.
	Binary string
	// ConfigPath is passed to the worker with --config when set.
	ConfigPath string
	// LogLevel is passed to the worker with --log-level when set.
	LogLevel string
	// Env is appended to the worker environment.
	Env []string
}

// Args returns the worker command line for job, without the binary.
func (r ExecRunner) Args(job dataset.Job) []string {
	var args []string
	if r.ConfigPath != "" {
		args = append(args, "--config", r.ConfigPath)
	}
	if r.LogLevel != "" {
		args = append(args, "--log-level", r.LogLevel)
	}
	return append(args, "worker", "--action", job.Action, "--take", strconv.Itoa(job.Take), "--json")
}

// Run executes the worker and decodes the status line it prints. A worker
// that dies or prints no report yields an Error status.
func (r ExecRunner) Run(ctx context.Context, job dataset.Job) take.Status {
	binary := r.Binary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return failed(job, 0, fmt.Errorf("%w: locate executable: %w", ErrWorkerFailed, err))
		}
		binary = exe
	}

	var stdout, stderr bytes.Buffer
	cmd := commandContext(ctx, binary, r.Args(job)...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if status, err := lastReport(stdout.Bytes()); err == nil {
		return status
	} else if runErr == nil {
		runErr = err
	}
	cause := fmt.Errorf("%w: %w", ErrWorkerFailed, runErr)
	if tail := tailLines(stderr.String(), stderrTailLines); tail != "" {
		cause = fmt.Errorf("%w: %s", cause, tail)
	}
	return failed(job, elapsed, cause)
}

func failed(job dataset.Job, elapsed time.Duration, err error) take.Status {
	return take.Status{Kind: take.StatusError, Action: job.Action, Take: job.Take, Err: err, Duration: elapsed}
}

// lastReport decodes the last non-empty line of out.
func lastReport(out []byte) (take.Status, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}
		return take.ParseReport(line)
	}
	return take.Status{}, errors.New("worker printed no status report")
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
