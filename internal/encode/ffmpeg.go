package encode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"rsextract/internal/frame"
	"rsextract/internal/logging"
)

const (
	defaultFFmpegCommand = "ffmpeg"
	defaultFFmpegCodec   = "mpeg4"
	stderrTail           = 4096
)

// ffmpegWriter pipes raw rgb24 frames into an ffmpeg process.
type ffmpegWriter struct {
	path   string
	width  int
	height int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	frames int
	closed bool
}

func ffmpegArgs(path string, opts VideoOptions) []string {
	codec := opts.Codec
	if codec == "" {
		codec = defaultFFmpegCodec
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", strconv.Itoa(opts.FPS),
		"-i", "-",
		"-an",
		"-c:v", codec,
	}
	if codec == defaultFFmpegCodec {
		args = append(args, "-q:v", "2", "-tag:v", "mp4v")
	}
	return append(args, "-pix_fmt", "yuv420p", path)
}

func newFFmpegWriter(ctx context.Context, path string, opts VideoOptions) (*ffmpegWriter, error) {
	command := strings.TrimSpace(opts.FFmpegCommand)
	if command == "" {
		command = defaultFFmpegCommand
	}
	cmd := exec.CommandContext(ctx, command, ffmpegArgs(path, opts)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stderr := &tailBuffer{limit: stderrTail}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}
	logging.NewComponentLogger(opts.Logger, "encode").Debug("ffmpeg started",
		logging.String("path", path),
		logging.Int("pid", cmd.Process.Pid),
	)
	return &ffmpegWriter{
		path:   path,
		width:  opts.Width,
		height: opts.Height,
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
	}, nil
}

func (w *ffmpegWriter) WriteFrame(c *frame.Color) error {
	if w.closed {
		return fmt.Errorf("write to closed video %s", w.path)
	}
	if err := checkSize(c, w.width, w.height); err != nil {
		return err
	}
	if _, err := w.stdin.Write(c.Pix); err != nil {
		return fmt.Errorf("ffmpeg write frame %d: %w (%s)", w.frames, err, w.stderr.String())
	}
	w.frames++
	return nil
}

// Close finishes the stream and waits for ffmpeg. A writer that received no
// frames kills ffmpeg instead, since ffmpeg fails on empty input, and removes
// whatever partial file it left so no empty video remains.
func (w *ffmpegWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.frames == 0 {
		_ = w.stdin.Close()
		_ = w.cmd.Process.Kill()
		_ = w.cmd.Wait()
		if err := os.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove empty video %s: %w", w.path, err)
		}
		return nil
	}
	if err := w.stdin.Close(); err != nil {
		_ = w.cmd.Process.Kill()
		_ = w.cmd.Wait()
		return fmt.Errorf("ffmpeg close input: %w", err)
	}
	if err := w.cmd.Wait(); err != nil {
		if tail := strings.TrimSpace(w.stderr.String()); tail != "" {
			return fmt.Errorf("ffmpeg %s: %w: %s", w.path, err, tail)
		}
		return fmt.Errorf("ffmpeg %s: %w", w.path, err)
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
