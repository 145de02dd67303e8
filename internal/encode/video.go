package encode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rsextract/internal/frame"
)

// Backend names a video encoder implementation.
type Backend string

const (
	BackendFFmpeg Backend = "ffmpeg"
	BackendX264   Backend = "x264"
	BackendOpenCV Backend = "opencv"
)

// ErrUnsupportedBackend is returned for unknown or unavailable backends.
var ErrUnsupportedBackend = errors.New("unsupported video backend")

// ParseBackend normalizes a configured backend name.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case BackendFFmpeg, BackendX264, BackendOpenCV:
		return b, nil
	case "":
		return BackendFFmpeg, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedBackend, name)
	}
}

// Extension returns the file extension (with dot) a backend writes.
func (b Backend) Extension() string {
	switch b {
	case BackendX264:
		return ".h264"
	default:
		return ".mov"
	}
}

// VideoWriter accepts frames of a fixed size in presentation order.
type VideoWriter interface {
	WriteFrame(*frame.Color) error
	Close() error
}

// VideoOptions configures OpenVideo.
type VideoOptions struct {
	Backend Backend
	Width   int
	Height  int
	FPS     int
	// FFmpegCommand overrides the ffmpeg binary.
	FFmpegCommand string
	// Codec is the ffmpeg codec; defaults to mpeg4.
	Codec  string
	Logger *slog.Logger
}

func (o VideoOptions) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("video size %dx%d is invalid", o.Width, o.Height)
	}
	if o.FPS <= 0 {
		return fmt.Errorf("video rate %d is invalid", o.FPS)
	}
	return nil
}

// OpenVideo creates path and returns a writer for the selected backend.
func OpenVideo(ctx context.Context, path string, opts VideoOptions) (VideoWriter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	switch opts.Backend {
	case BackendFFmpeg, "":
		return newFFmpegWriter(ctx, path, opts)
	case BackendX264:
		return newX264Writer(path, opts)
	case BackendOpenCV:
		return newOpenCVWriter(path, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, opts.Backend)
	}
}

func checkSize(c *frame.Color, width, height int) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Width != width || c.Height != height {
		return fmt.Errorf("frame is %dx%d, writer expects %dx%d", c.Width, c.Height, width, height)
	}
	return nil
}
