package encode

import (
	"bufio"
	"fmt"
	"os"

	"github.com/gen2brain/x264-go"

	"rsextract/internal/frame"
)

// x264Writer encodes H.264 in-process and writes an Annex-B elementary
// stream.
type x264Writer struct {
	path   string
	width  int
	height int
	file   *os.File
	out    *bufio.Writer
	enc    *x264.Encoder
	closed bool
}

func newX264Writer(path string, opts VideoOptions) (*x264Writer, error) {
	if opts.Width%2 != 0 || opts.Height%2 != 0 {
		return nil, fmt.Errorf("x264 needs even dimensions, got %dx%d", opts.Width, opts.Height)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	out := bufio.NewWriterSize(f, 1<<20)
	enc, err := x264.NewEncoder(out, &x264.Options{
		Width:     opts.Width,
		Height:    opts.Height,
		FrameRate: opts.FPS,
		Preset:    "veryfast",
		Tune:      "stillimage",
		Profile:   "high",
		LogLevel:  x264.LogError,
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("x264 encoder: %w", err)
	}
	return &x264Writer{path: path, width: opts.Width, height: opts.Height, file: f, out: out, enc: enc}, nil
}

func (w *x264Writer) WriteFrame(c *frame.Color) error {
	if w.closed {
		return fmt.Errorf("write to closed video %s", w.path)
	}
	if err := checkSize(c, w.width, w.height); err != nil {
		return err
	}
	if err := w.enc.Encode(c.RGBA()); err != nil {
		return fmt.Errorf("x264 encode: %w", err)
	}
	return nil
}

func (w *x264Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.enc.Flush()
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if ferr := w.out.Flush(); err == nil {
		err = ferr
	}
	if ferr := w.file.Close(); err == nil {
		err = ferr
	}
	if err != nil {
		return fmt.Errorf("x264 finish %s: %w", w.path, err)
	}
	return nil
}
