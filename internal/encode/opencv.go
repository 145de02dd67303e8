//go:build gocv

package encode

import (
	"fmt"

	"gocv.io/x/gocv"

	"rsextract/internal/frame"
)

// openCVWriter hands BGR frames to OpenCV's VideoWriter with the mp4v codec.
type openCVWriter struct {
	path   string
	width  int
	height int
	vw     *gocv.VideoWriter
	closed bool
}

func newOpenCVWriter(path string, opts VideoOptions) (VideoWriter, error) {
	vw, err := gocv.VideoWriterFile(path, "mp4v", float64(opts.FPS), opts.Width, opts.Height, true)
	if err != nil {
		return nil, fmt.Errorf("opencv video writer: %w", err)
	}
	if !vw.IsOpened() {
		_ = vw.Close()
		return nil, fmt.Errorf("opencv could not open %s", path)
	}
	return &openCVWriter{path: path, width: opts.Width, height: opts.Height, vw: vw}, nil
}

func (w *openCVWriter) WriteFrame(c *frame.Color) error {
	if w.closed {
		return fmt.Errorf("write to closed video %s", w.path)
	}
	if err := checkSize(c, w.width, w.height); err != nil {
		return err
	}
	mat, err := gocv.NewMatFromBytes(c.Height, c.Width, gocv.MatTypeCV8UC3, c.BGR())
	if err != nil {
		return fmt.Errorf("opencv frame: %w", err)
	}
	defer mat.Close()
	return w.vw.Write(mat)
}

func (w *openCVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.vw.Close()
}

// OpenCVAvailable reports whether the opencv backend was compiled in.
const OpenCVAvailable = true
