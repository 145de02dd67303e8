package encode

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"rsextract/internal/frame"
)

// FrameName returns the file name for frame index i.
func FrameName(i int) string {
	return fmt.Sprintf("frame_%04d.png", i)
}

// ImageSequence writes one PNG per frame index into a directory.
type ImageSequence struct {
	dir string
	enc png.Encoder
}

// NewImageSequence targets dir, which must already exist.
func NewImageSequence(dir string, level png.CompressionLevel) *ImageSequence {
	return &ImageSequence{dir: dir, enc: png.Encoder{CompressionLevel: level}}
}

// Dir returns the target directory.
func (s *ImageSequence) Dir() string { return s.dir }

// Path returns where frame i is written.
func (s *ImageSequence) Path(i int) string {
	return filepath.Join(s.dir, FrameName(i))
}

// WriteColor stores an 8-bit RGB frame.
func (s *ImageSequence) WriteColor(i int, c *frame.Color) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.write(i, c.RGBA())
}

// WriteDepth stores raw depth as 16-bit grayscale.
func (s *ImageSequence) WriteDepth(i int, d *frame.Depth) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return s.write(i, d.Gray16())
}

func (s *ImageSequence) write(i int, img image.Image) error {
	path := s.Path(i)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := s.enc.Encode(w, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
