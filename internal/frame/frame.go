// Package frame holds the raster types exchanged between the stream decoder,
// the aligner and the output sinks.
package frame

import (
	"fmt"
	"image"
)

// Color is an 8-bit RGB raster stored row-major with a stride of 3*Width.
type Color struct {
	Width  int
	Height int
	Pix    []byte
}

// NewColor allocates a black color raster.
func NewColor(width, height int) *Color {
	return &Color{Width: width, Height: height, Pix: make([]byte, width*height*3)}
}

// At returns the RGB triple at (x, y).
func (c *Color) At(x, y int) (r, g, b byte) {
	i := (y*c.Width + x) * 3
	return c.Pix[i], c.Pix[i+1], c.Pix[i+2]
}

// Set writes the RGB triple at (x, y).
func (c *Color) Set(x, y int, r, g, b byte) {
	i := (y*c.Width + x) * 3
	c.Pix[i], c.Pix[i+1], c.Pix[i+2] = r, g, b
}

// Validate checks that Pix matches the declared dimensions.
func (c *Color) Validate() error {
	if c == nil {
		return fmt.Errorf("color raster is nil")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("color raster has invalid size %dx%d", c.Width, c.Height)
	}
	if len(c.Pix) != c.Width*c.Height*3 {
		return fmt.Errorf("color raster %dx%d has %d bytes, want %d", c.Width, c.Height, len(c.Pix), c.Width*c.Height*3)
	}
	return nil
}

// RGBA converts the raster into an opaque image.RGBA.
func (c *Color) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	for src, dst := 0, 0; src < len(c.Pix); src, dst = src+3, dst+4 {
		img.Pix[dst] = c.Pix[src]
		img.Pix[dst+1] = c.Pix[src+1]
		img.Pix[dst+2] = c.Pix[src+2]
		img.Pix[dst+3] = 0xff
	}
	return img
}

// BGR returns the pixels in blue-green-red order.
func (c *Color) BGR() []byte {
	out := make([]byte, len(c.Pix))
	for i := 0; i+2 < len(c.Pix); i += 3 {
		out[i], out[i+1], out[i+2] = c.Pix[i+2], c.Pix[i+1], c.Pix[i]
	}
	return out
}

// Depth is a single-channel 16-bit raster of raw sensor units.
type Depth struct {
	Width  int
	Height int
	Pix    []uint16
}

// NewDepth allocates a zero (no data) depth raster.
func NewDepth(width, height int) *Depth {
	return &Depth{Width: width, Height: height, Pix: make([]uint16, width*height)}
}

// At returns the raw depth value at (x, y).
func (d *Depth) At(x, y int) uint16 {
	return d.Pix[y*d.Width+x]
}

// Validate checks that Pix matches the declared dimensions.
func (d *Depth) Validate() error {
	if d == nil {
		return fmt.Errorf("depth raster is nil")
	}
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("depth raster has invalid size %dx%d", d.Width, d.Height)
	}
	if len(d.Pix) != d.Width*d.Height {
		return fmt.Errorf("depth raster %dx%d has %d samples, want %d", d.Width, d.Height, len(d.Pix), d.Width*d.Height)
	}
	return nil
}

// Gray16 converts the raster into an image.Gray16 without any scaling.
func (d *Depth) Gray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, d.Width, d.Height))
	for i, v := range d.Pix {
		img.Pix[2*i] = byte(v >> 8)
		img.Pix[2*i+1] = byte(v)
	}
	return img
}

// HConcat places a and b side by side. Both rasters must share a height.
func HConcat(a, b *Color) (*Color, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if a.Height != b.Height {
		return nil, fmt.Errorf("hconcat: height mismatch %d vs %d", a.Height, b.Height)
	}
	out := NewColor(a.Width+b.Width, a.Height)
	rowA, rowB, rowOut := a.Width*3, b.Width*3, out.Width*3
	for y := 0; y < a.Height; y++ {
		copy(out.Pix[y*rowOut:], a.Pix[y*rowA:(y+1)*rowA])
		copy(out.Pix[y*rowOut+rowA:], b.Pix[y*rowB:(y+1)*rowB])
	}
	return out, nil
}
