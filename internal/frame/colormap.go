package frame

import "math"

// DefaultDepthAlpha maps roughly 0..8.5m of millimetre depth onto 0..255.
const DefaultDepthAlpha = 0.03

var jet = buildJet()

func buildJet() [256][3]byte {
	var lut [256][3]byte
	for i := range lut {
		v := float64(i) / 255
		lut[i] = [3]byte{
			unit(1.5 - math.Abs(4*v-3)),
			unit(1.5 - math.Abs(4*v-2)),
			unit(1.5 - math.Abs(4*v-1)),
		}
	}
	return lut
}

func unit(v float64) byte {
	return saturate(v * 255)
}

func saturate(v float64) byte {
	v = math.RoundToEven(v)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return byte(v)
	}
}

// ScaleAbs linearly maps a raw depth value to 8 bits: saturate(|v*alpha|).
func ScaleAbs(v uint16, alpha float64) byte {
	return saturate(math.Abs(float64(v) * alpha))
}

// Colorizer renders depth rasters as JET false-color images for preview
// video. Input rasters are never modified.
type Colorizer struct {
	alpha float64
	lut   [65536]byte
}

// NewColorizer precomputes the 16-to-8 bit scaling table for alpha.
func NewColorizer(alpha float64) *Colorizer {
	c := &Colorizer{alpha: alpha}
	for v := range c.lut {
		c.lut[v] = ScaleAbs(uint16(v), alpha)
	}
	return c
}

// Alpha returns the configured scale factor.
func (c *Colorizer) Alpha() float64 {
	return c.alpha
}

// Colorize returns a new color raster for d.
func (c *Colorizer) Colorize(d *Depth) *Color {
	out := NewColor(d.Width, d.Height)
	for i, v := range d.Pix {
		rgb := jet[c.lut[v]]
		out.Pix[3*i] = rgb[0]
		out.Pix[3*i+1] = rgb[1]
		out.Pix[3*i+2] = rgb[2]
	}
	return out
}

// JET returns the colormap entry for an 8-bit intensity.
func JET(v byte) (r, g, b byte) {
	e := jet[v]
	return e[0], e[1], e[2]
}
