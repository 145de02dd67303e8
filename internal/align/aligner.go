package align

import (
	"fmt"

	"rsextract/internal/frame"
)

// Aligner reprojects depth rasters from one depth sensor into one color
// sensor. The depth camera's pixel-corner rays are computed once by
// NewAligner, so a single Aligner should be reused for every frame of a
// stream. It is not safe for concurrent use.
type Aligner struct {
	depth      Intrinsics
	color      Intrinsics
	depthToCol Extrinsics
	scale      float64

	// corners holds the ray through every pixel corner, row-major over a
	// (width+1) x (height+1) grid. Pixel (x, y) spans corners (x, y) to
	// (x+1, y+1).
	corners [][2]float64
}

// NewAligner validates the camera model and precomputes the depth rays.
// depthScale converts raw depth units to metres.
func NewAligner(depth, color Intrinsics, depthToColor Extrinsics, depthScale float64) (*Aligner, error) {
	if err := depth.Validate(); err != nil {
		return nil, fmt.Errorf("depth %w", err)
	}
	if err := color.Validate(); err != nil {
		return nil, fmt.Errorf("color %w", err)
	}
	if depthScale <= 0 {
		return nil, fmt.Errorf("depth scale must be positive, got %g", depthScale)
	}
	a := &Aligner{depth: depth, color: color, depthToCol: depthToColor, scale: depthScale}
	a.corners = cornerRays(depth)
	return a, nil
}

// Output returns the dimensions of aligned rasters (the color camera's).
func (a *Aligner) Output() (width, height int) {
	return a.color.Width, a.color.Height
}

func cornerRays(in Intrinsics) [][2]float64 {
	stride := in.Width + 1
	rays := make([][2]float64, stride*(in.Height+1))
	for y := 0; y <= in.Height; y++ {
		for x := 0; x <= in.Width; x++ {
			rx, ry := in.Ray(float64(x)-0.5, float64(y)-0.5)
			rays[y*stride+x] = [2]float64{rx, ry}
		}
	}
	return rays
}

// Align returns a new raster with the color camera's dimensions in which
// pixel (x, y) holds the depth of the surface seen by color pixel (x, y).
// Raw units are preserved; pixels that no depth sample lands on stay zero.
func (a *Aligner) Align(depth *frame.Depth) (*frame.Depth, error) {
	if err := depth.Validate(); err != nil {
		return nil, err
	}
	if depth.Width != a.depth.Width || depth.Height != a.depth.Height {
		return nil, fmt.Errorf("depth raster %dx%d does not match intrinsics %dx%d",
			depth.Width, depth.Height, a.depth.Width, a.depth.Height)
	}
	stride := a.depth.Width + 1
	out := frame.NewDepth(a.color.Width, a.color.Height)
	for i, raw := range depth.Pix {
		if raw == 0 {
			continue
		}
		z := float64(raw) * a.scale

		c := i/a.depth.Width*stride + i%a.depth.Width
		tl, br := a.corners[c], a.corners[c+stride+1]
		p0 := a.depthToCol.Apply([3]float64{tl[0] * z, tl[1] * z, z})
		p1 := a.depthToCol.Apply([3]float64{br[0] * z, br[1] * z, z})
		if p0[2] <= 0 || p1[2] <= 0 {
			continue
		}
		px0, py0 := a.color.Project(p0)
		px1, py1 := a.color.Project(p1)
		x0, y0 := int(px0+0.5), int(py0+0.5)
		x1, y1 := int(px1+0.5), int(py1+0.5)

		if x0 < 0 || y0 < 0 || x1 >= a.color.Width || y1 >= a.color.Height {
			continue
		}
		for y := y0; y <= y1; y++ {
			row := y * a.color.Width
			for x := x0; x <= x1; x++ {
				cur := out.Pix[row+x]
				if cur == 0 || raw < cur {
					out.Pix[row+x] = raw
				}
			}
		}
	}
	return out, nil
}
