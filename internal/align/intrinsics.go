// Package align reprojects depth rasters into a color camera's viewpoint.
//
// The camera model follows the RealSense SDK: pinhole intrinsics with one of
// several lens distortion models, plus a rigid extrinsic transform between
// the depth and color sensors. Depth pixels are deprojected to 3D, moved into
// the color sensor frame, projected onto the color image plane and splatted
// over the covered color pixels, keeping the nearest surface.
package align

import (
	"fmt"
	"math"
	"strings"
)

// DistortionModel identifies a lens distortion model.
type DistortionModel int

const (
	DistortionNone DistortionModel = iota
	DistortionModifiedBrownConrady
	DistortionInverseBrownConrady
	DistortionBrownConrady
	DistortionFTheta
)

func (m DistortionModel) String() string {
	switch m {
	case DistortionModifiedBrownConrady:
		return "Modified Brown Conrady"
	case DistortionInverseBrownConrady:
		return "Inverse Brown Conrady"
	case DistortionBrownConrady:
		return "Brown Conrady"
	case DistortionFTheta:
		return "Ftheta"
	default:
		return "None"
	}
}

// ParseDistortionModel maps the model names found in RealSense recordings
// (and the ROS plumb_bob alias) onto a DistortionModel.
func ParseDistortionModel(name string) (DistortionModel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return DistortionNone, nil
	case "modified brown conrady":
		return DistortionModifiedBrownConrady, nil
	case "inverse brown conrady":
		return DistortionInverseBrownConrady, nil
	case "brown conrady", "plumb_bob":
		return DistortionBrownConrady, nil
	case "ftheta":
		return DistortionFTheta, nil
	default:
		return DistortionNone, fmt.Errorf("unsupported distortion model %q", name)
	}
}

// Intrinsics describes a pinhole camera with lens distortion.
type Intrinsics struct {
	Width  int
	Height int
	PPX    float64
	PPY    float64
	FX     float64
	FY     float64
	Model  DistortionModel
	Coeffs [5]float64
}

// Validate rejects intrinsics that cannot project anything.
func (in Intrinsics) Validate() error {
	if in.Width <= 0 || in.Height <= 0 {
		return fmt.Errorf("intrinsics: invalid size %dx%d", in.Width, in.Height)
	}
	if in.FX == 0 || in.FY == 0 {
		return fmt.Errorf("intrinsics: zero focal length")
	}
	if in.Model == DistortionFTheta && in.Coeffs[0] == 0 {
		return fmt.Errorf("intrinsics: ftheta model needs a non-zero first coefficient")
	}
	return nil
}

const undistortIterations = 10

// undistorted reports whether the lens model is a plain pinhole. Brown-Conrady
// variants with all-zero coefficients reduce to one.
func (in Intrinsics) undistorted() bool {
	return in.Model == DistortionNone || (in.Model != DistortionFTheta && in.Coeffs == [5]float64{})
}

// Deproject maps a pixel and its depth (in metres) to a 3D point in the
// camera frame.
func (in Intrinsics) Deproject(px, py, depth float64) [3]float64 {
	x, y := in.Ray(px, py)
	return [3]float64{depth * x, depth * y, depth}
}

// Ray returns the normalized image-plane coordinates (z = 1) for a pixel.
func (in Intrinsics) Ray(px, py float64) (float64, float64) {
	x := (px - in.PPX) / in.FX
	y := (py - in.PPY) / in.FY
	if in.undistorted() {
		return x, y
	}
	xo, yo := x, y
	c := in.Coeffs

	switch in.Model {
	case DistortionInverseBrownConrady:
		for i := 0; i < undistortIterations; i++ {
			r2 := x*x + y*y
			icdist := 1 / (1 + ((c[4]*r2+c[1])*r2+c[0])*r2)
			xq := x / icdist
			yq := y / icdist
			dx := 2*c[2]*xq*yq + c[3]*(r2+2*xq*xq)
			dy := 2*c[3]*xq*yq + c[2]*(r2+2*yq*yq)
			x = (xo - dx) * icdist
			y = (yo - dy) * icdist
		}
	case DistortionBrownConrady:
		for i := 0; i < undistortIterations; i++ {
			r2 := x*x + y*y
			icdist := 1 / (1 + ((c[4]*r2+c[1])*r2+c[0])*r2)
			dx := 2*c[2]*x*y + c[3]*(r2+2*x*x)
			dy := 2*c[3]*x*y + c[2]*(r2+2*y*y)
			x = (xo - dx) * icdist
			y = (yo - dy) * icdist
		}
	case DistortionFTheta:
		rd := math.Sqrt(x*x + y*y)
		if rd < math.SmallestNonzeroFloat32 {
			rd = math.SmallestNonzeroFloat32
		}
		r := math.Tan(c[0]*rd) / math.Atan(2*math.Tan(c[0]/2))
		x *= r / rd
		y *= r / rd
	}
	return x, y
}

// Project maps a 3D point in the camera frame to pixel coordinates.
func (in Intrinsics) Project(p [3]float64) (float64, float64) {
	x := p[0] / p[2]
	y := p[1] / p[2]
	if in.undistorted() {
		return x*in.FX + in.PPX, y*in.FY + in.PPY
	}
	c := in.Coeffs

	switch in.Model {
	case DistortionModifiedBrownConrady, DistortionInverseBrownConrady:
		r2 := x*x + y*y
		f := 1 + c[0]*r2 + c[1]*r2*r2 + c[4]*r2*r2*r2
		x *= f
		y *= f
		dx := x + 2*c[2]*x*y + c[3]*(r2+2*x*x)
		dy := y + 2*c[3]*x*y + c[2]*(r2+2*y*y)
		x, y = dx, dy
	case DistortionBrownConrady:
		r2 := x*x + y*y
		f := 1 + c[0]*r2 + c[1]*r2*r2 + c[4]*r2*r2*r2
		xf := x * f
		yf := y * f
		dx := xf + 2*c[2]*x*y + c[3]*(r2+2*x*x)
		dy := yf + 2*c[3]*x*y + c[2]*(r2+2*y*y)
		x, y = dx, dy
	case DistortionFTheta:
		r := math.Sqrt(x*x + y*y)
		if r < math.SmallestNonzeroFloat32 {
			r = math.SmallestNonzeroFloat32
		}
		rd := 1 / c[0] * math.Atan(2*r*math.Tan(c[0]/2))
		x *= rd / r
		y *= rd / r
	}
	return x*in.FX + in.PPX, y*in.FY + in.PPY
}
