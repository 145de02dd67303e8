package realsense

import (
	"encoding/binary"
	"fmt"
	"strings"

	"rsextract/internal/align"
	"rsextract/internal/frame"
)

// ColorRaster converts an image message into an RGB raster. Supported
// encodings are rgb8, bgr8, rgba8 and bgra8.
func ColorRaster(img *Image) (*frame.Color, error) {
	w, h := int(img.Width), int(img.Height)
	var channels int
	var swap bool
	switch strings.ToLower(img.Encoding) {
	case "rgb8":
		channels = 3
	case "bgr8":
		channels, swap = 3, true
	case "rgba8":
		channels = 4
	case "bgra8":
		channels, swap = 4, true
	default:
		return nil, fmt.Errorf("unsupported color encoding %q", img.Encoding)
	}
	step := int(img.Step)
	if step == 0 {
		step = w * channels
	}
	if step < w*channels || len(img.Data) < step*h {
		return nil, fmt.Errorf("color image %dx%d %s: %d bytes with step %d is too short", w, h, img.Encoding, len(img.Data), step)
	}

	out := frame.NewColor(w, h)
	for y := 0; y < h; y++ {
		row := img.Data[y*step:]
		for x := 0; x < w; x++ {
			px := row[x*channels:]
			if swap {
				out.Set(x, y, px[2], px[1], px[0])
			} else {
				out.Set(x, y, px[0], px[1], px[2])
			}
		}
	}
	return out, nil
}

// DepthRaster converts an image message into a raw 16-bit depth raster.
func DepthRaster(img *Image) (*frame.Depth, error) {
	switch strings.ToLower(img.Encoding) {
	case "mono16", "16uc1", "z16":
	default:
		return nil, fmt.Errorf("unsupported depth encoding %q", img.Encoding)
	}
	w, h := int(img.Width), int(img.Height)
	step := int(img.Step)
	if step == 0 {
		step = w * 2
	}
	if step < w*2 || len(img.Data) < step*h {
		return nil, fmt.Errorf("depth image %dx%d: %d bytes with step %d is too short", w, h, len(img.Data), step)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if img.BigEndian {
		order = binary.BigEndian
	}
	out := frame.NewDepth(w, h)
	for y := 0; y < h; y++ {
		row := img.Data[y*step:]
		for x := 0; x < w; x++ {
			out.Pix[y*w+x] = order.Uint16(row[2*x:])
		}
	}
	return out, nil
}

// Intrinsics converts a camera info message into the alignment model.
func (c *CameraInfo) Intrinsics() (align.Intrinsics, error) {
	model, err := align.ParseDistortionModel(c.DistortionModel)
	if err != nil {
		return align.Intrinsics{}, err
	}
	in := align.Intrinsics{
		Width:  int(c.Width),
		Height: int(c.Height),
		FX:     c.K[0],
		PPX:    c.K[2],
		FY:     c.K[4],
		PPY:    c.K[5],
		Model:  model,
	}
	copy(in.Coeffs[:], c.D)
	return in, in.Validate()
}

// Extrinsics converts a transform message into the alignment model.
func (t *Transform) Extrinsics() align.Extrinsics {
	return align.FromQuaternion(t.Rotation[0], t.Rotation[1], t.Rotation[2], t.Rotation[3], t.Translation)
}
