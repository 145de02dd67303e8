package realsense

import (
	"fmt"
	"time"
)

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32
	Stamp   time.Time
	FrameID string
}

func (d *decoder) header() Header {
	return Header{Seq: d.u32(), Stamp: d.time(), FrameID: d.str()}
}

// Image is sensor_msgs/Image.
type Image struct {
	Header    Header
	Height    uint32
	Width     uint32
	Encoding  string
	BigEndian bool
	Step      uint32
	Data      []byte
}

// DecodeImage parses a serialized sensor_msgs/Image.
func DecodeImage(b []byte) (*Image, error) {
	d := &decoder{buf: b}
	img := &Image{
		Header:    d.header(),
		Height:    d.u32(),
		Width:     d.u32(),
		Encoding:  d.str(),
		BigEndian: d.u8() != 0,
		Step:      d.u32(),
		Data:      d.bytes(),
	}
	if d.err != nil {
		return nil, fmt.Errorf("decode sensor_msgs/Image: %w", d.err)
	}
	return img, nil
}

// CameraInfo is the subset of sensor_msgs/CameraInfo needed for alignment.
type CameraInfo struct {
	Header          Header
	Height          uint32
	Width           uint32
	DistortionModel string
	D               []float64
	K               [9]float64
}

// DecodeCameraInfo parses a serialized sensor_msgs/CameraInfo. Fields after
// K (R, P, binning, ROI) are not needed and not read.
func DecodeCameraInfo(b []byte) (*CameraInfo, error) {
	d := &decoder{buf: b}
	info := &CameraInfo{
		Header:          d.header(),
		Height:          d.u32(),
		Width:           d.u32(),
		DistortionModel: d.str(),
	}
	info.D = d.f64s(int(d.u32()))
	copy(info.K[:], d.f64s(9))
	if d.err != nil {
		return nil, fmt.Errorf("decode sensor_msgs/CameraInfo: %w", d.err)
	}
	return info, nil
}

// Transform is geometry_msgs/Transform.
type Transform struct {
	Translation [3]float64
	Rotation    [4]float64 // x, y, z, w
}

// DecodeTransform parses a serialized geometry_msgs/Transform.
func DecodeTransform(b []byte) (*Transform, error) {
	d := &decoder{buf: b}
	tf := &Transform{}
	for i := range tf.Translation {
		tf.Translation[i] = d.f64()
	}
	for i := range tf.Rotation {
		tf.Rotation[i] = d.f64()
	}
	if d.err != nil {
		return nil, fmt.Errorf("decode geometry_msgs/Transform: %w", d.err)
	}
	return tf, nil
}

// StreamInfo is realsense_msgs/StreamInfo.
type StreamInfo struct {
	FPS           uint32
	Encoding      string
	IsRecommended bool
}

// DecodeStreamInfo parses a serialized realsense_msgs/StreamInfo.
func DecodeStreamInfo(b []byte) (*StreamInfo, error) {
	d := &decoder{buf: b}
	info := &StreamInfo{FPS: d.u32(), Encoding: d.str(), IsRecommended: d.u8() != 0}
	if d.err != nil {
		return nil, fmt.Errorf("decode realsense_msgs/StreamInfo: %w", d.err)
	}
	return info, nil
}

// DecodeFloat32 parses a serialized std_msgs/Float32.
func DecodeFloat32(b []byte) (float32, error) {
	d := &decoder{buf: b}
	v := d.f32()
	if d.err != nil {
		return 0, fmt.Errorf("decode std_msgs/Float32: %w", d.err)
	}
	return v, nil
}
