package testsupport

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"rsextract/internal/realsense"
	"rsextract/internal/rosbag/bagtest"
)

// Recording describes a synthetic RealSense recording. Zero values select a
// small 8x6 rgb8/mono16 recording at 15 fps with one depth unit of 1mm.
type Recording struct {
	Width, Height int
	FPS           int
	Frames        int
	Start         time.Time

	// DropDepth and DropColor list frame numbers whose depth or color image
	// is omitted, leaving an incomplete frame set.
	DropDepth []int
	DropColor []int

	ColorEncoding string
	DepthScale    float32
	Compression   bagtest.Compression

	// DepthValue returns the raw depth for every pixel of a frame. The
	// default is 1000 + frame.
	DepthValue func(frame int) uint16
	// ColorValue returns the RGB fill of a frame. The default varies per
	// frame so frames can be told apart.
	ColorValue func(frame int) (r, g, b byte)

	// TruncateBytes cuts this many bytes off the end of the file.
	TruncateBytes int
	// SkipColorInfo omits the color camera model.
	SkipColorInfo bool

	// DepthModel and ColorModel override the camera models.
	DepthModel CameraModel
	ColorModel CameraModel
	// ColorOffset is the color sensor's position in the depth sensor's frame,
	// in metres.
	ColorOffset [3]float64
}

// CameraModel is a synthetic camera_info. Zero focal lengths select
// fx = fy = width with the principal point at the image centre, and an empty
// Distortion selects "none".
type CameraModel struct {
	Distortion string
	Coeffs     [5]float64
	FX, FY     float64
	PPX, PPY   float64
}

func (m CameraModel) withDefaults(width, height int) CameraModel {
	if m.Distortion == "" {
		m.Distortion = "none"
	}
	if m.FX == 0 || m.FY == 0 {
		m.FX, m.FY = float64(width), float64(width)
		m.PPX, m.PPY = float64(width)/2, float64(height)/2
	}
	return m
}

// D4xxDepthModel and D4xxColorModel approximate what a D400-series camera
// reports at width x height: Brown-Conrady depth optics and an
// Inverse-Brown-Conrady color lens.
func D4xxDepthModel(width, height int) CameraModel {
	f := 0.6 * float64(width)
	return CameraModel{
		Distortion: "Brown Conrady",
		Coeffs:     [5]float64{0.012, -0.006, 0.0004, -0.0003, 0.001},
		FX:         f, FY: f,
		PPX: float64(width)/2 - 1.3, PPY: float64(height)/2 + 0.7,
	}
}

func D4xxColorModel(width, height int) CameraModel {
	f := 0.95 * float64(width)
	return CameraModel{
		Distortion: "Inverse Brown Conrady",
		Coeffs:     [5]float64{-0.055, 0.066, 0.0002, 0.0006, -0.021},
		FX:         f, FY: f,
		PPX: float64(width)/2 + 2.1, PPY: float64(height)/2 - 0.4,
	}
}

// D4xxBaseline is the color sensor offset used with the D4xx models.
var D4xxBaseline = [3]float64{0.015, 0.0002, 0.0001}

func (r *Recording) defaults() {
	if r.Width == 0 {
		r.Width = 8
	}
	if r.Height == 0 {
		r.Height = 6
	}
	if r.FPS == 0 {
		r.FPS = 15
	}
	if r.Start.IsZero() {
		r.Start = time.Unix(1700000000, 0)
	}
	if r.ColorEncoding == "" {
		r.ColorEncoding = "rgb8"
	}
	if r.Compression == "" {
		r.Compression = bagtest.CompressionNone
	}
	if r.DepthValue == nil {
		r.DepthValue = func(frame int) uint16 { return uint16(1000 + frame) }
	}
	if r.ColorValue == nil {
		r.ColorValue = func(frame int) (byte, byte, byte) {
			return byte(10 + frame), byte(100 + frame), byte(200 - frame)
		}
	}
}

// WriteRecording writes rec to path as a RealSense bag.
func WriteRecording(t testing.TB, path string, rec Recording) {
	t.Helper()
	rec.defaults()

	var buf bytes.Buffer
	w, err := bagtest.NewWriter(&buf, bagtest.WithCompression(rec.Compression), bagtest.WithChunkMessages(8))
	if err != nil {
		t.Fatalf("bag writer: %v", err)
	}
	write := func(topic, msgType string, at time.Time, data []byte) {
		t.Helper()
		if err := w.Write(topic, msgType, at, data); err != nil {
			t.Fatalf("write %s: %v", topic, err)
		}
	}

	start := rec.Start
	write(realsense.DepthStreamInfoTopic, "realsense_msgs/StreamInfo", start, EncodeStreamInfo(uint32(rec.FPS), "mono16"))
	write(realsense.ColorStreamInfoTopic, "realsense_msgs/StreamInfo", start, EncodeStreamInfo(uint32(rec.FPS), rec.ColorEncoding))
	write(realsense.DepthCameraInfoTopic, "sensor_msgs/CameraInfo", start, EncodeCameraInfo(rec.Width, rec.Height, rec.DepthModel, start))
	if !rec.SkipColorInfo {
		write(realsense.ColorCameraInfoTopic, "sensor_msgs/CameraInfo", start, EncodeCameraInfo(rec.Width, rec.Height, rec.ColorModel, start))
	}
	write(realsense.DepthExtrinsicsTopic, "geometry_msgs/Transform", start, EncodeTransform([3]float64{}, [4]float64{0, 0, 0, 1}))
	write(realsense.ColorExtrinsicsTopic, "geometry_msgs/Transform", start, EncodeTransform(rec.ColorOffset, [4]float64{0, 0, 0, 1}))
	if rec.DepthScale > 0 {
		write(realsense.DepthUnitsTopic, "std_msgs/Float32", start, EncodeFloat32(rec.DepthScale))
	}

	period := time.Second / time.Duration(rec.FPS)
	for i := 0; i < rec.Frames; i++ {
		at := start.Add(time.Duration(i+1) * period)
		if !slices.Contains(rec.DropDepth, i) {
			write(realsense.DepthImageTopic, "sensor_msgs/Image", at, EncodeDepthImage(rec.Width, rec.Height, rec.DepthValue(i), at))
		}
		if !slices.Contains(rec.DropColor, i) {
			r, g, b := rec.ColorValue(i)
			write(realsense.ColorImageTopic, "sensor_msgs/Image", at, EncodeColorImage(rec.Width, rec.Height, rec.ColorEncoding, r, g, b, at))
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close bag writer: %v", err)
	}

	data := buf.Bytes()
	if rec.TruncateBytes > 0 && rec.TruncateBytes < len(data) {
		data = data[:len(data)-rec.TruncateBytes]
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

type encoder struct{ buf bytes.Buffer }

func (e *encoder) u8(v uint8)    { e.buf.WriteByte(v) }
func (e *encoder) u32(v uint32)  { e.buf.Write(binary.LittleEndian.AppendUint32(nil, v)) }
func (e *encoder) f32(v float32) { e.u32(math.Float32bits(v)) }
func (e *encoder) f64(v float64) {
	e.buf.Write(binary.LittleEndian.AppendUint64(nil, math.Float64bits(v)))
}
func (e *encoder) str(s string) { e.bytes([]byte(s)) }
func (e *encoder) bytes(b []byte) {
	e.u32(uint32(len(b)))
	e.buf.Write(b)
}
func (e *encoder) time(t time.Time) {
	e.u32(uint32(t.Unix()))
	e.u32(uint32(t.Nanosecond()))
}
func (e *encoder) header(at time.Time) {
	e.u32(0)
	e.time(at)
	e.str("")
}

// EncodeImage serializes a sensor_msgs/Image.
func EncodeImage(width, height int, encoding string, step int, data []byte, at time.Time) []byte {
	var e encoder
	e.header(at)
	e.u32(uint32(height))
	e.u32(uint32(width))
	e.str(encoding)
	e.u8(0)
	e.u32(uint32(step))
	e.bytes(data)
	return e.buf.Bytes()
}

// EncodeDepthImage serializes a mono16 image filled with value.
func EncodeDepthImage(width, height int, value uint16, at time.Time) []byte {
	data := make([]byte, 0, width*height*2)
	for i := 0; i < width*height; i++ {
		data = binary.LittleEndian.AppendUint16(data, value)
	}
	return EncodeImage(width, height, "mono16", width*2, data, at)
}

// EncodeColorImage serializes an 8-bit color image filled with (r, g, b).
// encoding decides the channel order written.
func EncodeColorImage(width, height int, encoding string, r, g, b byte, at time.Time) []byte {
	var px []byte
	switch encoding {
	case "bgr8":
		px = []byte{b, g, r}
	case "rgba8":
		px = []byte{r, g, b, 255}
	case "bgra8":
		px = []byte{b, g, r, 255}
	default:
		px = []byte{r, g, b}
	}
	data := bytes.Repeat(px, width*height)
	return EncodeImage(width, height, encoding, width*len(px), data, at)
}

// EncodeCameraInfo serializes a sensor_msgs/CameraInfo for model.
func EncodeCameraInfo(width, height int, model CameraModel, at time.Time) []byte {
	m := model.withDefaults(width, height)
	var e encoder
	e.header(at)
	e.u32(uint32(height))
	e.u32(uint32(width))
	e.str(m.Distortion)
	e.u32(5)
	for _, c := range m.Coeffs {
		e.f64(c)
	}
	k := [9]float64{m.FX, 0, m.PPX, 0, m.FY, m.PPY, 0, 0, 1}
	for _, v := range k {
		e.f64(v)
	}
	// R and P are not read back.
	for i := 0; i < 9+12; i++ {
		e.f64(0)
	}
	return e.buf.Bytes()
}

// EncodeTransform serializes a geometry_msgs/Transform.
func EncodeTransform(translation [3]float64, rotation [4]float64) []byte {
	var e encoder
	for _, v := range translation {
		e.f64(v)
	}
	for _, v := range rotation {
		e.f64(v)
	}
	return e.buf.Bytes()
}

// EncodeStreamInfo serializes a realsense_msgs/StreamInfo.
func EncodeStreamInfo(fps uint32, encoding string) []byte {
	var e encoder
	e.u32(fps)
	e.str(encoding)
	e.u8(1)
	return e.buf.Bytes()
}

// EncodeFloat32 serializes a std_msgs/Float32.
func EncodeFloat32(v float32) []byte {
	var e encoder
	e.f32(v)
	return e.buf.Bytes()
}
