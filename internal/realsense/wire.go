package realsense

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"rsextract/internal/rosbag"
)

// ErrShortMessage is returned when a payload ends before its declared fields.
var ErrShortMessage = errors.New("message payload too short")

// decoder reads ROS1 serialized fields. The first failure sticks; callers
// check err once after reading a whole message.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.buf) {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrShortMessage, n, d.off, len(d.buf))
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) f32() float32 {
	return math.Float32frombits(d.u32())
}

func (d *decoder) f64() float64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (d *decoder) str() string {
	return string(d.bytes())
}

func (d *decoder) bytes() []byte {
	n := d.u32()
	return d.take(int(n))
}

func (d *decoder) f64s(n int) []float64 {
	if d.err == nil && n*8 > len(d.buf)-d.off {
		d.err = fmt.Errorf("%w: array of %d float64 at offset %d of %d", ErrShortMessage, n, d.off, len(d.buf))
	}
	if d.err != nil {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = d.f64()
	}
	return out
}

func (d *decoder) time() time.Time {
	b := d.take(8)
	if b == nil {
		return time.Time{}
	}
	return rosbag.ParseTime(b)
}
