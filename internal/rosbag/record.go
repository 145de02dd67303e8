package rosbag

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Magic is the version line every bag 2.0 file starts with.
const Magic = "#ROSBAG V2.0\n"

// Record op codes.
const (
	OpMessageData = 0x02
	OpBagHeader   = 0x03
	OpIndexData   = 0x04
	OpChunk       = 0x05
	OpChunkInfo   = 0x06
	OpConnection  = 0x07
)

// maxRecordSection bounds a single header or data section. RealSense color
// frames at 1920x1080 are ~6MB and chunks hold several of them.
const maxRecordSection = 1 << 30

var (
	// ErrNotBag is returned when the input does not start with the bag magic.
	ErrNotBag = errors.New("not a rosbag 2.0 file")
	// ErrTruncated is returned when the file ends in the middle of a record.
	ErrTruncated = errors.New("bag truncated")
	// ErrMalformed is returned for structurally invalid records.
	ErrMalformed = errors.New("malformed bag record")
)

// Header holds the name=value fields of a record header.
type Header map[string][]byte

// Op returns the record op code, or 0 when absent.
func (h Header) Op() byte {
	v := h["op"]
	if len(v) != 1 {
		return 0
	}
	return v[0]
}

// Uint32 decodes a little-endian uint32 field.
func (h Header) Uint32(name string) (uint32, error) {
	v, ok := h[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing header field %q", ErrMalformed, name)
	}
	if len(v) != 4 {
		return 0, fmt.Errorf("%w: field %q has %d bytes, want 4", ErrMalformed, name, len(v))
	}
	return binary.LittleEndian.Uint32(v), nil
}

// Uint64 decodes a little-endian uint64 field.
func (h Header) Uint64(name string) (uint64, error) {
	v, ok := h[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing header field %q", ErrMalformed, name)
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("%w: field %q has %d bytes, want 8", ErrMalformed, name, len(v))
	}
	return binary.LittleEndian.Uint64(v), nil
}

// Time decodes a ROS time field (uint32 seconds, uint32 nanoseconds).
func (h Header) Time(name string) (time.Time, error) {
	v, ok := h[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: missing header field %q", ErrMalformed, name)
	}
	if len(v) != 8 {
		return time.Time{}, fmt.Errorf("%w: field %q has %d bytes, want 8", ErrMalformed, name, len(v))
	}
	return ParseTime(v), nil
}

// String returns a field as text.
func (h Header) String(name string) string {
	return string(h[name])
}

// ParseTime converts an 8-byte ROS time into a time.Time.
func ParseTime(b []byte) time.Time {
	sec := binary.LittleEndian.Uint32(b[0:4])
	nsec := binary.LittleEndian.Uint32(b[4:8])
	return time.Unix(int64(sec), int64(nsec)).UTC()
}

// ParseHeader splits a header section into its fields.
func ParseHeader(b []byte) (Header, error) {
	h := make(Header)
	for len(b) > 0 {
		if len(b) < 4 {
			return nil, fmt.Errorf("%w: short header field length", ErrMalformed)
		}
		n := binary.LittleEndian.Uint32(b[:4])
		b = b[4:]
		if uint64(n) > uint64(len(b)) {
			return nil, fmt.Errorf("%w: header field overruns header", ErrMalformed)
		}
		field := b[:n]
		b = b[n:]
		eq := bytes.IndexByte(field, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: header field without '='", ErrMalformed)
		}
		h[string(field[:eq])] = field[eq+1:]
	}
	return h, nil
}

type record struct {
	header Header
	data   []byte
}

// readRecord reads one record. io.EOF is returned only on a clean boundary.
func readRecord(r io.Reader) (record, error) {
	headerBytes, err := readSection(r, true)
	if err != nil {
		return record{}, err
	}
	data, err := readSection(r, false)
	if err != nil {
		return record{}, err
	}
	header, err := ParseHeader(headerBytes)
	if err != nil {
		return record{}, err
	}
	return record{header: header, data: data}, nil
}

func readSection(r io.Reader, boundary bool) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) && boundary {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxRecordSection {
		return nil, fmt.Errorf("%w: section of %d bytes", ErrMalformed, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return buf, nil
}
