// Package bagtest writes small ROS1 bag files for tests.
package bagtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"

	"rsextract/internal/rosbag"
)

// Compression selects how chunk payloads are stored.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionLZ4  Compression = "lz4"
)

// Writer produces a bag with one connection per topic. Messages are grouped
// into chunks of ChunkMessages each. No index records are written; readers
// that walk the file sequentially do not need them.
type Writer struct {
	out           io.Writer
	compression   Compression
	chunkMessages int

	conns   map[string]uint32
	chunk   bytes.Buffer
	pending int
	err     error
}

// Option customizes a Writer.
type Option func(*Writer)

// WithCompression sets the chunk compression.
func WithCompression(c Compression) Option {
	return func(w *Writer) { w.compression = c }
}

// WithChunkMessages sets how many messages go into each chunk.
func WithChunkMessages(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.chunkMessages = n
		}
	}
}

// NewWriter writes the bag preamble to out.
func NewWriter(out io.Writer, opts ...Option) (*Writer, error) {
	w := &Writer{
		out:           out,
		compression:   CompressionNone,
		chunkMessages: 16,
		conns:         make(map[string]uint32),
	}
	for _, opt := range opts {
		opt(w)
	}
	if _, err := io.WriteString(out, rosbag.Magic); err != nil {
		return nil, err
	}
	header := encodeHeader(
		field("op", []byte{rosbag.OpBagHeader}),
		field("index_pos", u64(0)),
		field("conn_count", u32(0)),
		field("chunk_count", u32(0)),
	)
	if err := writeRecord(out, header, nil); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends one message on topic.
func (w *Writer) Write(topic, msgType string, at time.Time, data []byte) error {
	if w.err != nil {
		return w.err
	}
	id, ok := w.conns[topic]
	if !ok {
		id = uint32(len(w.conns))
		w.conns[topic] = id
		connHeader := encodeHeader(
			field("op", []byte{rosbag.OpConnection}),
			field("conn", u32(id)),
			field("topic", []byte(topic)),
		)
		connData := encodeHeader(
			field("topic", []byte(topic)),
			field("type", []byte(msgType)),
			field("md5sum", []byte("*")),
			field("message_definition", nil),
		)
		w.err = writeRecord(&w.chunk, connHeader, connData)
	}
	if w.err == nil {
		msgHeader := encodeHeader(
			field("op", []byte{rosbag.OpMessageData}),
			field("conn", u32(id)),
			field("time", rosTime(at)),
		)
		w.err = writeRecord(&w.chunk, msgHeader, data)
	}
	w.pending++
	if w.err == nil && w.pending >= w.chunkMessages {
		w.err = w.flush()
	}
	return w.err
}

// Close writes any buffered chunk. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.flush()
	return w.err
}

func (w *Writer) flush() error {
	if w.chunk.Len() == 0 {
		return nil
	}
	raw := w.chunk.Bytes()
	payload := raw
	if w.compression == CompressionLZ4 {
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return fmt.Errorf("lz4 chunk: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("lz4 chunk: %w", err)
		}
		payload = buf.Bytes()
	}
	header := encodeHeader(
		field("op", []byte{rosbag.OpChunk}),
		field("compression", []byte(w.compression)),
		field("size", u32(uint32(len(raw)))),
	)
	if err := writeRecord(w.out, header, payload); err != nil {
		return err
	}
	w.chunk.Reset()
	w.pending = 0
	return nil
}

type headerField struct {
	name  string
	value []byte
}

func field(name string, value []byte) headerField {
	return headerField{name: name, value: value}
}

func encodeHeader(fields ...headerField) []byte {
	var buf bytes.Buffer
	for _, f := range fields {
		buf.Write(u32(uint32(len(f.name) + 1 + len(f.value))))
		buf.WriteString(f.name)
		buf.WriteByte('=')
		buf.Write(f.value)
	}
	return buf.Bytes()
}

func writeRecord(w io.Writer, header, data []byte) error {
	for _, section := range [][]byte{header, data} {
		if _, err := w.Write(u32(uint32(len(section)))); err != nil {
			return err
		}
		if _, err := w.Write(section); err != nil {
			return err
		}
	}
	return nil
}

func u32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func u64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

func rosTime(t time.Time) []byte {
	b := u32(uint32(t.Unix()))
	return binary.LittleEndian.AppendUint32(b, uint32(t.Nanosecond()))
}
