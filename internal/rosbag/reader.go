package rosbag

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"
)

// Connection describes one topic/type pairing declared in the bag.
type Connection struct {
	ID                uint32
	Topic             string
	Type              string
	MD5Sum            string
	MessageDefinition string
}

// Message is one message data record.
type Message struct {
	Conn *Connection
	Time time.Time
	Data []byte
}

// Reader yields messages from a bag in file order.
type Reader struct {
	src        *bufio.Reader
	conns      map[uint32]*Connection
	chunk      *bytes.Reader
	chunkCount int
}

// NewReader validates the bag magic and prepares a sequential reader.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotBag, err)
	}
	if string(magic) != Magic {
		return nil, ErrNotBag
	}
	return &Reader{src: br, conns: make(map[uint32]*Connection)}, nil
}

// Next returns the next message. It returns io.EOF at the end of the bag and
// an error wrapping ErrTruncated when the file ends mid-record.
func (r *Reader) Next() (*Message, error) {
	for {
		if r.chunk != nil {
			if r.chunk.Len() == 0 {
				r.chunk = nil
				continue
			}
			rec, err := readRecord(r.chunk)
			if err != nil {
				r.chunk = nil
				if errors.Is(err, io.EOF) || errors.Is(err, ErrTruncated) {
					return nil, fmt.Errorf("%w: chunk %d ends mid-record", ErrMalformed, r.chunkCount)
				}
				return nil, err
			}
			msg, err := r.handle(rec, true)
			if err != nil {
				return nil, err
			}
			if msg != nil {
				return msg, nil
			}
			continue
		}

		rec, err := readRecord(r.src)
		if err != nil {
			return nil, err
		}
		msg, err := r.handle(rec, false)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
	}
}

func (r *Reader) handle(rec record, inChunk bool) (*Message, error) {
	switch op := rec.header.Op(); op {
	case OpBagHeader:
		if inChunk {
			return nil, fmt.Errorf("%w: bag header inside chunk", ErrMalformed)
		}
		return nil, nil
	case OpChunk:
		if inChunk {
			return nil, fmt.Errorf("%w: nested chunk", ErrMalformed)
		}
		if err := r.openChunk(rec); err != nil {
			return nil, err
		}
		return nil, nil
	case OpConnection:
		return nil, r.addConnection(rec)
	case OpMessageData:
		id, err := rec.header.Uint32("conn")
		if err != nil {
			return nil, err
		}
		conn, ok := r.conns[id]
		if !ok {
			return nil, fmt.Errorf("%w: message for undeclared connection %d", ErrMalformed, id)
		}
		t, err := rec.header.Time("time")
		if err != nil {
			return nil, err
		}
		return &Message{Conn: conn, Time: t, Data: rec.data}, nil
	case OpIndexData, OpChunkInfo:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown op 0x%02x", ErrMalformed, op)
	}
}

func (r *Reader) openChunk(rec record) error {
	size, err := rec.header.Uint32("size")
	if err != nil {
		return err
	}
	compression := rec.header.String("compression")
	var payload []byte
	switch compression {
	case "none", "":
		payload = rec.data
	case "lz4":
		payload, err = inflate(lz4.NewReader(bytes.NewReader(rec.data)), size)
	case "bz2":
		payload, err = inflate(bzip2.NewReader(bytes.NewReader(rec.data)), size)
	default:
		return fmt.Errorf("%w: unsupported chunk compression %q", ErrMalformed, compression)
	}
	if err != nil {
		return fmt.Errorf("decompress chunk %d (%s): %w", r.chunkCount+1, compression, err)
	}
	r.chunkCount++
	r.chunk = bytes.NewReader(payload)
	return nil
}

func inflate(src io.Reader, size uint32) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(src, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reader) addConnection(rec record) error {
	id, err := rec.header.Uint32("conn")
	if err != nil {
		return err
	}
	fields, err := ParseHeader(rec.data)
	if err != nil {
		return fmt.Errorf("connection %d: %w", id, err)
	}
	topic := rec.header.String("topic")
	if topic == "" {
		topic = fields.String("topic")
	}
	r.conns[id] = &Connection{
		ID:                id,
		Topic:             topic,
		Type:              fields.String("type"),
		MD5Sum:            fields.String("md5sum"),
		MessageDefinition: fields.String("message_definition"),
	}
	return nil
}
