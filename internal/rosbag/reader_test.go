package rosbag_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"rsextract/internal/rosbag"
	"rsextract/internal/rosbag/bagtest"
)

func writeBag(t *testing.T, n int, opts ...bagtest.Option) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := bagtest.NewWriter(&buf, opts...)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	base := time.Unix(1700000000, 0)
	for i := 0; i < n; i++ {
		topic := "/a"
		if i%2 == 1 {
			topic = "/b"
		}
		payload := []byte(fmt.Sprintf("msg-%d", i))
		if err := w.Write(topic, "std_msgs/String", base.Add(time.Duration(i)*time.Millisecond), payload); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func readAll(t *testing.T, data []byte) ([]*rosbag.Message, error) {
	t.Helper()
	r, err := rosbag.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	var msgs []*rosbag.Message
	for {
		msg, err := r.Next()
		if err == io.EOF {
			return msgs, nil
		}
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
}

func TestReaderYieldsMessagesInOrder(t *testing.T) {
	tests := []struct {
		name string
		opts []bagtest.Option
	}{
		{name: "uncompressed"},
		{name: "lz4", opts: []bagtest.Option{bagtest.WithCompression(bagtest.CompressionLZ4)}},
		{name: "small chunks", opts: []bagtest.Option{bagtest.WithChunkMessages(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := readAll(t, writeBag(t, 10, tt.opts...))
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(msgs) != 10 {
				t.Fatalf("got %d messages, want 10", len(msgs))
			}
			for i, msg := range msgs {
				if got, want := string(msg.Data), fmt.Sprintf("msg-%d", i); got != want {
					t.Fatalf("message %d data = %q, want %q", i, got, want)
				}
				wantTopic := "/a"
				if i%2 == 1 {
					wantTopic = "/b"
				}
				if msg.Conn.Topic != wantTopic {
					t.Fatalf("message %d topic = %q, want %q", i, msg.Conn.Topic, wantTopic)
				}
				if msg.Conn.Type != "std_msgs/String" {
					t.Fatalf("message %d type = %q", i, msg.Conn.Type)
				}
				wantTime := time.Unix(1700000000, 0).Add(time.Duration(i) * time.Millisecond)
				if !msg.Time.Equal(wantTime) {
					t.Fatalf("message %d time = %v, want %v", i, msg.Time, wantTime)
				}
			}
		})
	}
}

func TestReaderRejectsNonBag(t *testing.T) {
	_, err := rosbag.NewReader(bytes.NewReader([]byte("PK\x03\x04 definitely a zip")))
	if !errors.Is(err, rosbag.ErrNotBag) {
		t.Fatalf("expected ErrNotBag, got %v", err)
	}
	_, err = rosbag.NewReader(bytes.NewReader(nil))
	if !errors.Is(err, rosbag.ErrNotBag) {
		t.Fatalf("expected ErrNotBag for empty input, got %v", err)
	}
}

func TestReaderReportsTruncation(t *testing.T) {
	full := writeBag(t, 8, bagtest.WithChunkMessages(4))
	cut := full[:len(full)-10]

	msgs, err := readAll(t, cut)
	if !errors.Is(err, rosbag.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("got %d messages before truncation, want the first chunk's 4", len(msgs))
	}
}

func TestParseHeaderRejectsFieldWithoutSeparator(t *testing.T) {
	b := []byte{5, 0, 0, 0, 'a', 'b', 'c', 'd', 'e'}
	if _, err := rosbag.ParseHeader(b); !errors.Is(err, rosbag.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
