package extract_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rsextract/internal/extract"
	"rsextract/internal/testsupport"
)

func drain(t *testing.T, s *extract.Stream) []extract.FramePair {
	t.Helper()
	var pairs []extract.FramePair
	for {
		pair, res, err := s.TryGetNext(2 * time.Second)
		if err != nil {
			t.Fatalf("TryGetNext: %v", err)
		}
		switch res {
		case extract.Ok:
			pairs = append(pairs, pair)
		case extract.EndOfStream:
			return pairs
		default:
			t.Fatalf("unexpected result %v", res)
		}
	}
}

func TestStreamDeliversAlignedPairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take_01.bag")
	testsupport.WriteRecording(t, path, testsupport.Recording{Frames: 7})

	s, err := extract.Open(path, extract.Options{Width: 8, Height: 6, FPS: 15})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	pairs := drain(t, s)
	if len(pairs) != 7 {
		t.Fatalf("got %d pairs, want 7", len(pairs))
	}
	for i, p := range pairs {
		if p.Color.Width != 8 || p.Color.Height != 6 || p.Depth.Width != 8 || p.Depth.Height != 6 {
			t.Fatalf("pair %d has color %dx%d depth %dx%d", i, p.Color.Width, p.Color.Height, p.Depth.Width, p.Depth.Height)
		}
		want := uint16(1000 + i)
		nonzero := 0
		for _, v := range p.Depth.Pix {
			if v == 0 {
				continue
			}
			nonzero++
			if v != want {
				t.Fatalf("pair %d depth %d, want raw value %d", i, v, want)
			}
		}
		if nonzero == 0 {
			t.Fatalf("pair %d aligned depth is empty", i)
		}
		r, g, b := p.Color.At(3, 3)
		if r != byte(10+i) || g != byte(100+i) || b != byte(200-i) {
			t.Fatalf("pair %d color = (%d,%d,%d)", i, r, g, b)
		}
		if i > 0 && p.Timestamp <= pairs[i-1].Timestamp {
			t.Fatalf("timestamps not increasing at %d", i)
		}
	}
	if st := s.Stats(); st.Delivered != 7 || st.Skipped != 0 {
		t.Fatalf("stats = %+v", st)
	}

	if _, res, _ := s.TryGetNext(0); res != extract.EndOfStream {
		t.Fatalf("after end got %v", res)
	}
}

func TestStreamSkipsIncompleteSets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take_01.bag")
	testsupport.WriteRecording(t, path, testsupport.Recording{
		Frames:    10,
		DropDepth: []int{2, 7},
		DropColor: []int{5},
	})

	s, err := extract.Open(path, extract.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	pairs := drain(t, s)
	if len(pairs) != 7 {
		t.Fatalf("got %d pairs, want 7", len(pairs))
	}
	if st := s.Stats(); st.Skipped != 3 {
		t.Fatalf("skipped = %d, want 3", st.Skipped)
	}
}

func TestStreamTruncatedRecordingEnds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take_01.bag")
	testsupport.WriteRecording(t, path, testsupport.Recording{Frames: 20, TruncateBytes: 5})

	s, err := extract.Open(path, extract.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	pairs := drain(t, s)
	if len(pairs) == 0 || len(pairs) >= 20 {
		t.Fatalf("got %d pairs from truncated recording", len(pairs))
	}
	if !s.Stats().Truncated {
		t.Fatal("expected truncated stats flag")
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	before := extract.OpenStreams()

	_, err := extract.Open(filepath.Join(dir, "missing.bag"), extract.Options{})
	if !errors.Is(err, extract.ErrNotFound) {
		t.Fatalf("missing file: expected ErrNotFound, got %v", err)
	}

	corrupt := filepath.Join(dir, "corrupt.bag")
	if err := os.WriteFile(corrupt, []byte("garbage, not a recording"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = extract.Open(corrupt, extract.Options{})
	if !errors.Is(err, extract.ErrDecode) {
		t.Fatalf("corrupt file: expected ErrDecode, got %v", err)
	}

	wrongSize := filepath.Join(dir, "wrong.bag")
	testsupport.WriteRecording(t, wrongSize, testsupport.Recording{Frames: 1, Width: 4, Height: 2})
	_, err = extract.Open(wrongSize, extract.Options{Width: 8, Height: 6})
	if !errors.Is(err, extract.ErrDecode) {
		t.Fatalf("resolution mismatch: expected ErrDecode, got %v", err)
	}

	wrongRate := filepath.Join(dir, "rate.bag")
	testsupport.WriteRecording(t, wrongRate, testsupport.Recording{Frames: 1, FPS: 30})
	_, err = extract.Open(wrongRate, extract.Options{FPS: 15})
	if !errors.Is(err, extract.ErrDecode) {
		t.Fatalf("rate mismatch: expected ErrDecode, got %v", err)
	}

	if got := extract.OpenStreams(); got != before {
		t.Fatalf("open streams = %d after failed opens, want %d", got, before)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take_01.bag")
	testsupport.WriteRecording(t, path, testsupport.Recording{Frames: 30})

	before := extract.OpenStreams()
	s, err := extract.Open(path, extract.Options{Buffer: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if extract.OpenStreams() != before+1 {
		t.Fatalf("open streams not incremented")
	}
	if _, res, err := s.TryGetNext(time.Second); res != extract.Ok || err != nil {
		t.Fatalf("first pull = %v, %v", res, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if extract.OpenStreams() != before {
		t.Fatalf("open streams = %d, want %d", extract.OpenStreams(), before)
	}
}

func TestStreamFirstFrameWithinDefaultTimeoutAtD4xxModel(t *testing.T) {
	const width, height = 640, 480
	path := filepath.Join(t.TempDir(), "take_01.bag")
	testsupport.WriteRecording(t, path, testsupport.Recording{
		Width:       width,
		Height:      height,
		FPS:         30,
		Frames:      3,
		DepthModel:  testsupport.D4xxDepthModel(width, height),
		ColorModel:  testsupport.D4xxColorModel(width, height),
		ColorOffset: testsupport.D4xxBaseline,
	})

	s, err := extract.Open(path, extract.Options{Width: width, Height: height, FPS: 30})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	pair, res, err := s.TryGetNext(extract.DefaultTimeout)
	if err != nil || res != extract.Ok {
		t.Fatalf("first TryGetNext = %v (%v), want ok", res, err)
	}
	if pair.Depth.Width != width || pair.Depth.Height != height {
		t.Fatalf("aligned depth is %dx%d", pair.Depth.Width, pair.Depth.Height)
	}
	if v := pair.Depth.At(width/2, height/2); v != 1000 {
		t.Fatalf("centre depth = %d, want 1000", v)
	}
	nonzero := 0
	for _, v := range pair.Depth.Pix {
		if v != 0 {
			nonzero++
		}
	}
	if nonzero < width*height*9/10 {
		t.Fatalf("only %d of %d color pixels received depth", nonzero, width*height)
	}

	rest := drain(t, s)
	if len(rest) != 2 {
		t.Fatalf("got %d more pairs, want 2", len(rest))
	}
}
