package extract

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"rsextract/internal/align"
	"rsextract/internal/frame"
	"rsextract/internal/logging"
	"rsextract/internal/realsense"
)

// DefaultTimeout bounds a single TryGetNext wait.
const DefaultTimeout = 100 * time.Millisecond

const defaultBuffer = 4

var (
	// ErrNotFound is returned by Open when the recording does not exist.
	ErrNotFound = errors.New("recording not found")
	// ErrDecode is returned when a recording cannot be started or a frame
	// cannot be decoded.
	ErrDecode = errors.New("recording cannot be decoded")
)

// Result is the outcome of a TryGetNext call.
type Result int

const (
	Ok Result = iota
	TimedOut
	EndOfStream
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "ok"
	case TimedOut:
		return "timed_out"
	case EndOfStream:
		return "end_of_stream"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// FramePair is one aligned color and depth capture. Depth holds raw sensor
// units at the color camera's resolution.
type FramePair struct {
	Color     *frame.Color
	Depth     *frame.Depth
	Timestamp time.Duration
}

// Options constrain what recordings Open accepts. Zero fields are not
// checked.
type Options struct {
	Width  int
	Height int
	FPS    int
	Logger *slog.Logger
	// Buffer is how many decoded pairs may wait for the consumer.
	Buffer int
}

// Stats counts what a stream has produced so far.
type Stats struct {
	Delivered int64
	Skipped   int64
	Truncated bool
}

var openStreams atomic.Int64

// OpenStreams reports how many streams are open in this process.
func OpenStreams() int64 { return openStreams.Load() }

type item struct {
	pair FramePair
	err  error
}

// Stream decodes one recording on a background goroutine and hands out
// aligned frame pairs. Callers use it from a single goroutine.
type Stream struct {
	rec     *realsense.Recording
	aligner *align.Aligner
	logger  *slog.Logger

	frames chan item
	stop   chan struct{}
	done   chan struct{}

	delivered atomic.Int64
	skipped   atomic.Int64
	truncated atomic.Bool
	ended     bool

	closeOnce sync.Once
	closeErr  error
}

// Open starts decoding the recording at path. The returned error wraps
// ErrNotFound or ErrDecode.
func Open(path string, opts Options) (*Stream, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	rec, err := realsense.OpenRecording(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	aligner, err := setup(rec, opts)
	if err != nil {
		_ = rec.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}

	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	logger := logging.NewComponentLogger(opts.Logger, "extract").With(logging.String("recording", path))
	s := &Stream{
		rec:     rec,
		aligner: aligner,
		logger:  logger,
		frames:  make(chan item, buffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	openStreams.Add(1)
	logger.Debug("stream opened",
		logging.Int("color_width", rec.Color().Intrinsics.Width),
		logging.Int("color_height", rec.Color().Intrinsics.Height),
		logging.Int("depth_width", rec.Depth().Intrinsics.Width),
		logging.Int("depth_height", rec.Depth().Intrinsics.Height),
		logging.Float64("depth_scale", rec.DepthScale()),
	)
	go s.decode()
	return s, nil
}

func setup(rec *realsense.Recording, opts Options) (*align.Aligner, error) {
	color := rec.Color()
	if opts.Width > 0 && opts.Height > 0 &&
		(color.Intrinsics.Width != opts.Width || color.Intrinsics.Height != opts.Height) {
		return nil, fmt.Errorf("color stream is %dx%d, configured %dx%d",
			color.Intrinsics.Width, color.Intrinsics.Height, opts.Width, opts.Height)
	}
	if opts.FPS > 0 && color.FPS != 0 && int(color.FPS) != opts.FPS {
		return nil, fmt.Errorf("color stream runs at %d fps, configured %d", color.FPS, opts.FPS)
	}
	return align.NewAligner(rec.Depth().Intrinsics, color.Intrinsics, rec.DepthToColor(), rec.DepthScale())
}

// DepthScale returns metres per raw depth unit.
func (s *Stream) DepthScale() float64 { return s.rec.DepthScale() }

// Stats returns the stream counters.
func (s *Stream) Stats() Stats {
	return Stats{
		Delivered: s.delivered.Load(),
		Skipped:   s.skipped.Load(),
		Truncated: s.truncated.Load(),
	}
}

// TryGetNext waits up to timeout for the next aligned pair. Frame sets that
// lack depth or color are dropped without consuming a result. A non-nil
// error accompanies EndOfStream when decoding failed mid-recording.
func (s *Stream) TryGetNext(timeout time.Duration) (FramePair, Result, error) {
	if s.ended {
		return FramePair{}, EndOfStream, nil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case it, ok := <-s.frames:
		if !ok {
			s.ended = true
			return FramePair{}, EndOfStream, nil
		}
		if it.err != nil {
			s.ended = true
			return FramePair{}, EndOfStream, it.err
		}
		s.delivered.Add(1)
		return it.pair, Ok, nil
	case <-timer.C:
		return FramePair{}, TimedOut, nil
	}
}

func (s *Stream) decode() {
	defer close(s.done)
	defer close(s.frames)

	var start time.Time
	for {
		set, err := s.rec.NextFrameSet()
		if err == io.EOF {
			if s.rec.Truncated() {
				s.truncated.Store(true)
				logging.WarnWithContext(s.logger, "recording ends mid-record", "recording_truncated",
					logging.Int64("frames_decoded", s.delivered.Load()),
					logging.String(logging.FieldErrorHint, "re-record the take if frames are missing at the end"),
					logging.String(logging.FieldImpact, "frames after the cut are lost"),
				)
			}
			return
		}
		if err != nil {
			s.send(item{err: fmt.Errorf("%w: %w", ErrDecode, err)})
			return
		}
		if start.IsZero() {
			start = set.Time
		}
		if !set.Complete() {
			s.skipped.Add(1)
			s.logger.Debug("incomplete frame set skipped",
				logging.Bool("has_depth", set.Depth != nil),
				logging.Bool("has_color", set.Color != nil),
			)
			continue
		}
		pair, err := s.convert(set, set.Time.Sub(start))
		if err != nil {
			s.send(item{err: fmt.Errorf("%w: %w", ErrDecode, err)})
			return
		}
		if !s.send(item{pair: pair}) {
			return
		}
	}
}

func (s *Stream) send(it item) bool {
	select {
	case s.frames <- it:
		return true
	case <-s.stop:
		return false
	}
}

func (s *Stream) convert(set *realsense.FrameSet, ts time.Duration) (FramePair, error) {
	color, err := realsense.ColorRaster(set.Color)
	if err != nil {
		return FramePair{}, err
	}
	if w, h := s.aligner.Output(); color.Width != w || color.Height != h {
		return FramePair{}, fmt.Errorf("color frame %dx%d does not match camera model %dx%d",
			color.Width, color.Height, w, h)
	}
	raw, err := realsense.DepthRaster(set.Depth)
	if err != nil {
		return FramePair{}, err
	}
	aligned, err := s.aligner.Align(raw)
	if err != nil {
		return FramePair{}, err
	}
	return FramePair{Color: color, Depth: aligned, Timestamp: ts}, nil
}

// Close stops decoding and releases the recording. Only the first call does
// any work.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.closeErr = s.rec.Close()
		openStreams.Add(-1)
		s.logger.Debug("stream closed", logging.Int64("delivered", s.delivered.Load()), logging.Int64("skipped", s.skipped.Load()))
	})
	return s.closeErr
}
