package realsense

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"rsextract/internal/align"
	"rsextract/internal/rosbag"
)

// DefaultDepthScale is the depth unit the D400 family records when the bag
// carries no "Depth Units" option.
const DefaultDepthScale = 0.001

// defaultFPS sets the pairing tolerance when no stream info was recorded.
const defaultFPS = 30

// ErrNoStream is returned when a recording lacks a depth or color stream.
var ErrNoStream = errors.New("recording has no depth and color stream pair")

// StreamProfile describes one recorded stream.
type StreamProfile struct {
	Topic       string
	Intrinsics  align.Intrinsics
	FPS         uint32
	Encoding    string
	ToReference align.Extrinsics
}

// FrameSet is a group of images captured at the same instant. Either image
// may be nil when the recording dropped one modality.
type FrameSet struct {
	Depth *Image
	Color *Image
	// Time is the bag time of the earliest member.
	Time time.Time
}

// Complete reports whether the set holds both modalities.
func (s *FrameSet) Complete() bool {
	return s != nil && s.Depth != nil && s.Color != nil
}

// Recording reads frame sets from a RealSense .bag file.
type Recording struct {
	file       *os.File
	reader     *rosbag.Reader
	depth      StreamProfile
	color      StreamProfile
	depthScale float64

	buffered  []*rosbag.Message
	sync      syncer
	truncated bool
	done      bool
}

// OpenRecording opens path and reads stream metadata up to the first image.
// The file is closed again when an error is returned.
func OpenRecording(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := rosbag.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	rec := &Recording{
		file:       f,
		reader:     r,
		depthScale: DefaultDepthScale,
		depth:      StreamProfile{ToReference: align.Identity()},
		color:      StreamProfile{ToReference: align.Identity()},
	}
	if err := rec.preload(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	rec.sync.tolerance = rec.tolerance()
	return rec, nil
}

func (r *Recording) preload() error {
	var haveDepth, haveColor, sawImage bool
	for !(haveDepth && haveColor && sawImage) {
		msg, err := r.reader.Next()
		if err == io.EOF || errors.Is(err, rosbag.ErrTruncated) {
			if errors.Is(err, rosbag.ErrTruncated) {
				r.truncated = true
			}
			if haveDepth && haveColor {
				r.done = true
				return nil
			}
			return ErrNoStream
		}
		if err != nil {
			return err
		}
		topic := ClassifyTopic(msg.Conn.Topic)
		switch topic.Role {
		case RoleImage:
			sawImage = true
			r.buffered = append(r.buffered, msg)
		case RoleCameraInfo:
			prof := r.profile(topic.Kind)
			if prof == nil || prof.Topic != "" {
				continue
			}
			info, err := DecodeCameraInfo(msg.Data)
			if err != nil {
				return err
			}
			in, err := info.Intrinsics()
			if err != nil {
				return fmt.Errorf("%s intrinsics: %w", topic.Kind, err)
			}
			prof.Intrinsics = in
			prof.Topic = imageTopicFor(msg.Conn.Topic)
			if topic.Kind == StreamDepth {
				haveDepth = true
			} else {
				haveColor = true
			}
		default:
			if err := r.applyMetadata(topic, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Recording) applyMetadata(topic Topic, msg *rosbag.Message) error {
	switch topic.Role {
	case RoleStreamInfo:
		prof := r.profile(topic.Kind)
		if prof == nil {
			return nil
		}
		info, err := DecodeStreamInfo(msg.Data)
		if err != nil {
			return err
		}
		prof.FPS = info.FPS
		prof.Encoding = info.Encoding
	case RoleExtrinsics:
		prof := r.profile(topic.Kind)
		if prof == nil || topic.Reference != 0 {
			return nil
		}
		tf, err := DecodeTransform(msg.Data)
		if err != nil {
			return err
		}
		prof.ToReference = tf.Extrinsics()
	case RoleDepthUnits:
		v, err := DecodeFloat32(msg.Data)
		if err != nil {
			return err
		}
		if v > 0 {
			r.depthScale = float64(v)
		}
	}
	return nil
}

func (r *Recording) profile(kind StreamKind) *StreamProfile {
	switch kind {
	case StreamDepth:
		return &r.depth
	case StreamColor:
		return &r.color
	default:
		return nil
	}
}

// imageTopicFor maps ".../info/camera_info" to the sibling image topic.
func imageTopicFor(cameraInfoTopic string) string {
	const suffix = "info/camera_info"
	return cameraInfoTopic[:len(cameraInfoTopic)-len(suffix)] + "image/data"
}

func (r *Recording) tolerance() time.Duration {
	fps := r.color.FPS
	if fps == 0 {
		fps = r.depth.FPS
	}
	if fps == 0 {
		fps = defaultFPS
	}
	return time.Second / time.Duration(2*fps)
}

// Depth returns the depth stream profile.
func (r *Recording) Depth() StreamProfile { return r.depth }

// Color returns the color stream profile.
func (r *Recording) Color() StreamProfile { return r.color }

// DepthScale returns metres per raw depth unit.
func (r *Recording) DepthScale() float64 { return r.depthScale }

// DepthToColor returns the transform from depth to color camera coordinates.
func (r *Recording) DepthToColor() align.Extrinsics {
	return r.depth.ToReference.Then(r.color.ToReference.Inverse())
}

// Truncated reports whether the file ended inside a record.
func (r *Recording) Truncated() bool { return r.truncated }

// NextFrameSet returns the next frame set in recording order. Sets may be
// incomplete. io.EOF marks the end of the recording; a truncated file also
// ends with io.EOF and Truncated reports true.
func (r *Recording) NextFrameSet() (*FrameSet, error) {
	for {
		if set := r.sync.pop(); set != nil {
			return set, nil
		}
		msg, err := r.nextMessage()
		if err == io.EOF || errors.Is(err, rosbag.ErrTruncated) {
			r.truncated = r.truncated || err != io.EOF
			r.done = true
			if r.sync.flush() {
				continue
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		if err := r.consume(msg); err != nil {
			return nil, err
		}
	}
}

func (r *Recording) nextMessage() (*rosbag.Message, error) {
	if len(r.buffered) > 0 {
		msg := r.buffered[0]
		r.buffered = r.buffered[1:]
		return msg, nil
	}
	if r.done {
		return nil, io.EOF
	}
	return r.reader.Next()
}

func (r *Recording) consume(msg *rosbag.Message) error {
	var kind StreamKind
	switch msg.Conn.Topic {
	case r.depth.Topic:
		kind = StreamDepth
	case r.color.Topic:
		kind = StreamColor
	default:
		return nil
	}
	img, err := DecodeImage(msg.Data)
	if err != nil {
		return fmt.Errorf("%s frame at %s: %w", kind, msg.Time.Format(time.RFC3339Nano), err)
	}
	r.sync.push(kind, img, msg.Time)
	return nil
}

// Close releases the file. It is safe to call more than once.
func (r *Recording) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.done = true
	r.buffered = nil
	return err
}

type pendingImage struct {
	kind StreamKind
	img  *Image
	at   time.Time
}

// syncer groups interleaved depth and color images into frame sets. An
// image pairs with a pending image of the other kind when their times are
// within tolerance; anything left unmatched is emitted alone.
type syncer struct {
	tolerance time.Duration
	pending   *pendingImage
	ready     []*FrameSet
}

func (s *syncer) push(kind StreamKind, img *Image, at time.Time) {
	next := &pendingImage{kind: kind, img: img, at: at}
	if s.pending == nil {
		s.pending = next
		return
	}
	prev := s.pending
	if prev.kind != kind && absDuration(at.Sub(prev.at)) <= s.tolerance {
		set := &FrameSet{Time: prev.at}
		if at.Before(prev.at) {
			set.Time = at
		}
		set.put(prev)
		set.put(next)
		s.ready = append(s.ready, set)
		s.pending = nil
		return
	}
	s.ready = append(s.ready, single(prev))
	s.pending = next
}

func (s *syncer) flush() bool {
	if s.pending == nil {
		return false
	}
	s.ready = append(s.ready, single(s.pending))
	s.pending = nil
	return true
}

func (s *syncer) pop() *FrameSet {
	if len(s.ready) == 0 {
		return nil
	}
	set := s.ready[0]
	s.ready[0] = nil
	s.ready = s.ready[1:]
	return set
}

func single(p *pendingImage) *FrameSet {
	set := &FrameSet{Time: p.at}
	set.put(p)
	return set
}

func (s *FrameSet) put(p *pendingImage) {
	if p.kind == StreamDepth {
		s.Depth = p.img
	} else {
		s.Color = p.img
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
