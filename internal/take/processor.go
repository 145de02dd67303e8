package take

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"rsextract/internal/config"
	"rsextract/internal/encode"
	"rsextract/internal/extract"
	"rsextract/internal/frame"
	"rsextract/internal/logging"
)

var (
	// ErrInputMissing marks a take whose recordings are absent. It is carried
	// by Skipped statuses.
	ErrInputMissing = errors.New("take input missing")
	// ErrStreamOpen wraps failures to open either recording.
	ErrStreamOpen = errors.New("stream open failed")
	// ErrEncoder wraps failures to open, write or finalize a merged video.
	ErrEncoder = errors.New("video encoder failed")
	// ErrPanic marks a take aborted by a recovered panic.
	ErrPanic = errors.New("take processing panicked")
)

// frameSource is the part of extract.Stream a take consumes.
type frameSource interface {
	TryGetNext(timeout time.Duration) (extract.FramePair, extract.Result, error)
	DepthScale() float64
	Stats() extract.Stats
	Close() error
}

type (
	streamOpener func(path string, opts extract.Options) (frameSource, error)
	videoOpener  func(ctx context.Context, path string, opts encode.VideoOptions) (encode.VideoWriter, error)
)

func openExtractStream(path string, opts extract.Options) (frameSource, error) {
	s, err := extract.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Processor extracts takes for one camera configuration. It holds only
// read-only configuration and may be shared by sequential Process calls.
type Processor struct {
	layout    Layout
	width     int
	height    int
	fps       int
	timeout   time.Duration
	colorizer *frame.Colorizer
	pngLevel  png.CompressionLevel
	video     encode.VideoOptions
	logger    *slog.Logger

	openStream streamOpener
	openVideo  videoOpener
}

// NewProcessor builds a Processor from validated configuration.
func NewProcessor(cfg *config.Config, logger *slog.Logger) (*Processor, error) {
	if cfg == nil {
		return nil, errors.New("take processor requires configuration")
	}
	backend, err := encode.ParseBackend(cfg.Encoding.Backend)
	if err != nil {
		return nil, err
	}
	logger = logging.NewComponentLogger(logger, "take")
	return &Processor{
		layout: Layout{
			DatasetDir: cfg.Paths.DatasetDir,
			OutputDir:  cfg.Paths.OutputDir,
			Serial1:    cfg.Cameras.Serial1,
			Serial2:    cfg.Cameras.Serial2,
		},
		width:     cfg.Cameras.Width,
		height:    cfg.Cameras.Height,
		fps:       cfg.Cameras.FPS,
		timeout:   cfg.FrameTimeout(),
		colorizer: frame.NewColorizer(cfg.Extraction.DepthAlpha),
		pngLevel:  cfg.PNGCompressionLevel(),
		video: encode.VideoOptions{
			Backend:       backend,
			Width:         2 * cfg.Cameras.Width,
			Height:        cfg.Cameras.Height,
			FPS:           cfg.Cameras.FPS,
			FFmpegCommand: cfg.Encoding.FFmpegCommand,
			Codec:         cfg.Encoding.Codec,
			Logger:        logger,
		},
		logger:     logger,
		openStream: openExtractStream,
		openVideo:  encode.OpenVideo,
	}, nil
}

// Layout returns the dataset and output layout.
func (p *Processor) Layout() Layout { return p.layout }

// Process extracts one take. It always returns a terminal Status: missing
// inputs are Skipped, failures are Error with the cause, and panics are
// recovered into Error.
func (p *Processor) Process(ctx context.Context, action string, take int) (status Status) {
	started := time.Now()
	ctx = logging.WithTake(ctx, action, take)
	logger := logging.WithContext(ctx, p.logger)

	status = Status{Action: action, Take: take}
	run := &takeRun{
		p:      p,
		desc:   p.layout.Describe(action, take),
		logger: logger,
		state:  stateIdle,
	}
	defer func() {
		if r := recover(); r != nil {
			status.Kind = StatusError
			status.Err = fmt.Errorf("%w: %v", ErrPanic, r)
			status.Frames = run.frames
			logging.ErrorWithContext(logger, "take aborted by panic", "take_panic",
				logging.Any("panic", r),
				logging.Int("frames", run.frames),
				logging.String(logging.FieldErrorHint, "report this take's recordings with the log file"),
			)
		}
		status.Duration = time.Since(started)
		p.logOutcome(logger, status)
	}()
	return run.execute(ctx, status)
}

func (p *Processor) logOutcome(logger *slog.Logger, status Status) {
	switch status.Kind {
	case StatusCompleted:
		logger.Info("take completed",
			logging.String(logging.FieldEventType, "take_completed"),
			logging.Int("frames", status.Frames),
			logging.Duration("elapsed", status.Duration),
		)
	case StatusSkipped:
		logging.WarnWithContext(logger, "take skipped", "take_skipped",
			logging.String(logging.FieldErrorHint, "record both cameras or remove the stray recording"),
			logging.String(logging.FieldImpact, "no artifacts for this take"),
		)
	default:
		logging.ErrorWithContext(logger, "take failed", "take_failed",
			logging.Error(status.Err),
			logging.Int("frames", status.Frames),
		)
	}
}

type state int

const (
	stateIdle state = iota
	stateValidatingInputs
	stateSkipped
	stateSettingUp
	stateSetupFailed
	stateExtracting
	stateCompleted
	stateError
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateValidatingInputs:
		return "validating_inputs"
	case stateSkipped:
		return "skipped"
	case stateSettingUp:
		return "setting_up"
	case stateSetupFailed:
		return "setup_failed"
	case stateExtracting:
		return "extracting"
	case stateCompleted:
		return "completed"
	case stateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// takeRun owns every resource of one Process call.
type takeRun struct {
	p      *Processor
	desc   Descriptor
	logger *slog.Logger
	state  state

	images     [4]*encode.ImageSequence
	rgbVideo   encode.VideoWriter
	depthVid   encode.VideoWriter
	cams       [2]frameSource
	extracting bool
	frames     int
	manifest   Manifest
}

func (r *takeRun) transition(to state) {
	r.logger.Debug("take state", logging.String("from", r.state.String()), logging.String("to", to.String()))
	r.state = to
}

func (r *takeRun) execute(ctx context.Context, status Status) (result Status) {
	result = status
	fail := func(err error) Status {
		r.transition(stateError)
		result.Kind = StatusError
		result.Err = err
		result.Frames = r.frames
		return result
	}

	r.transition(stateValidatingInputs)
	if err := r.desc.Validate(); err != nil {
		return fail(err)
	}
	if missing := r.desc.MissingInputs(); len(missing) > 0 {
		r.transition(stateSkipped)
		r.logger.Debug("take inputs missing", logging.Any("missing", missing))
		result.Kind = StatusSkipped
		result.Err = fmt.Errorf("%w: %v", ErrInputMissing, missing)
		return result
	}

	r.transition(stateSettingUp)
	defer func() {
		if err := r.release(result); err != nil && result.Err == nil {
			result = fail(err)
		}
	}()
	if err := r.setup(ctx); err != nil {
		r.transition(stateSetupFailed)
		return fail(err)
	}

	r.transition(stateExtracting)
	r.extracting = true
	if err := r.pairLoop(ctx); err != nil {
		return fail(err)
	}
	r.transition(stateCompleted)
	result.Kind = StatusCompleted
	result.Frames = r.frames
	return result
}

func (r *takeRun) setup(ctx context.Context) error {
	p := r.p
	for i, name := range ImageDirs {
		dir := r.desc.ImageDir(name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		r.images[i] = encode.NewImageSequence(dir, p.pngLevel)
	}

	ext := p.video.Backend.Extension()
	var err error
	if r.rgbVideo, err = p.openVideo(ctx, r.desc.VideoPath("rgb", ext), p.video); err != nil {
		return fmt.Errorf("%w: merged rgb video: %w", ErrEncoder, err)
	}
	if r.depthVid, err = p.openVideo(ctx, r.desc.VideoPath("depth", ext), p.video); err != nil {
		return fmt.Errorf("%w: merged depth video: %w", ErrEncoder, err)
	}

	opts := extract.Options{Width: p.width, Height: p.height, FPS: p.fps, Logger: r.logger}
	for i, path := range []string{r.desc.Cam1Path, r.desc.Cam2Path} {
		if r.cams[i], err = p.openStream(path, opts); err != nil {
			return fmt.Errorf("%w: camera %d: %w", ErrStreamOpen, i+1, err)
		}
	}

	r.manifest = Manifest{
		Action:     r.desc.Action,
		Take:       r.desc.Index,
		Width:      p.width,
		Height:     p.height,
		FPS:        p.fps,
		DepthScale: [2]float64{r.cams[0].DepthScale(), r.cams[1].DepthScale()},
		DepthAlpha: p.colorizer.Alpha(),
		CreatedAt:  time.Now().UTC(),
	}
	return nil
}

func (r *takeRun) pairLoop(ctx context.Context) error {
	timeout := r.p.timeout
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pair1, res1, err1 := r.cams[0].TryGetNext(timeout)
		pair2, res2, err2 := r.cams[1].TryGetNext(timeout)
		if err1 != nil {
			return fmt.Errorf("camera 1: %w", err1)
		}
		if err2 != nil {
			return fmt.Errorf("camera 2: %w", err2)
		}
		if res1 != extract.Ok || res2 != extract.Ok {
			r.logger.Debug("pairing stopped",
				logging.String("cam1", res1.String()),
				logging.String("cam2", res2.String()),
				logging.Int("frames", r.frames),
			)
			return nil
		}
		if err := r.step(r.frames, pair1, pair2); err != nil {
			return err
		}
		r.manifest.Frames = append(r.manifest.Frames, FrameRecord{Index: r.frames, Cam1: pair1.Timestamp, Cam2: pair2.Timestamp})
		r.frames++
	}
}

func (r *takeRun) step(index int, cam1, cam2 extract.FramePair) error {
	merged, err := frame.HConcat(cam1.Color, cam2.Color)
	if err != nil {
		return fmt.Errorf("merge color frame %d: %w", index, err)
	}
	if err := r.rgbVideo.WriteFrame(merged); err != nil {
		return fmt.Errorf("%w: merged rgb frame %d: %w", ErrEncoder, index, err)
	}
	merged, err = frame.HConcat(r.p.colorizer.Colorize(cam1.Depth), r.p.colorizer.Colorize(cam2.Depth))
	if err != nil {
		return fmt.Errorf("merge depth frame %d: %w", index, err)
	}
	if err := r.depthVid.WriteFrame(merged); err != nil {
		return fmt.Errorf("%w: merged depth frame %d: %w", ErrEncoder, index, err)
	}

	if err := r.images[0].WriteColor(index, cam1.Color); err != nil {
		return err
	}
	if err := r.images[1].WriteDepth(index, cam1.Depth); err != nil {
		return err
	}
	if err := r.images[2].WriteColor(index, cam2.Color); err != nil {
		return err
	}
	return r.images[3].WriteDepth(index, cam2.Depth)
}

// release closes streams, then finalizes encoders, then writes the manifest.
// Only encoder finalization errors are returned.
func (r *takeRun) release(result Status) error {
	for i, cam := range r.cams {
		if cam == nil {
			continue
		}
		stats := cam.Stats()
		r.manifest.Skipped[i] = stats.Skipped
		r.manifest.Truncated[i] = stats.Truncated
		if err := cam.Close(); err != nil {
			r.logger.Debug("stream close failed", logging.Int("camera", i+1), logging.Error(err))
		}
		r.cams[i] = nil
	}

	encodeErr := errors.Join(
		closeVideo("rgb", r.rgbVideo),
		closeVideo("depth", r.depthVid),
	)
	r.rgbVideo, r.depthVid = nil, nil

	if r.extracting {
		r.writeManifest(result, encodeErr)
	}
	return encodeErr
}

func closeVideo(name string, w encode.VideoWriter) error {
	if w == nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: finalize merged %s video: %w", ErrEncoder, name, err)
	}
	return nil
}

func (r *takeRun) writeManifest(result Status, encodeErr error) {
	m := r.manifest
	m.Status = result.Kind
	if m.Status == "" {
		// Still unwinding from a panic.
		m.Status = StatusError
	}
	m.Videos = r.writtenVideos()
	switch {
	case result.Err != nil:
		m.Status = StatusError
		m.Error = result.Err.Error()
	case encodeErr != nil:
		m.Status = StatusError
		m.Error = encodeErr.Error()
	}
	if err := WriteManifest(r.desc.ManifestPath(), &m); err != nil {
		logging.WarnWithContext(r.logger, "frame manifest not written", "manifest_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "frame timestamps for this take are unavailable"),
		)
	}
}

// writtenVideos lists the merged videos that exist with content. A take with
// no paired frames has none.
func (r *takeRun) writtenVideos() []string {
	ext := r.p.video.Backend.Extension()
	var names []string
	for _, modality := range []string{"rgb", "depth"} {
		path := r.desc.VideoPath(modality, ext)
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			names = append(names, filepath.Base(path))
		}
	}
	return names
}
