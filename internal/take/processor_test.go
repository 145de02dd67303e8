package take_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rsextract/internal/config"
	"rsextract/internal/encode"
	"rsextract/internal/extract"
	"rsextract/internal/logging"
	"rsextract/internal/take"
	"rsextract/internal/testsupport"
)

func newProcessor(t *testing.T, opts ...testsupport.ConfigOption) (*config.Config, *take.Processor) {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithStubbedFFmpeg(testsupport.CaptureFFmpegScript)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	p, err := take.NewProcessor(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return cfg, p
}

func frameNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// assertArtifacts checks every artifact count agrees with frames.
func assertArtifacts(t *testing.T, cfg *config.Config, desc take.Descriptor, frames int) {
	t.Helper()
	for _, name := range take.ImageDirs {
		names := frameNames(t, desc.ImageDir(name))
		if len(names) != frames {
			t.Fatalf("%s holds %d images, want %d", name, len(names), frames)
		}
		for i, got := range names {
			if want := encode.FrameName(i); got != want {
				t.Fatalf("%s image %d named %s, want %s", name, i, got, want)
			}
		}
	}
	frameBytes := 2 * cfg.Cameras.Width * cfg.Cameras.Height * 3
	for _, modality := range []string{"rgb", "depth"} {
		data, err := os.ReadFile(desc.VideoPath(modality, ".mov"))
		if err != nil {
			t.Fatalf("read merged %s video: %v", modality, err)
		}
		if len(data) != frames*frameBytes {
			t.Fatalf("merged %s video carries %d bytes, want %d frames of %d", modality, len(data), frames, frameBytes)
		}
	}
}

func TestProcessCompletesTake(t *testing.T) {
	cfg, p := newProcessor(t)
	testsupport.WriteTake(t, cfg, "pour", 1, testsupport.Recording{Frames: 6}, testsupport.Recording{Frames: 6})

	status := p.Process(context.Background(), "pour", 1)
	if status.Kind != take.StatusCompleted || status.Err != nil {
		t.Fatalf("status = %v (%v)", status, status.Err)
	}
	if status.Frames != 6 {
		t.Fatalf("frames = %d, want 6", status.Frames)
	}
	if got := status.String(); got != "Processed take 01 (6 frames)" {
		t.Fatalf("message = %q", got)
	}

	desc := p.Layout().Describe("pour", 1)
	assertArtifacts(t, cfg, desc, 6)

	m, err := take.ReadManifest(desc.ManifestPath())
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.Status != take.StatusCompleted || len(m.Frames) != 6 || m.DepthScale[0] != 0.001 {
		t.Fatalf("unexpected manifest %+v", m)
	}
	if m.DepthAlpha != cfg.Extraction.DepthAlpha {
		t.Fatalf("manifest depth alpha = %v, want %v", m.DepthAlpha, cfg.Extraction.DepthAlpha)
	}
	if len(m.Videos) != 2 || m.Videos[0] != filepath.Base(desc.VideoPath("rgb", ".mov")) {
		t.Fatalf("manifest videos = %v", m.Videos)
	}
	for i, rec := range m.Frames {
		if rec.Index != i {
			t.Fatalf("manifest frame %d has index %d", i, rec.Index)
		}
		if i > 0 && rec.Cam1 <= m.Frames[i-1].Cam1 {
			t.Fatalf("manifest timestamps not increasing at %d", i)
		}
	}
}

func TestProcessStopsAtShorterStream(t *testing.T) {
	cfg, p := newProcessor(t)
	testsupport.WriteTake(t, cfg, "wave", 2, testsupport.Recording{Frames: 50}, testsupport.Recording{Frames: 47})

	status := p.Process(context.Background(), "wave", 2)
	if status.Kind != take.StatusCompleted {
		t.Fatalf("status = %v", status)
	}
	if status.Frames != 47 {
		t.Fatalf("frames = %d, want 47", status.Frames)
	}
	assertArtifacts(t, cfg, p.Layout().Describe("wave", 2), 47)
}

func TestProcessExcludesIncompleteFrameSets(t *testing.T) {
	cfg, p := newProcessor(t)
	testsupport.WriteTake(t, cfg, "lift", 3,
		testsupport.Recording{Frames: 10, DropDepth: []int{3}, DropColor: []int{8}},
		testsupport.Recording{Frames: 10},
	)

	status := p.Process(context.Background(), "lift", 3)
	if status.Kind != take.StatusCompleted || status.Frames != 8 {
		t.Fatalf("status = %v, want 8 frames", status)
	}
	assertArtifacts(t, cfg, p.Layout().Describe("lift", 3), 8)
}

func TestProcessWritesRawDepthImages(t *testing.T) {
	cfg, p := newProcessor(t)
	testsupport.WriteTake(t, cfg, "pour", 1, testsupport.Recording{Frames: 3}, testsupport.Recording{Frames: 3})

	if status := p.Process(context.Background(), "pour", 1); status.Kind != take.StatusCompleted {
		t.Fatalf("status = %v", status)
	}
	desc := p.Layout().Describe("pour", 1)

	f, err := os.Open(filepath.Join(desc.ImageDir(take.Cam2Depth), encode.FrameName(2)))
	if err != nil {
		t.Fatalf("open depth image: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode depth image: %v", err)
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("depth image decoded as %T, want 16-bit grayscale", img)
	}
	if v := gray.Gray16At(3, 3).Y; v != 1002 {
		t.Fatalf("depth pixel = %d, want raw 1002", v)
	}

	f2, err := os.Open(filepath.Join(desc.ImageDir(take.Cam1Color), encode.FrameName(1)))
	if err != nil {
		t.Fatalf("open color image: %v", err)
	}
	defer f2.Close()
	cimg, err := png.Decode(f2)
	if err != nil {
		t.Fatalf("decode color image: %v", err)
	}
	r, g, b, _ := cimg.At(2, 2).RGBA()
	if r>>8 != 11 || g>>8 != 101 || b>>8 != 199 {
		t.Fatalf("color pixel = (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestProcessSkipsMissingInput(t *testing.T) {
	cfg, p := newProcessor(t)
	testsupport.WriteRecording(t, testsupport.TakePath(cfg, "pour", 4, 1), testsupport.Recording{Frames: 3})

	status := p.Process(context.Background(), "pour", 4)
	if status.Kind != take.StatusSkipped {
		t.Fatalf("status = %v", status)
	}
	if !errors.Is(status.Err, take.ErrInputMissing) {
		t.Fatalf("expected ErrInputMissing, got %v", status.Err)
	}
	if got := status.String(); got != "Skipped take 04: one or both .bag files are missing." {
		t.Fatalf("message = %q", got)
	}
	if _, err := os.Stat(cfg.Paths.OutputDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output tree created for a skipped take: %v", err)
	}
}

func TestProcessCorruptRecordingReleasesStreams(t *testing.T) {
	cfg, p := newProcessor(t)
	testsupport.WriteRecording(t, testsupport.TakePath(cfg, "pour", 5, 1), testsupport.Recording{Frames: 3})
	if err := os.WriteFile(testsupport.TakePath(cfg, "pour", 5, 2), []byte("not a recording"), 0o644); err != nil {
		t.Fatal(err)
	}

	before := extract.OpenStreams()
	status := p.Process(context.Background(), "pour", 5)
	if status.Kind != take.StatusError {
		t.Fatalf("status = %v", status)
	}
	if !errors.Is(status.Err, take.ErrStreamOpen) || !errors.Is(status.Err, extract.ErrDecode) {
		t.Fatalf("expected stream open decode error, got %v", status.Err)
	}
	if !strings.HasPrefix(status.String(), "ERROR processing take 05: ") {
		t.Fatalf("message = %q", status.String())
	}
	if after := extract.OpenStreams(); after != before {
		t.Fatalf("open streams %d after failed take, want %d", after, before)
	}
	if _, err := os.Stat(p.Layout().Describe("pour", 5).ManifestPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("manifest written for a take that never extracted: %v", err)
	}
}

func TestProcessRejectsMismatchedResolution(t *testing.T) {
	cfg, p := newProcessor(t, testsupport.WithConfig(func(c *config.Config) { c.Cameras.Width = 16 }))
	testsupport.WriteTake(t, cfg, "pour", 6, testsupport.Recording{Frames: 2}, testsupport.Recording{Frames: 2})

	status := p.Process(context.Background(), "pour", 6)
	if status.Kind != take.StatusError || !errors.Is(status.Err, take.ErrStreamOpen) {
		t.Fatalf("status = %v (%v)", status, status.Err)
	}
}

func TestProcessReportsEncoderFailure(t *testing.T) {
	cfg, p := newProcessor(t, testsupport.WithStubbedFFmpeg(testsupport.FailingScript))
	testsupport.WriteTake(t, cfg, "pour", 7, testsupport.Recording{Frames: 2}, testsupport.Recording{Frames: 2})

	status := p.Process(context.Background(), "pour", 7)
	if status.Kind != take.StatusError || !errors.Is(status.Err, take.ErrEncoder) {
		t.Fatalf("status = %v (%v)", status, status.Err)
	}
	if !strings.Contains(status.Err.Error(), "simulated encoder failure") {
		t.Fatalf("encoder stderr missing from %v", status.Err)
	}
	m, err := take.ReadManifest(p.Layout().Describe("pour", 7).ManifestPath())
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.Status != take.StatusError || m.Error == "" {
		t.Fatalf("manifest status = %q error = %q", m.Status, m.Error)
	}
}

func TestProcessWithoutPairsRecordsMissingVideos(t *testing.T) {
	cfg, p := newProcessor(t)
	testsupport.WriteTake(t, cfg, "pour", 8,
		testsupport.Recording{Frames: 2, DropDepth: []int{0, 1}},
		testsupport.Recording{Frames: 2},
	)

	status := p.Process(context.Background(), "pour", 8)
	if status.Kind != take.StatusCompleted || status.Frames != 0 {
		t.Fatalf("status = %v (%v)", status, status.Err)
	}
	desc := p.Layout().Describe("pour", 8)
	for _, modality := range []string{"rgb", "depth"} {
		if _, err := os.Stat(desc.VideoPath(modality, ".mov")); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("merged %s video exists for a take without frames: %v", modality, err)
		}
	}
	m, err := take.ReadManifest(desc.ManifestPath())
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(m.Videos) != 0 || len(m.Frames) != 0 || m.Skipped[0] != 2 {
		t.Fatalf("unexpected manifest %+v", m)
	}
}

func TestProcessAlignsD4xxCameraModels(t *testing.T) {
	const width, height = 640, 480
	cfg, p := newProcessor(t, testsupport.WithConfig(func(c *config.Config) {
		c.Cameras.Width, c.Cameras.Height, c.Cameras.FPS = width, height, 30
	}))
	rec := testsupport.Recording{
		Width:       width,
		Height:      height,
		FPS:         30,
		Frames:      2,
		DepthModel:  testsupport.D4xxDepthModel(width, height),
		ColorModel:  testsupport.D4xxColorModel(width, height),
		ColorOffset: testsupport.D4xxBaseline,
	}
	testsupport.WriteTake(t, cfg, "reach", 1, rec, rec)

	status := p.Process(context.Background(), "reach", 1)
	if status.Kind != take.StatusCompleted || status.Frames != 2 {
		t.Fatalf("status = %v (%v)", status, status.Err)
	}
	desc := p.Layout().Describe("reach", 1)
	assertArtifacts(t, cfg, desc, 2)

	gray := decodeDepthPNG(t, filepath.Join(desc.ImageDir(take.Cam1Depth), encode.FrameName(1)))
	if b := gray.Bounds(); b.Dx() != width || b.Dy() != height {
		t.Fatalf("depth image is %dx%d", b.Dx(), b.Dy())
	}
	if v := gray.Gray16At(width/2, height/2).Y; v != 1001 {
		t.Fatalf("centre depth = %d, want 1001", v)
	}
	covered := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if gray.Gray16At(x, y).Y != 0 {
				covered++
			}
		}
	}
	if covered < width*height*9/10 {
		t.Fatalf("aligned depth covers %d of %d color pixels", covered, width*height)
	}
}

func TestProcessIsRepeatable(t *testing.T) {
	cfg, first := newProcessor(t)
	testsupport.WriteTake(t, cfg, "wave", 3, testsupport.Recording{Frames: 5, DropColor: []int{2}}, testsupport.Recording{Frames: 5})

	second := *cfg
	second.Paths.OutputDir = filepath.Join(testsupport.BaseDir(cfg), "rerun")
	again, err := take.NewProcessor(&second, logging.NewNop())
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}

	s1 := first.Process(context.Background(), "wave", 3)
	s2 := again.Process(context.Background(), "wave", 3)
	if s1.Kind != take.StatusCompleted || s2.Kind != take.StatusCompleted {
		t.Fatalf("statuses = %v, %v", s1, s2)
	}
	if s1.Frames != 4 || s2.Frames != s1.Frames {
		t.Fatalf("frames = %d then %d, want 4 both times", s1.Frames, s2.Frames)
	}

	d1, d2 := first.Layout().Describe("wave", 3), again.Layout().Describe("wave", 3)
	for _, name := range take.ImageDirs {
		for i := 0; i < s1.Frames; i++ {
			a := readFile(t, filepath.Join(d1.ImageDir(name), encode.FrameName(i)))
			b := readFile(t, filepath.Join(d2.ImageDir(name), encode.FrameName(i)))
			ca, _, err := image.DecodeConfig(bytes.NewReader(a))
			if err != nil {
				t.Fatalf("decode %s frame %d: %v", name, i, err)
			}
			cb, _, err := image.DecodeConfig(bytes.NewReader(b))
			if err != nil {
				t.Fatalf("decode rerun %s frame %d: %v", name, i, err)
			}
			if ca.Width != cb.Width || ca.Height != cb.Height || !bytes.Equal(a, b) {
				t.Fatalf("%s frame %d differs between runs", name, i)
			}
		}
	}
	for _, modality := range []string{"rgb", "depth"} {
		a := readFile(t, d1.VideoPath(modality, ".mov"))
		b := readFile(t, d2.VideoPath(modality, ".mov"))
		if len(a) != len(b) {
			t.Fatalf("merged %s video is %d bytes then %d", modality, len(a), len(b))
		}
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func decodeDepthPNG(t *testing.T, path string) *image.Gray16 {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(readFile(t, path)))
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("%s decoded as %T, want 16-bit grayscale", path, img)
	}
	return gray
}
