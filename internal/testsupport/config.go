package testsupport

import (
	"fmt"
	"path/filepath"
	"testing"

	"rsextract/internal/config"
)

// Camera serials used by generated configs.
const (
	Serial1 = "111111111111"
	Serial2 = "222222222222"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Camera dimensions match the Recording defaults.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Cameras.Serial1 = Serial1
	cfgVal.Cameras.Serial2 = Serial2
	cfgVal.Cameras.Width = 8
	cfgVal.Cameras.Height = 6
	cfgVal.Cameras.FPS = 15
	cfgVal.Paths.DatasetDir = filepath.Join(base, "Dataset")
	cfgVal.Paths.OutputDir = filepath.Join(base, "Dataset_Extracted")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Extraction.Workers = 2
	cfgVal.Extraction.FrameTimeoutMS = 2000
	cfgVal.Extraction.MinFreeGiB = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithBackend selects the video backend.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoding.Backend = backend
	}
}

// WithStubbedFFmpeg installs script as ffmpeg on PATH.
func WithStubbedFFmpeg(script string) ConfigOption {
	return func(b *configBuilder) {
		StubBinary(b.t, "ffmpeg", script)
	}
}

// WithConfig applies an arbitrary mutation.
func WithConfig(fn func(*config.Config)) ConfigOption {
	return func(b *configBuilder) {
		fn(b.cfg)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DatasetDir)
}

// TakePath returns where camera cam (1 or 2) of a take is recorded.
func TakePath(cfg *config.Config, action string, take, cam int) string {
	serial := cfg.Cameras.Serial1
	if cam == 2 {
		serial = cfg.Cameras.Serial2
	}
	return filepath.Join(cfg.Paths.DatasetDir, action, fmt.Sprintf("take_%02d_%s.bag", take, serial))
}

// WriteTake records both cameras of a take into the dataset directory.
func WriteTake(t testing.TB, cfg *config.Config, action string, take int, cam1, cam2 Recording) {
	t.Helper()
	WriteRecording(t, TakePath(cfg, action, take, 1), cam1)
	WriteRecording(t, TakePath(cfg, action, take, 2), cam2)
}
