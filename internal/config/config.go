package config

import (
	_ "embed"
	"errors"
	"fmt"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Cameras identifies the two recording cameras and the stream profile they
// were recorded with.
type Cameras struct {
	Serial1 string `toml:"serial_1" yaml:"serial_1"`
	Serial2 string `toml:"serial_2" yaml:"serial_2"`
	Width   int    `toml:"width" yaml:"width"`
	Height  int    `toml:"height" yaml:"height"`
	FPS     int    `toml:"fps" yaml:"fps"`
}

// Paths contains dataset, output and bookkeeping directories.
type Paths struct {
	DatasetDir string `toml:"dataset_dir" yaml:"dataset_dir"`
	OutputDir  string `toml:"output_dir" yaml:"output_dir"`
	LogDir     string `toml:"log_dir" yaml:"log_dir"`
	// StateDir holds the run ledger and lock. Defaults to <output_dir>/.rsextract.
	StateDir string `toml:"state_dir" yaml:"state_dir"`
}

// Extraction tunes the per-take worker and the pool that runs it.
type Extraction struct {
	Workers        int     `toml:"workers" yaml:"workers"`
	FrameTimeoutMS int     `toml:"frame_timeout_ms" yaml:"frame_timeout_ms"`
	DepthAlpha     float64 `toml:"depth_alpha" yaml:"depth_alpha"`
	PNGCompression string  `toml:"png_compression" yaml:"png_compression"`
	MinFreeGiB     int     `toml:"min_free_gib" yaml:"min_free_gib"`
}

// Encoding selects the merged video backend.
type Encoding struct {
	Backend       string `toml:"backend" yaml:"backend"`
	FFmpegCommand string `toml:"ffmpeg_command" yaml:"ffmpeg_command"`
	Codec         string `toml:"codec" yaml:"codec"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
}

// Config encapsulates all configuration values for rsextract.
//
// Configuration sections:
//   - Cameras: serial numbers and the recorded stream profile
//   - Paths: dataset input, extracted output, logs and run state
//   - Extraction: worker count, frame wait, depth preview scaling
//   - Encoding: merged video backend
//   - Logging: log format and level
type Config struct {
	Cameras    Cameras    `toml:"cameras" yaml:"cameras"`
	Paths      Paths      `toml:"paths" yaml:"paths"`
	Extraction Extraction `toml:"extraction" yaml:"extraction"`
	Encoding   Encoding   `toml:"encoding" yaml:"encoding"`
	Logging    Logging    `toml:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second result is
// the resolved path and the third reports whether the file existed; both are
// set when only validation fails.
func Load(path string) (*Config, string, bool, error) {
	cfg, resolvedPath, exists, err := Read(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolvedPath, exists, err
	}
	return cfg, resolvedPath, exists, nil
}

// Read is Load without validation, for commands that report on an
// incomplete configuration.
func Read(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := toml.NewDecoder(file).Decode(cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	for _, name := range []string{"rsextract.toml", "rsextract.yaml", "rsextract.yml"} {
		projectPath, err := filepath.Abs(name)
		if err != nil {
			return "", false, err
		}
		if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
			return projectPath, true, nil
		}
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output, log and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FrameTimeout is the bounded wait for one frame from one stream.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.Extraction.FrameTimeoutMS) * time.Millisecond
}

// LedgerPath returns the run ledger database location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath returns the single-run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "run.lock")
}

// PNGCompressionLevel maps extraction.png_compression onto the encoder level.
func (c *Config) PNGCompressionLevel() png.CompressionLevel {
	level, _ := parsePNGCompression(c.Extraction.PNGCompression)
	return level
}

func parsePNGCompression(value string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "default":
		return png.DefaultCompression, nil
	case "speed", "fast":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	case "none":
		return png.NoCompression, nil
	default:
		return png.DefaultCompression, fmt.Errorf("unknown png compression %q", value)
	}
}

// FFmpegBinary returns the ffmpeg executable used by the ffmpeg backend.
func (c *Config) FFmpegBinary() string {
	if cmd := strings.TrimSpace(c.Encoding.FFmpegCommand); cmd != "" {
		return cmd
	}
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the config as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
