package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Environment variables that override the configured camera serials.
const (
	EnvSerial1 = "RSEXTRACT_SERIAL_1"
	EnvSerial2 = "RSEXTRACT_SERIAL_2"
)

func (c *Config) normalize() error {
	c.normalizeCameras()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExtraction()
	c.normalizeEncoding()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeCameras() {
	if value, ok := os.LookupEnv(EnvSerial1); ok && strings.TrimSpace(value) != "" {
		c.Cameras.Serial1 = value
	}
	if value, ok := os.LookupEnv(EnvSerial2); ok && strings.TrimSpace(value) != "" {
		c.Cameras.Serial2 = value
	}
	c.Cameras.Serial1 = strings.TrimSpace(c.Cameras.Serial1)
	c.Cameras.Serial2 = strings.TrimSpace(c.Cameras.Serial2)
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DatasetDir) == "" {
		c.Paths.DatasetDir = defaultDatasetDir
	}
	if c.Paths.DatasetDir, err = expandPath(c.Paths.DatasetDir); err != nil {
		return fmt.Errorf("paths.dataset_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = filepath.Join(c.Paths.OutputDir, stateDirName)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, logDirName)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExtraction() {
	if c.Extraction.Workers == 0 {
		c.Extraction.Workers = runtime.NumCPU()
	}
	if c.Extraction.FrameTimeoutMS == 0 {
		c.Extraction.FrameTimeoutMS = defaultFrameTimeoutMS
	}
	if c.Extraction.DepthAlpha == 0 {
		c.Extraction.DepthAlpha = defaultDepthAlpha
	}
	c.Extraction.PNGCompression = strings.ToLower(strings.TrimSpace(c.Extraction.PNGCompression))
	if c.Extraction.PNGCompression == "" {
		c.Extraction.PNGCompression = defaultPNGCompression
	}
}

func (c *Config) normalizeEncoding() {
	c.Encoding.Backend = strings.ToLower(strings.TrimSpace(c.Encoding.Backend))
	if c.Encoding.Backend == "" {
		c.Encoding.Backend = defaultBackend
	}
	c.Encoding.FFmpegCommand = strings.TrimSpace(c.Encoding.FFmpegCommand)
	c.Encoding.Codec = strings.TrimSpace(c.Encoding.Codec)
	if c.Encoding.Codec == "" {
		c.Encoding.Codec = defaultCodec
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
