package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPlaceholderSerial is returned while a camera serial still holds the
// sample value.
var ErrPlaceholderSerial = errors.New("camera serial is still the placeholder " + PlaceholderSerial)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCameras(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCameras() error {
	for key, serial := range map[string]string{"cameras.serial_1": c.Cameras.Serial1, "cameras.serial_2": c.Cameras.Serial2} {
		if serial == "" || serial == PlaceholderSerial {
			return fmt.Errorf("%s: %w; set it in the config file or %s", key, ErrPlaceholderSerial, envFor(key))
		}
		if strings.ContainsAny(serial, `/\ `) {
			return fmt.Errorf("%s %q must not contain path separators or spaces", key, serial)
		}
	}
	if c.Cameras.Serial1 == c.Cameras.Serial2 {
		return errors.New("cameras.serial_1 and cameras.serial_2 must differ")
	}
	return ensurePositiveMap(map[string]int{
		"cameras.width":  c.Cameras.Width,
		"cameras.height": c.Cameras.Height,
		"cameras.fps":    c.Cameras.FPS,
	})
}

func envFor(key string) string {
	if key == "cameras.serial_1" {
		return EnvSerial1
	}
	return EnvSerial2
}

func (c *Config) validatePaths() error {
	if c.Paths.DatasetDir == c.Paths.OutputDir {
		return errors.New("paths.output_dir must differ from paths.dataset_dir")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if err := ensurePositiveMap(map[string]int{
		"extraction.workers":          c.Extraction.Workers,
		"extraction.frame_timeout_ms": c.Extraction.FrameTimeoutMS,
	}); err != nil {
		return err
	}
	if c.Extraction.DepthAlpha <= 0 {
		return errors.New("extraction.depth_alpha must be positive")
	}
	if c.Extraction.MinFreeGiB < 0 {
		return errors.New("extraction.min_free_gib must be >= 0")
	}
	if _, err := parsePNGCompression(c.Extraction.PNGCompression); err != nil {
		return fmt.Errorf("extraction.png_compression: %w", err)
	}
	return nil
}

func (c *Config) validateEncoding() error {
	switch c.Encoding.Backend {
	case "ffmpeg", "x264", "opencv":
	default:
		return fmt.Errorf("encoding.backend %q must be one of ffmpeg, x264, opencv", c.Encoding.Backend)
	}
	if c.Encoding.Backend == "x264" && (c.Cameras.Height%2 != 0 || c.Cameras.Width%2 != 0) {
		return errors.New("encoding.backend x264 needs even camera width and height")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
