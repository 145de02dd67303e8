package config

import "runtime"

// PlaceholderSerial is the serial number shipped in sample configurations.
// It never matches a real camera.
const PlaceholderSerial = "000000000000"

const (
	defaultConfigPath     = "~/.config/rsextract/config.toml"
	defaultDatasetDir     = "Dataset"
	defaultOutputDir      = "Dataset_Extracted"
	defaultWidth          = 640
	defaultHeight         = 480
	defaultFPS            = 15
	defaultFrameTimeoutMS = 100
	defaultDepthAlpha     = 0.03
	defaultBackend        = "ffmpeg"
	defaultCodec          = "mpeg4"
	defaultPNGCompression = "default"
	defaultMinFreeGiB     = 1
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	stateDirName          = ".rsextract"
	logDirName            = "logs"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Cameras: Cameras{
			Serial1: PlaceholderSerial,
			Serial2: PlaceholderSerial,
			Width:   defaultWidth,
			Height:  defaultHeight,
			FPS:     defaultFPS,
		},
		Paths: Paths{
			DatasetDir: defaultDatasetDir,
			OutputDir:  defaultOutputDir,
		},
		Extraction: Extraction{
			Workers:        runtime.NumCPU(),
			FrameTimeoutMS: defaultFrameTimeoutMS,
			DepthAlpha:     defaultDepthAlpha,
			PNGCompression: defaultPNGCompression,
			MinFreeGiB:     defaultMinFreeGiB,
		},
		Encoding: Encoding{
			Backend: defaultBackend,
			Codec:   defaultCodec,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
