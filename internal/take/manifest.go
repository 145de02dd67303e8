package take

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Manifest records what was extracted for a take. It is written at teardown
// whenever extraction started, including takes that ended in error.
type Manifest struct {
	Action     string        `cbor:"action"`
	Take       int           `cbor:"take"`
	Width      int           `cbor:"width"`
	Height     int           `cbor:"height"`
	FPS        int           `cbor:"fps"`
	DepthScale [2]float64    `cbor:"depth_scale"`
	DepthAlpha float64       `cbor:"depth_alpha"`
	Status     Kind          `cbor:"status"`
	Error      string        `cbor:"error,omitempty"`
	Skipped    [2]int64      `cbor:"skipped_sets"`
	Truncated  [2]bool       `cbor:"truncated"`
	Videos     []string      `cbor:"videos"`
	CreatedAt  time.Time     `cbor:"created_at"`
	Frames     []FrameRecord `cbor:"frames"`
}

// FrameRecord holds both cameras' stream offsets for one frame index.
type FrameRecord struct {
	Index int           `cbor:"index"`
	Cam1  time.Duration `cbor:"cam1_ns"`
	Cam2  time.Duration `cbor:"cam2_ns"`
}

// WriteManifest encodes m to path.
func WriteManifest(path string, m *Manifest) error {
	data, err := cbor.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest decodes the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
