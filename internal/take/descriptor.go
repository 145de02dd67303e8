package take

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Image directories inside a take directory.
const (
	Cam1Color = "cam1_color"
	Cam1Depth = "cam1_depth"
	Cam2Color = "cam2_color"
	Cam2Depth = "cam2_depth"
)

// ImageDirs lists the per-take image directories in creation order.
var ImageDirs = [4]string{Cam1Color, Cam1Depth, Cam2Color, Cam2Depth}

// ManifestName is the per-take frame manifest file.
const ManifestName = "frames.cbor"

// RecordingExt is the extension of recorded takes.
const RecordingExt = ".bag"

// Layout names the dataset and output trees for one camera pair.
type Layout struct {
	DatasetDir string
	OutputDir  string
	Serial1    string
	Serial2    string
}

// Descriptor identifies one take and where its inputs and outputs live.
type Descriptor struct {
	Action     string
	Index      int
	Cam1Path   string
	Cam2Path   string
	OutputRoot string
}

// InputName returns the recording file name for a take and camera serial.
func InputName(take int, serial string) string {
	return fmt.Sprintf("take_%02d_%s%s", take, serial, RecordingExt)
}

// Describe resolves the descriptor for action and take under l.
func (l Layout) Describe(action string, take int) Descriptor {
	dir := filepath.Join(l.DatasetDir, action)
	return Descriptor{
		Action:     action,
		Index:      take,
		Cam1Path:   filepath.Join(dir, InputName(take, l.Serial1)),
		Cam2Path:   filepath.Join(dir, InputName(take, l.Serial2)),
		OutputRoot: l.OutputDir,
	}
}

// Validate rejects identifiers that cannot name an output location.
func (d Descriptor) Validate() error {
	if d.Index <= 0 {
		return fmt.Errorf("take index %d must be positive", d.Index)
	}
	action := strings.TrimSpace(d.Action)
	if action == "" {
		return errors.New("action name is empty")
	}
	if action == "." || action == ".." || strings.ContainsAny(action, `/\`) {
		return fmt.Errorf("action name %q is not a directory name", d.Action)
	}
	return nil
}

// MissingInputs returns the input paths that do not exist.
func (d Descriptor) MissingInputs() []string {
	var missing []string
	for _, path := range []string{d.Cam1Path, d.Cam2Path} {
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			missing = append(missing, path)
		}
	}
	return missing
}

// ActionDir is the per-action output directory holding the merged videos.
func (d Descriptor) ActionDir() string {
	return filepath.Join(d.OutputRoot, d.Action)
}

// Dir is the per-take output directory.
func (d Descriptor) Dir() string {
	return filepath.Join(d.ActionDir(), fmt.Sprintf("take_%02d", d.Index))
}

// ImageDir returns one of the four image directories.
func (d Descriptor) ImageDir(name string) string {
	return filepath.Join(d.Dir(), name)
}

// VideoPath returns the merged video path for modality ("rgb" or "depth").
func (d Descriptor) VideoPath(modality, ext string) string {
	return filepath.Join(d.ActionDir(), fmt.Sprintf("%s_take_%02d_merged_%s%s", d.Action, d.Index, modality, ext))
}

// ManifestPath returns the frame manifest location.
func (d Descriptor) ManifestPath() string {
	return filepath.Join(d.Dir(), ManifestName)
}
