package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"rsextract/internal/take"
)

// ErrRootMissing is returned when the dataset root is not a directory.
var ErrRootMissing = errors.New("dataset directory not found")

// Action is one action directory and the takes recorded in it.
type Action struct {
	Name  string
	Dir   string
	Takes []int
}

// Job identifies one take to process.
type Job struct {
	Action string
	Take   int
}

func (j Job) String() string {
	return fmt.Sprintf("%s/take_%02d", j.Action, j.Take)
}

// Discover lists action directories under root in name order together with
// the ascending take numbers recorded by the camera with serial.
func Discover(root, serial string) ([]Action, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootMissing, root)
		}
		return nil, fmt.Errorf("stat dataset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootMissing, root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dataset directory: %w", err)
	}
	var actions []Action
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		takes, err := TakeNumbers(dir, serial)
		if err != nil {
			return nil, err
		}
		actions = append(actions, Action{Name: entry.Name(), Dir: dir, Takes: takes})
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].Name < actions[j].Name })
	return actions, nil
}

// TakeNumbers returns the distinct take numbers in dir recorded by serial,
// ascending. A missing directory has no takes.
func TakeNumbers(dir, serial string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read action directory %s: %w", dir, err)
	}
	seen := make(map[int]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if n, ok := parseTakeNumber(entry.Name(), serial); ok {
			seen[n] = struct{}{}
		}
	}
	takes := make([]int, 0, len(seen))
	for n := range seen {
		takes = append(takes, n)
	}
	sort.Ints(takes)
	return takes, nil
}

// NextTakeNumber returns the number the next recording in dir should use:
// one past the highest existing take, or 1 when there are none.
func NextTakeNumber(dir, serial string) (int, error) {
	takes, err := TakeNumbers(dir, serial)
	if err != nil {
		return 0, err
	}
	if len(takes) == 0 {
		return 1, nil
	}
	return takes[len(takes)-1] + 1, nil
}

// Jobs flattens actions into per-take jobs. A non-empty only restricts the
// result to that action.
func Jobs(actions []Action, only string) []Job {
	var jobs []Job
	for _, action := range actions {
		if only != "" && action.Name != only {
			continue
		}
		for _, n := range action.Takes {
			jobs = append(jobs, Job{Action: action.Name, Take: n})
		}
	}
	return jobs
}

func parseTakeNumber(name, serial string) (int, bool) {
	suffix := "_" + serial + take.RecordingExt
	if !strings.HasPrefix(name, "take_") || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	middle := strings.TrimSuffix(strings.TrimPrefix(name, "take_"), suffix)
	n, err := strconv.Atoi(middle)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
