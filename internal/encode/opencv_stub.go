//go:build !gocv

package encode

import "fmt"

func newOpenCVWriter(string, VideoOptions) (VideoWriter, error) {
	return nil, fmt.Errorf("%w: opencv backend requires building with -tags gocv", ErrUnsupportedBackend)
}

// OpenCVAvailable reports whether the opencv backend was compiled in.
const OpenCVAvailable = false
