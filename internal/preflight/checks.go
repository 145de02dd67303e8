package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"rsextract/internal/config"
	"rsextract/internal/deps"
	"rsextract/internal/encode"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, ok string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, ok)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minBytes
// available to unprivileged users.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%s (%.1f GiB free)", path, float64(free)/(1<<30))
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s, need %.1f GiB", detail, float64(minBytes)/(1<<30))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckEncoder verifies the configured video backend can run.
func CheckEncoder(cfg *config.Config) Result {
	const name = "Video encoder"
	backend, err := encode.ParseBackend(cfg.Encoding.Backend)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	switch backend {
	case encode.BackendFFmpeg:
		status := deps.CheckFFmpeg(cfg.Encoding.FFmpegCommand)
		if !status.Available {
			return Result{Name: name, Detail: "ffmpeg: " + status.Detail}
		}
		return Result{Name: name, Passed: true, Detail: "ffmpeg " + status.Command}
	case encode.BackendOpenCV:
		if !encode.OpenCVAvailable {
			return Result{Name: name, Detail: "opencv backend needs a build with the gocv tag"}
		}
		return Result{Name: name, Passed: true, Detail: "opencv"}
	default:
		return Result{Name: name, Passed: true, Detail: string(backend) + " (built in)"}
	}
}

// CheckSystemDeps reports the external binaries the configured backend uses.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	backend, _ := encode.ParseBackend(cfg.Encoding.Backend)
	ffmpeg := deps.CheckFFmpeg(cfg.Encoding.FFmpegCommand)
	ffmpeg.Optional = backend != encode.BackendFFmpeg
	return []deps.Status{ffmpeg}
}
