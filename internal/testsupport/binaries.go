package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// CaptureFFmpegScript is a stand-in for ffmpeg that copies stdin to the
// output path (its last argument).
const CaptureFFmpegScript = `#!/bin/sh
for last; do :; done
cat > "$last"
`

// FailingScript exits non-zero after printing to stderr.
const FailingScript = `#!/bin/sh
cat > /dev/null
echo "simulated encoder failure" >&2
exit 1
`

// StubBinary writes an executable script named name into a temp directory
// and prepends that directory to PATH for the rest of the test.
func StubBinary(t testing.TB, name, script string) string {
	t.Helper()
	binDir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return target
}
