package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with size bytes of deterministic filler so
// hash and size assertions stay stable across runs. Sizes <= 0 produce
// a one-byte file. Parent directories are created as needed.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}

	var buf bytes.Buffer
	buf.Grow(int(size))
	for int64(buf.Len()) < size {
		buf.WriteString("clipforge test payload ")
	}
	if err := os.WriteFile(path, buf.Bytes()[:size], 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
