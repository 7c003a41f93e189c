package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// jpegStub is the smallest byte sequence image viewers accept as a JPEG.
var jpegStub = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xff, 0xd9}

// WriteSnapshot writes a stub JPEG named name into dir and returns its path.
func WriteSnapshot(t testing.TB, dir, name string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, jpegStub, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
