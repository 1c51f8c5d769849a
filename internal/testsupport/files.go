package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// ftypPrefix is the leading bytes of an MP4 container so staged clips
// look like video to anything that sniffs content. Truncated when the
// requested size is smaller.
var ftypPrefix = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}

// WriteFile stages a fake clip of exactly size bytes at path, creating
// parent directories as needed. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	chunk := make([]byte, 32*1024)
	for i := range chunk {
		chunk[i] = byte(i % 251)
	}

	prefix := ftypPrefix
	if int64(len(prefix)) > size {
		prefix = prefix[:size]
	}
	if _, err := f.Write(prefix); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}

	remaining := size - int64(len(prefix))
	for remaining > 0 {
		n := int64(len(chunk))
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(chunk[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
}
