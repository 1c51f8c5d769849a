package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotFound reports a missing blob key.
var ErrNotFound = errors.New("blob not found")

// Store is the storage capability the upload and delete paths need.
// Implementations: fs, memory, s3.
type Store interface {
	// Driver names the backing implementation.
	Driver() string
	// Put stores the blob under key. Existing keys are overwritten; key
	// collisions are prevented upstream by MakeKey.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open streams a stored blob.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes a blob. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// SignedURL mints a time-limited read link for a stored blob.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// MakeKey derives a collision-resistant storage key from the owning test
// id, the upload time, and the original filename:
// <testID>/<unixms>-<sanitized name>.
func MakeKey(testID string, uploadedAt time.Time, originalName string) string {
	return fmt.Sprintf("%s/%d-%s", testID, uploadedAt.UnixMilli(), sanitizeName(originalName))
}

func sanitizeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}

// sanitizeKey rejects keys that could escape a filesystem root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key %q", key)
	}
	clean := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key traversal %q", key)
	}
	return clean, nil
}
