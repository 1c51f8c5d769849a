package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FSStore keeps blobs as plain files under a root directory. Keys map to
// relative paths; download links are HMAC-signed daemon URLs.
type FSStore struct {
	root   string
	signer *Signer
}

// NewFS creates a filesystem-backed store rooted at root.
func NewFS(root string, signer *Signer) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("blob root directory required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: root, signer: signer}, nil
}

func (s *FSStore) Driver() string { return "fs" }

func (s *FSStore) pathFor(key string) (string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *FSStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	target, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("finalize blob: %w", err)
	}
	return nil
}

func (s *FSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return file, nil
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	target, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *FSStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.signer == nil {
		return "", errors.New("fs driver has no signer configured")
	}
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return s.signer.Sign(clean, ttl), nil
}
