// Package ingest manages the set of local video files staged for upload.
// Selection filters picked files by type and size before anything
// touches the network.
package ingest

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// MaxFileSize caps a single staged video. Oversized files are rejected
// at selection time, not at upload time.
const MaxFileSize int64 = 2 << 30

// videoExtensions supplements MIME detection for containers the
// platform mime table may not know.
var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".3gp":  "video/3gpp",
	".mts":  "video/mp2t",
	".ts":   "video/mp2t",
}

// File is one staged video, inspected and accepted.
type File struct {
	Path string
	Name string
	Size int64
	Type string
}

// Rejection explains why a picked file was not staged.
type Rejection struct {
	Path   string
	Reason string
}

func (r Rejection) String() string {
	return fmt.Sprintf("%s: %s", filepath.Base(r.Path), r.Reason)
}

// Selection is the staged set. Adding files never disturbs what was
// already accepted; rejected picks are reported alongside.
type Selection struct {
	files []File
}

// Files returns the staged files in pick order.
func (s *Selection) Files() []File {
	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

func (s *Selection) Len() int { return len(s.files) }

// TotalSize sums the staged file sizes.
func (s *Selection) TotalSize() int64 {
	var total int64
	for _, f := range s.files {
		total += f.Size
	}
	return total
}

// Select inspects the picked paths and stages the ones that pass the
// filter. Non-video and oversized picks come back as rejections; picks
// already staged are skipped silently.
func (s *Selection) Select(paths []string) []Rejection {
	var rejected []Rejection
	for _, path := range paths {
		file, reason := inspect(path)
		if reason != "" {
			rejected = append(rejected, Rejection{Path: path, Reason: reason})
			continue
		}
		if s.has(file.Path) {
			continue
		}
		s.files = append(s.files, file)
	}
	return rejected
}

// Replace clears the staged set and stages the picked paths. When every
// pick is rejected the previous selection is kept.
func (s *Selection) Replace(paths []string) []Rejection {
	var next Selection
	rejected := next.Select(paths)
	if next.Len() == 0 && len(paths) > 0 {
		return rejected
	}
	s.files = next.files
	return rejected
}

// RemoveAt drops the staged file at index, preserving order.
func (s *Selection) RemoveAt(index int) error {
	if index < 0 || index >= len(s.files) {
		return fmt.Errorf("selection index %d out of range", index)
	}
	s.files = append(s.files[:index], s.files[index+1:]...)
	return nil
}

// Clear drops every staged file.
func (s *Selection) Clear() {
	s.files = nil
}

func (s *Selection) has(path string) bool {
	for _, f := range s.files {
		if f.Path == path {
			return true
		}
	}
	return false
}

func inspect(path string) (File, string) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, "file does not exist"
		}
		return File{}, fmt.Sprintf("stat failed: %v", err)
	}
	if info.IsDir() {
		return File{}, "is a directory"
	}

	contentType := DetectType(path)
	if !strings.HasPrefix(contentType, "video/") {
		return File{}, "not a video file"
	}
	if info.Size() > MaxFileSize {
		return File{}, fmt.Sprintf("larger than %s limit", humanize.IBytes(uint64(MaxFileSize)))
	}
	if info.Size() == 0 {
		return File{}, "file is empty"
	}

	return File{
		Path: path,
		Name: filepath.Base(path),
		Size: info.Size(),
		Type: contentType,
	}, ""
}

// DetectType resolves a content type from the file extension, falling
// back to the platform mime table for extensions we do not list.
func DetectType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if contentType, ok := videoExtensions[ext]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
			contentType = contentType[:idx]
		}
		return contentType
	}
	return "application/octet-stream"
}
