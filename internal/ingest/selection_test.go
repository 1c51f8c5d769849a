package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldcap/internal/testsupport"
)

func TestSelectFiltersMixedBatch(t *testing.T) {
	dir := t.TempDir()
	good1 := filepath.Join(dir, "run1.mp4")
	good2 := filepath.Join(dir, "run2.mov")
	notes := filepath.Join(dir, "notes.txt")
	empty := filepath.Join(dir, "empty.mp4")
	testsupport.WriteFile(t, good1, 2048)
	testsupport.WriteFile(t, good2, 1024)
	testsupport.WriteFile(t, notes, 64)
	// WriteFile floors sizes at one byte, so build the empty file directly.
	if f, err := os.Create(empty); err != nil {
		t.Fatalf("create empty file: %v", err)
	} else {
		f.Close()
	}
	missing := filepath.Join(dir, "gone.mp4")

	var sel Selection
	rejected := sel.Select([]string{good1, notes, empty, missing, good2})

	if sel.Len() != 2 {
		t.Fatalf("staged = %d, want 2", sel.Len())
	}
	files := sel.Files()
	if files[0].Name != "run1.mp4" || files[1].Name != "run2.mov" {
		t.Errorf("pick order not preserved: %v", files)
	}
	if files[0].Type != "video/mp4" || files[1].Type != "video/quicktime" {
		t.Errorf("content types wrong: %q %q", files[0].Type, files[1].Type)
	}
	if sel.TotalSize() != 3072 {
		t.Errorf("TotalSize = %d, want 3072", sel.TotalSize())
	}

	if len(rejected) != 3 {
		t.Fatalf("rejections = %v, want 3", rejected)
	}
	reasons := map[string]string{}
	for _, r := range rejected {
		reasons[filepath.Base(r.Path)] = r.Reason
	}
	if reasons["notes.txt"] != "not a video file" {
		t.Errorf("notes.txt reason = %q", reasons["notes.txt"])
	}
	if reasons["empty.mp4"] != "file is empty" {
		t.Errorf("empty.mp4 reason = %q", reasons["empty.mp4"])
	}
	if reasons["gone.mp4"] != "file does not exist" {
		t.Errorf("gone.mp4 reason = %q", reasons["gone.mp4"])
	}
}

func TestSelectSkipsDuplicates(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "run.mp4")
	testsupport.WriteFile(t, clip, 512)

	var sel Selection
	sel.Select([]string{clip})
	if rejected := sel.Select([]string{clip}); len(rejected) != 0 {
		t.Errorf("duplicate pick reported as rejection: %v", rejected)
	}
	if sel.Len() != 1 {
		t.Errorf("duplicate staged twice: %d", sel.Len())
	}
}

func TestReplaceKeepsPriorSelectionWhenNothingQualifies(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "run.mp4")
	notes := filepath.Join(dir, "notes.txt")
	testsupport.WriteFile(t, clip, 512)
	testsupport.WriteFile(t, notes, 64)

	var sel Selection
	sel.Select([]string{clip})

	rejected := sel.Replace([]string{notes})
	if len(rejected) != 1 {
		t.Fatalf("rejections = %v", rejected)
	}
	if sel.Len() != 1 || sel.Files()[0].Name != "run.mp4" {
		t.Errorf("prior selection lost on an all-rejected replace: %v", sel.Files())
	}

	other := filepath.Join(dir, "other.mov")
	testsupport.WriteFile(t, other, 256)
	if rejected := sel.Replace([]string{other}); len(rejected) != 0 {
		t.Fatalf("replace rejected a valid pick: %v", rejected)
	}
	if sel.Len() != 1 || sel.Files()[0].Name != "other.mov" {
		t.Errorf("replace did not swap the set: %v", sel.Files())
	}
}

func TestRemoveAt(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	b := filepath.Join(dir, "b.mp4")
	c := filepath.Join(dir, "c.mp4")
	for _, p := range []string{a, b, c} {
		testsupport.WriteFile(t, p, 128)
	}

	var sel Selection
	sel.Select([]string{a, b, c})
	if err := sel.RemoveAt(1); err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}
	files := sel.Files()
	if len(files) != 2 || files[0].Name != "a.mp4" || files[1].Name != "c.mp4" {
		t.Errorf("RemoveAt order wrong: %v", files)
	}
	if err := sel.RemoveAt(5); err == nil {
		t.Errorf("out-of-range index accepted")
	}
}

func TestDetectType(t *testing.T) {
	tests := []struct{ path, want string }{
		{"clip.mp4", "video/mp4"},
		{"CLIP.MKV", "video/x-matroska"},
		{"drive.mts", "video/mp2t"},
		{"readme.md", "text/markdown"},
		{"mystery.zzz", "application/octet-stream"},
	}
	for _, tc := range tests {
		got := DetectType(tc.path)
		if tc.path == "readme.md" {
			// Platform mime tables disagree on markdown; only require
			// that it is not reported as video.
			if strings.HasPrefix(got, "video/") {
				t.Errorf("DetectType(%q) = %q", tc.path, got)
			}
			continue
		}
		if got != tc.want {
			t.Errorf("DetectType(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
