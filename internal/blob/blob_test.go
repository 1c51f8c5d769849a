package blob

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestMakeKeySanitizesNames(t *testing.T) {
	at := time.UnixMilli(1724570000000)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "clip.mp4", "test-1-a/1724570000000-clip.mp4"},
		{"spaces and unicode", "dash cam ünit.mp4", "test-1-a/1724570000000-dash_cam__nit.mp4"},
		{"path stripped", "../../etc/passwd.mp4", "test-1-a/1724570000000-passwd.mp4"},
		{"windows path stripped", `C:\clips\run.mov`, "test-1-a/1724570000000-run.mov"},
		{"empty falls back", "", "test-1-a/1724570000000-upload"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MakeKey("test-1-a", at, tc.in); got != tc.want {
				t.Errorf("MakeKey(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "  ", "/abs/key", "../escape", "a/../../b"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Errorf("sanitizeKey(%q) accepted a hostile key", key)
		}
	}
	if clean, err := sanitizeKey("test-1-a/clip.mp4"); err != nil || clean != "test-1-a/clip.mp4" {
		t.Errorf("sanitizeKey rejected a valid key: %q %v", clean, err)
	}
}

func TestSignerRoundTrip(t *testing.T) {
	signer := NewSigner("secret", "http://127.0.0.1:7497")
	link := signer.Sign("test-1-a/clip.mp4", time.Minute)

	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse signed link: %v", err)
	}
	if !strings.HasPrefix(parsed.Path, "/blobs/") {
		t.Errorf("path = %q, want /blobs/ prefix", parsed.Path)
	}
	if err := signer.Verify("test-1-a/clip.mp4", parsed.Query()); err != nil {
		t.Errorf("Verify rejected its own link: %v", err)
	}
	if err := signer.Verify("test-1-a/other.mp4", parsed.Query()); err == nil {
		t.Errorf("signature valid for a different key")
	}

	other := NewSigner("different-secret", "http://127.0.0.1:7497")
	if err := other.Verify("test-1-a/clip.mp4", parsed.Query()); err == nil {
		t.Errorf("signature accepted under the wrong secret")
	}
}

func TestSignerExpiry(t *testing.T) {
	signer := NewSigner("secret", "http://127.0.0.1:7497")
	link := signer.Sign("test-1-a/clip.mp4", -time.Minute)

	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse signed link: %v", err)
	}
	if err := signer.Verify("test-1-a/clip.mp4", parsed.Query()); err == nil {
		t.Errorf("expired link accepted")
	}
	if err := signer.Verify("test-1-a/clip.mp4", url.Values{}); err == nil {
		t.Errorf("unsigned request accepted")
	}
}

func storeUnderTest(t *testing.T, driver string) Store {
	t.Helper()
	signer := NewSigner("secret", "http://127.0.0.1:7497")
	switch driver {
	case "memory":
		return NewMemory(signer)
	case "fs":
		st, err := NewFS(t.TempDir(), signer)
		if err != nil {
			t.Fatalf("NewFS: %v", err)
		}
		return st
	default:
		t.Fatalf("unknown driver %q", driver)
		return nil
	}
}

func TestStoreLifecycle(t *testing.T) {
	for _, driver := range []string{"memory", "fs"} {
		t.Run(driver, func(t *testing.T) {
			st := storeUnderTest(t, driver)
			ctx := context.Background()
			key := "test-1-a/1724570000000-clip.mp4"
			payload := "not really a video"

			if err := st.Put(ctx, key, strings.NewReader(payload), int64(len(payload)), "video/mp4"); err != nil {
				t.Fatalf("Put: %v", err)
			}

			rc, err := st.Open(ctx, key)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil || string(data) != payload {
				t.Fatalf("read back %q (%v), want %q", data, err, payload)
			}

			link, err := st.SignedURL(ctx, key, time.Minute)
			if err != nil {
				t.Fatalf("SignedURL: %v", err)
			}
			if !strings.Contains(link, "sig=") || !strings.Contains(link, "expires=") {
				t.Errorf("signed link missing signature params: %q", link)
			}

			if err := st.Delete(ctx, key); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := st.Open(ctx, key); !errors.Is(err, ErrNotFound) {
				t.Errorf("Open after delete = %v, want ErrNotFound", err)
			}
			// Deleting an absent key stays quiet so cascade deletes can
			// retry safely.
			if err := st.Delete(ctx, key); err != nil {
				t.Errorf("second Delete: %v", err)
			}
		})
	}
}

func TestMemoryStoreInspection(t *testing.T) {
	st := NewMemory(NewSigner("secret", "http://127.0.0.1:7497"))
	ctx := context.Background()

	if err := st.Put(ctx, "a/1", strings.NewReader("x"), 1, "video/mp4"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Put(ctx, "a/2", strings.NewReader("y"), 1, "video/mp4"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if st.Len() != 2 || !st.Has("a/1") {
		t.Errorf("Len=%d Has(a/1)=%v", st.Len(), st.Has("a/1"))
	}
	if err := st.Delete(ctx, "a/1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if st.Has("a/1") || st.Len() != 1 {
		t.Errorf("delete not reflected: Len=%d", st.Len())
	}
}
