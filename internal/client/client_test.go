package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"fieldcap/internal/config"
	"fieldcap/internal/record"
	"fieldcap/internal/testsupport"
)

func testClient(srv *httptest.Server) *Client {
	return New(config.Backend{BaseURL: srv.URL + "/", Token: "tok-123"})
}

func TestDoJSONSendsAuthAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/tests/test-1000-abc" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(record.TestRecord{TestID: "test-1000-abc"})
	}))
	defer srv.Close()

	rec, err := testClient(srv).GetTest(context.Background(), "test-1000-abc")
	if err != nil {
		t.Fatalf("GetTest: %v", err)
	}
	if rec.TestID != "test-1000-abc" {
		t.Errorf("rec = %+v", rec)
	}
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "test not found"})
	}))
	defer srv.Close()

	err := testClient(srv).UpdateTest(context.Background(), "test-gone", record.TestRecord{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestNonSuccessCarriesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "database locked"})
	}))
	defer srv.Close()

	_, err := testClient(srv).ListTests(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "database locked" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestCreateOrUpdateTestReturnsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec record.TestRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "testId": rec.TestID})
	}))
	defer srv.Close()

	id, err := testClient(srv).CreateOrUpdateTest(context.Background(), record.TestRecord{TestID: "test-1000-abc"})
	if err != nil {
		t.Fatalf("CreateOrUpdateTest: %v", err)
	}
	if id != "test-1000-abc" {
		t.Errorf("id = %q", id)
	}
}

func TestUploadVideoStreamsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("testId"); got != "test-1000-abc" {
			t.Errorf("testId = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			file.Close()
			if header.Size == 0 {
				t.Errorf("empty file part")
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"fileName":  "test-1000-abc/1-run.mp4",
			"signedUrl": "http://example.com/blobs/test-1000-abc/1-run.mp4?sig=x",
		})
	}))
	defer srv.Close()

	clip := filepath.Join(t.TempDir(), "run.mp4")
	testsupport.WriteFile(t, clip, 2048)

	result, err := testClient(srv).UploadVideo(context.Background(), "test-1000-abc", clip, "video/mp4")
	if err != nil {
		t.Fatalf("UploadVideo: %v", err)
	}
	if result.FileName != "test-1000-abc/1-run.mp4" || result.SignedURL == "" {
		t.Errorf("result = %+v", result)
	}
}

func TestUnconfiguredBaseURL(t *testing.T) {
	c := New(config.Backend{})
	if err := c.Health(context.Background()); err == nil {
		t.Fatalf("empty base url accepted")
	}
}

func TestLocateIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true, "city": "Denver", "state": "Colorado", "ip": "203.0.113.9",
		})
	}))
	defer srv.Close()

	place, err := testClient(srv).LocateIP(context.Background())
	if err != nil {
		t.Fatalf("LocateIP: %v", err)
	}
	if place.City != "Denver" || place.State != "Colorado" {
		t.Errorf("place = %+v", place)
	}
}
