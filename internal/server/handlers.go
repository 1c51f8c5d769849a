package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldcap/internal/blob"
	"fieldcap/internal/geo/ipgeo"
	"fieldcap/internal/ingest"
	"fieldcap/internal/logging"
	"fieldcap/internal/record"
	"fieldcap/internal/store"
)

// uploadMemoryLimit is the in-memory threshold for multipart parsing;
// larger files spill to temp disk.
const uploadMemoryLimit = 64 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLocationIP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	place, err := ipgeo.ResolveFirst(r.Context(), s.providers)
	if err != nil {
		s.logger.Warn("ip geolocation failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "ip geolocation unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"city":    place.City,
		"state":   place.State,
		"ip":      place.IP,
	})
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var session record.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed session payload")
		return
	}
	if session.ID == "" || session.User.Email == "" || session.User.DisplayName == "" {
		s.writeError(w, http.StatusBadRequest, "sessionId and userIdentity are required")
		return
	}
	if err := s.store.CreateSession(r.Context(), &session); err != nil {
		s.logger.Error("create session failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/session/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	session, err := s.store.GetSession(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.logger.Error("get session failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleTests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tests, err := s.store.ListTests(r.Context())
		if err != nil {
			s.logger.Error("list tests failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to list tests")
			return
		}
		if tests == nil {
			tests = []*record.TestRecord{}
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"tests": tests})
	case http.MethodPost:
		var patch record.TestRecord
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			s.writeError(w, http.StatusBadRequest, "malformed test payload")
			return
		}
		if strings.TrimSpace(patch.TestID) == "" {
			s.writeError(w, http.StatusBadRequest, "testId is required")
			return
		}
		saved, err := s.store.CreateOrUpdateTest(r.Context(), &patch)
		if err != nil {
			s.logger.Error("upsert test failed", logging.Error(err), logging.String("test_id", patch.TestID))
			s.writeError(w, http.StatusInternalServerError, "failed to persist test")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "testId": saved.TestID})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleTestItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/tests/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "test not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		test, err := s.store.GetTest(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "test not found")
			return
		}
		if err != nil {
			s.logger.Error("get test failed", logging.Error(err), logging.String("test_id", id))
			s.writeError(w, http.StatusInternalServerError, "failed to load test")
			return
		}
		s.writeJSON(w, http.StatusOK, test)
	case http.MethodPut:
		var patch record.TestRecord
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			s.writeError(w, http.StatusBadRequest, "malformed test payload")
			return
		}
		saved, err := s.store.UpdateTestMetadata(r.Context(), id, &patch)
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "test not found")
			return
		}
		if err != nil {
			s.logger.Error("update test failed", logging.Error(err), logging.String("test_id", id))
			s.writeError(w, http.StatusInternalServerError, "failed to update test")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "testId": saved.TestID})
	case http.MethodDelete:
		s.deleteTest(w, r, id)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// deleteTest removes the referenced blobs first, then the record row.
// Blob deletion is best effort; removing the row is the authoritative
// final step so a partial blob failure can leak storage but never leave
// an orphaned record.
func (s *Server) deleteTest(w http.ResponseWriter, r *http.Request, id string) {
	keys, err := s.store.BlobKeys(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "test not found")
		return
	}
	if err != nil {
		s.logger.Error("collect blob keys failed", logging.Error(err), logging.String("test_id", id))
		s.writeError(w, http.StatusInternalServerError, "failed to delete test")
		return
	}

	for _, key := range keys {
		if err := s.blobs.Delete(r.Context(), key); err != nil {
			s.logger.Warn("blob delete failed",
				logging.Error(err),
				logging.String("test_id", id),
				logging.String("key", key))
		}
	}

	if err := s.store.DeleteTest(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "test not found")
			return
		}
		s.logger.Error("delete test failed", logging.Error(err), logging.String("test_id", id))
		s.writeError(w, http.StatusInternalServerError, "failed to delete test")
		return
	}
	s.metrics.testsDeleted.Inc()
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed multipart payload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	testID := strings.TrimSpace(r.FormValue("testId"))
	if testID == "" {
		s.writeError(w, http.StatusBadRequest, "testId is required")
		return
	}
	if _, err := s.store.GetTest(r.Context(), testID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "test not found")
			return
		}
		s.logger.Error("get test failed", logging.Error(err), logging.String("test_id", testID))
		s.writeError(w, http.StatusInternalServerError, "failed to load test")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "video/") {
		contentType = ingest.DetectType(header.Filename)
	}
	if !strings.HasPrefix(contentType, "video/") {
		s.writeError(w, http.StatusBadRequest, "only video files are accepted")
		return
	}

	uploadedAt := time.Now().UTC()
	key := blob.MakeKey(testID, uploadedAt, header.Filename)
	if err := s.blobs.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		s.logger.Error("store blob failed", logging.Error(err), logging.String("key", key))
		s.writeError(w, http.StatusInternalServerError, "failed to store video")
		return
	}

	signedURL, err := s.blobs.SignedURL(r.Context(), key, s.signedTTL)
	if err != nil {
		s.logger.Error("sign blob url failed", logging.Error(err), logging.String("key", key))
		s.writeError(w, http.StatusInternalServerError, "failed to sign video url")
		return
	}

	ref := record.VideoReference{
		FileName:   key,
		URL:        signedURL,
		Size:       header.Size,
		Type:       contentType,
		UploadedAt: uploadedAt,
	}
	if _, err := s.store.AppendVideo(r.Context(), testID, ref); err != nil {
		s.logger.Error("append video failed", logging.Error(err), logging.String("test_id", testID))
		s.writeError(w, http.StatusInternalServerError, "failed to record video")
		return
	}

	s.metrics.uploads.Inc()
	s.metrics.uploadBytes.Add(float64(header.Size))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"fileName":  key,
		"signedUrl": signedURL,
	})
}

// handleBlobDownload serves signed links minted by the fs and memory
// drivers. S3 deployments presign directly and never hit this route.
func (s *Server) handleBlobDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/blobs/")
	if key == "" {
		s.writeError(w, http.StatusNotFound, "blob not found")
		return
	}
	if s.signer == nil {
		s.writeError(w, http.StatusNotFound, "blob downloads not served by this driver")
		return
	}
	if err := s.signer.Verify(key, r.URL.Query()); err != nil {
		s.writeError(w, http.StatusForbidden, err.Error())
		return
	}

	reader, err := s.blobs.Open(r.Context(), key)
	if errors.Is(err, blob.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "blob not found")
		return
	}
	if err != nil {
		s.logger.Error("open blob failed", logging.Error(err), logging.String("key", key))
		s.writeError(w, http.StatusInternalServerError, "failed to open blob")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", ingest.DetectType(key))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Warn("blob stream interrupted", logging.Error(err), logging.String("key", key))
	}
}
