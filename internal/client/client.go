// Package client talks to the fieldcap collection daemon's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"fieldcap/internal/config"
	"fieldcap/internal/geo/ipgeo"
	"fieldcap/internal/record"
)

// ErrNotFound reports a 404 from the daemon. The wizard relies on it to
// fall back from update to create when editing a test that was deleted
// underneath it.
var ErrNotFound = errors.New("not found")

// APIError carries a non-success HTTP response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error (status %d)", e.StatusCode)
}

// Client is a thin typed wrapper over the daemon endpoints.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New builds a client from backend configuration.
func New(cfg config.Backend) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured daemon address.
func (c *Client) BaseURL() string { return c.baseURL }

// Health checks daemon liveness.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", resp.Status)
	}
	return nil
}

// LocateIP asks the daemon to geolocate the caller's public IP.
func (c *Client) LocateIP(ctx context.Context) (ipgeo.Place, error) {
	var resp struct {
		Success bool   `json:"success"`
		City    string `json:"city"`
		State   string `json:"state"`
		IP      string `json:"ip"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/location/ip", nil, &resp); err != nil {
		return ipgeo.Place{}, err
	}
	if !resp.Success {
		return ipgeo.Place{}, errors.New("ip geolocation failed")
	}
	return ipgeo.Place{City: resp.City, State: resp.State, IP: resp.IP}, nil
}

// CreateSession registers a session with the daemon. Re-posting an
// existing session is a no-op server side.
func (c *Client) CreateSession(ctx context.Context, session record.Session) error {
	return c.doJSON(ctx, http.MethodPost, "/session", session, nil)
}

// GetSession fetches a session by id.
func (c *Client) GetSession(ctx context.Context, id string) (record.Session, error) {
	var session record.Session
	if err := c.doJSON(ctx, http.MethodGet, "/session/"+id, nil, &session); err != nil {
		return record.Session{}, err
	}
	return session, nil
}

// CreateOrUpdateTest posts a test record. The daemon merges into any
// existing record with the same id.
func (c *Client) CreateOrUpdateTest(ctx context.Context, rec record.TestRecord) (string, error) {
	var resp struct {
		Success bool   `json:"success"`
		TestID  string `json:"testId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/tests", rec, &resp); err != nil {
		return "", err
	}
	return resp.TestID, nil
}

// UpdateTest merge-updates an existing test. Returns ErrNotFound when
// the daemon no longer has the record.
func (c *Client) UpdateTest(ctx context.Context, id string, patch record.TestRecord) error {
	return c.doJSON(ctx, http.MethodPut, "/tests/"+id, patch, nil)
}

// GetTest fetches one test with its ordered video list.
func (c *Client) GetTest(ctx context.Context, id string) (record.TestRecord, error) {
	var rec record.TestRecord
	if err := c.doJSON(ctx, http.MethodGet, "/tests/"+id, nil, &rec); err != nil {
		return record.TestRecord{}, err
	}
	return rec, nil
}

// ListTests fetches every test, newest first.
func (c *Client) ListTests(ctx context.Context) ([]record.TestRecord, error) {
	var resp struct {
		Tests []record.TestRecord `json:"tests"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/tests", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tests, nil
}

// DeleteTest removes a test and its stored videos.
func (c *Client) DeleteTest(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/tests/"+id, nil, nil)
}

// UploadResult reports a stored video.
type UploadResult struct {
	FileName  string `json:"fileName"`
	SignedURL string `json:"signedUrl"`
}

// UploadVideo streams a local file to the daemon as multipart form data.
func (c *Client) UploadVideo(ctx context.Context, testID, path, contentType string) (UploadResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		defer pw.Close()
		if err := writer.WriteField("testId", testID); err != nil {
			pw.CloseWithError(err)
			return
		}
		part, err := writer.CreateFormFile("file", file.Name())
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-video", pr)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload video: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return UploadResult{}, err
	}

	var result struct {
		Success   bool   `json:"success"`
		FileName  string `json:"fileName"`
		SignedURL string `json:"signedUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	return UploadResult{FileName: result.FileName, SignedURL: result.SignedURL}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return errors.New("backend url not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	message := readErrorMessage(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		if message != "" {
			return fmt.Errorf("%s: %w", message, ErrNotFound)
		}
		return ErrNotFound
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
