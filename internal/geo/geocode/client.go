// Package geocode turns coordinates into a city/state pair via a
// Nominatim-style reverse-geocoding endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Place is the administrative area resolved for a coordinate pair.
type Place struct {
	City  string
	State string
}

// HTTPDoer describes the HTTP client used for lookups.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls a reverse-geocoding endpoint compatible with Nominatim's
// jsonv2 format.
type Client struct {
	endpoint string
	client   HTTPDoer
}

// New builds a reverse-geocoding client. endpoint is the full reverse
// URL without query parameters.
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// NewWithClient is the injectable variant used by tests.
func NewWithClient(endpoint string, client HTTPDoer) *Client {
	return &Client{endpoint: endpoint, client: client}
}

// nominatimResponse is the jsonv2 address subset we consume. Smaller
// places report town, village or hamlet instead of city.
type nominatimResponse struct {
	Error   string `json:"error"`
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Hamlet  string `json:"hamlet"`
		State   string `json:"state"`
		County  string `json:"county"`
	} `json:"address"`
}

// Reverse resolves city and state for a coordinate pair. A lookup that
// succeeds but names no locality returns empty fields, not an error.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	query.Set("zoom", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return Place{}, fmt.Errorf("build reverse geocode request: %w", err)
	}
	// Nominatim's usage policy requires an identifying agent.
	req.Header.Set("User-Agent", "fieldcap/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("reverse geocode: unexpected status %d", resp.StatusCode)
	}

	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Place{}, fmt.Errorf("decode reverse geocode response: %w", err)
	}
	if payload.Error != "" {
		return Place{}, fmt.Errorf("reverse geocode: %s", payload.Error)
	}

	place := Place{State: payload.Address.State}
	switch {
	case payload.Address.City != "":
		place.City = payload.Address.City
	case payload.Address.Town != "":
		place.City = payload.Address.Town
	case payload.Address.Village != "":
		place.City = payload.Address.Village
	case payload.Address.Hamlet != "":
		place.City = payload.Address.Hamlet
	}
	if place.State == "" {
		place.State = payload.Address.County
	}
	return place, nil
}
