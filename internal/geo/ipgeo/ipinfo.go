package ipgeo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// IPInfo queries ipinfo.io. A token is optional; without one the free
// anonymous quota applies.
type IPInfo struct {
	client HTTPDoer
	url    string
	token  string
}

func NewIPInfo(client HTTPDoer, token string) *IPInfo {
	return &IPInfo{client: client, url: "https://ipinfo.io/json", token: token}
}

func (p *IPInfo) Name() string { return "ipinfo" }

func (p *IPInfo) Resolve(ctx context.Context) (Place, error) {
	var headers map[string]string
	if p.token != "" {
		headers = map[string]string{"Authorization": "Bearer " + p.token}
	}
	return decodeInto(ctx, p.client, p.url, headers, func(resp *http.Response) (Place, error) {
		var payload struct {
			City   string `json:"city"`
			Region string `json:"region"`
			IP     string `json:"ip"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return Place{}, fmt.Errorf("decode response: %w", err)
		}
		return Place{City: payload.City, State: payload.Region, IP: payload.IP}, nil
	})
}
