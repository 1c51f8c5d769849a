package ipgeo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// IPAPICo queries ipapi.co.
type IPAPICo struct {
	client HTTPDoer
	url    string
}

func NewIPAPICo(client HTTPDoer) *IPAPICo {
	return &IPAPICo{client: client, url: "https://ipapi.co/json/"}
}

func (p *IPAPICo) Name() string { return "ipapi.co" }

func (p *IPAPICo) Resolve(ctx context.Context) (Place, error) {
	headers := map[string]string{"User-Agent": "fieldcap/1.0"}
	return decodeInto(ctx, p.client, p.url, headers, func(resp *http.Response) (Place, error) {
		var payload struct {
			Error  bool   `json:"error"`
			Reason string `json:"reason"`
			City   string `json:"city"`
			Region string `json:"region"`
			IP     string `json:"ip"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return Place{}, fmt.Errorf("decode response: %w", err)
		}
		if payload.Error {
			return Place{}, fmt.Errorf("service error: %s", payload.Reason)
		}
		return Place{City: payload.City, State: payload.Region, IP: payload.IP}, nil
	})
}
