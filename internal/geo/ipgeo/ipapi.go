package ipgeo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// IPAPI queries ip-api.com. No token needed; the free tier is rate
// limited but fine for one lookup per capture.
type IPAPI struct {
	client HTTPDoer
	url    string
}

func NewIPAPI(client HTTPDoer) *IPAPI {
	return &IPAPI{client: client, url: "http://ip-api.com/json/?fields=status,message,city,regionName,query"}
}

func (p *IPAPI) Name() string { return "ip-api" }

func (p *IPAPI) Resolve(ctx context.Context) (Place, error) {
	return decodeInto(ctx, p.client, p.url, nil, func(resp *http.Response) (Place, error) {
		var payload struct {
			Status  string `json:"status"`
			Message string `json:"message"`
			City    string `json:"city"`
			Region  string `json:"regionName"`
			Query   string `json:"query"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return Place{}, fmt.Errorf("decode response: %w", err)
		}
		if payload.Status != "success" {
			return Place{}, fmt.Errorf("service error: %s", payload.Message)
		}
		return Place{City: payload.City, State: payload.Region, IP: payload.Query}, nil
	})
}
