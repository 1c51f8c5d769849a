package ipgeo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fieldcap/internal/config"
)

// Place is the normalized result shared by every provider.
type Place struct {
	City  string `json:"city"`
	State string `json:"state"`
	IP    string `json:"ip,omitempty"`
}

// Provider resolves the caller's approximate location from its public IP.
type Provider interface {
	Name() string
	Resolve(ctx context.Context) (Place, error)
}

// HTTPDoer describes the HTTP client used by providers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FromConfig builds the configured provider chain in order. Unknown
// names were already rejected by config validation.
func FromConfig(cfg config.Geo) []Provider {
	timeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
	client := &http.Client{Timeout: timeout}
	providers := make([]Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case "ip-api":
			providers = append(providers, NewIPAPI(client))
		case "ipapi.co":
			providers = append(providers, NewIPAPICo(client))
		case "ipinfo":
			providers = append(providers, NewIPInfo(client, cfg.IPInfoToken))
		}
	}
	return providers
}

// ResolveFirst walks providers in order and returns the first successful
// result. The error aggregates every provider failure when none succeed.
func ResolveFirst(ctx context.Context, providers []Provider) (Place, error) {
	var failures []string
	for _, provider := range providers {
		place, err := provider.Resolve(ctx)
		if err == nil {
			return place, nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", provider.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(failures) == 0 {
		return Place{}, fmt.Errorf("no ip geolocation providers configured")
	}
	return Place{}, fmt.Errorf("all ip geolocation providers failed: %s", strings.Join(failures, "; "))
}

var titleCaser = cases.Title(language.English)

// normalizePlace trims and title-cases provider output; services disagree
// on casing for city and region names.
func normalizePlace(place Place) Place {
	place.City = normalizeName(place.City)
	place.State = normalizeName(place.State)
	place.IP = strings.TrimSpace(place.IP)
	return place
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if name == strings.ToLower(name) || name == strings.ToUpper(name) {
		return titleCaser.String(strings.ToLower(name))
	}
	return name
}

func decodeInto(ctx context.Context, client HTTPDoer, url string, headers map[string]string, decode func(*http.Response) (Place, error)) (Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Place{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Place{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	place, err := decode(resp)
	if err != nil {
		return Place{}, err
	}
	place = normalizePlace(place)
	if place.City == "" && place.State == "" {
		return Place{}, fmt.Errorf("response carried no location")
	}
	return place, nil
}
