package ipgeo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type cannedDoer struct {
	status  int
	body    string
	err     error
	lastReq *http.Request
}

func (d *cannedDoer) Do(req *http.Request) (*http.Response, error) {
	d.lastReq = req
	if d.err != nil {
		return nil, d.err
	}
	return &http.Response{
		StatusCode: d.status,
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Header:     make(http.Header),
	}, nil
}

func TestIPAPIResolve(t *testing.T) {
	doer := &cannedDoer{
		status: http.StatusOK,
		body:   `{"status":"success","city":"denver","regionName":"COLORADO","query":"203.0.113.9"}`,
	}
	place, err := NewIPAPI(doer).Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if place.City != "Denver" || place.State != "Colorado" || place.IP != "203.0.113.9" {
		t.Errorf("place = %+v, want normalized casing", place)
	}
}

func TestIPAPIServiceError(t *testing.T) {
	doer := &cannedDoer{
		status: http.StatusOK,
		body:   `{"status":"fail","message":"reserved range"}`,
	}
	_, err := NewIPAPI(doer).Resolve(context.Background())
	if err == nil || !strings.Contains(err.Error(), "reserved range") {
		t.Fatalf("err = %v, want the service message surfaced", err)
	}
}

func TestIPAPICoResolve(t *testing.T) {
	doer := &cannedDoer{
		status: http.StatusOK,
		body:   `{"city":"Boulder","region":"Colorado","ip":"203.0.113.9"}`,
	}
	place, err := NewIPAPICo(doer).Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if place.City != "Boulder" || place.State != "Colorado" {
		t.Errorf("place = %+v", place)
	}
	if ua := doer.lastReq.Header.Get("User-Agent"); !strings.Contains(ua, "fieldcap") {
		t.Errorf("User-Agent = %q, want an identifying agent", ua)
	}
}

func TestIPInfoSendsToken(t *testing.T) {
	doer := &cannedDoer{
		status: http.StatusOK,
		body:   `{"city":"Golden","region":"Colorado","ip":"203.0.113.9"}`,
	}
	place, err := NewIPInfo(doer, "tok-123").Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if place.City != "Golden" {
		t.Errorf("place = %+v", place)
	}
	if auth := doer.lastReq.Header.Get("Authorization"); auth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestDecodeRejectsEmptyLocation(t *testing.T) {
	doer := &cannedDoer{status: http.StatusOK, body: `{"status":"success","city":"","regionName":""}`}
	_, err := NewIPAPI(doer).Resolve(context.Background())
	if err == nil {
		t.Fatalf("empty location accepted")
	}
}

func TestResolveFirstAggregatesFailures(t *testing.T) {
	down := &cannedDoer{err: errors.New("connection refused")}
	ok := &cannedDoer{
		status: http.StatusOK,
		body:   `{"city":"Boulder","region":"Colorado","ip":"203.0.113.9"}`,
	}

	place, err := ResolveFirst(context.Background(), []Provider{NewIPAPI(down), NewIPAPICo(ok)})
	if err != nil {
		t.Fatalf("ResolveFirst: %v", err)
	}
	if place.City != "Boulder" {
		t.Errorf("place = %+v", place)
	}

	_, err = ResolveFirst(context.Background(), []Provider{NewIPAPI(down), NewIPAPICo(down)})
	if err == nil || !strings.Contains(err.Error(), "ip-api") || !strings.Contains(err.Error(), "ipapi.co") {
		t.Errorf("aggregate error should name every provider: %v", err)
	}

	_, err = ResolveFirst(context.Background(), nil)
	if err == nil {
		t.Errorf("empty chain should error")
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"denver", "Denver"},
		{"DENVER", "Denver"},
		{"Fort Collins", "Fort Collins"},
		{"  boulder  ", "Boulder"},
		{"McAllen", "McAllen"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := normalizeName(tc.in); got != tc.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
