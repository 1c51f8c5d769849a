package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReverseResolvesCityAndState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("request carried no User-Agent")
		}
		if got := r.URL.Query().Get("format"); got != "jsonv2" {
			t.Errorf("format = %q, want jsonv2", got)
		}
		if got := r.URL.Query().Get("lat"); got != "37.774900" {
			t.Errorf("lat = %q", got)
		}
		w.Write([]byte(`{"address":{"city":"San Francisco","state":"California"}}`))
	}))
	defer srv.Close()

	place, err := NewWithClient(srv.URL, srv.Client()).Reverse(context.Background(), 37.7749, -122.4194)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if place.City != "San Francisco" || place.State != "California" {
		t.Errorf("place = %+v", place)
	}
}

func TestReverseLocalityFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCity string
		wantSt   string
	}{
		{"town", `{"address":{"town":"Lyons","state":"Colorado"}}`, "Lyons", "Colorado"},
		{"village", `{"address":{"village":"Ward","state":"Colorado"}}`, "Ward", "Colorado"},
		{"hamlet", `{"address":{"hamlet":"Gold Hill","state":"Colorado"}}`, "Gold Hill", "Colorado"},
		{"county for state", `{"address":{"city":"Somewhere","county":"Boulder County"}}`, "Somewhere", "Boulder County"},
		{"nothing resolved", `{"address":{}}`, "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			place, err := NewWithClient(srv.URL, srv.Client()).Reverse(context.Background(), 40, -105)
			if err != nil {
				t.Fatalf("Reverse: %v", err)
			}
			if place.City != tc.wantCity || place.State != tc.wantSt {
				t.Errorf("place = %+v, want {%s %s}", place, tc.wantCity, tc.wantSt)
			}
		})
	}
}

func TestReverseSurfacesServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	if _, err := NewWithClient(srv.URL, srv.Client()).Reverse(context.Background(), 0, 0); err == nil {
		t.Fatalf("service error not surfaced")
	}
}

func TestReverseRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := NewWithClient(srv.URL, srv.Client()).Reverse(context.Background(), 0, 0); err == nil {
		t.Fatalf("non-200 status not surfaced")
	}
}
