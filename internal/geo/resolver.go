package geo

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"fieldcap/internal/config"
	"fieldcap/internal/geo/geocode"
	"fieldcap/internal/geo/gpsd"
	"fieldcap/internal/geo/ipgeo"
	"fieldcap/internal/logging"
	"fieldcap/internal/record"
)

// PositionSource yields a live coordinate fix, normally from gpsd.
type PositionSource interface {
	Acquire(ctx context.Context) (gpsd.Fix, error)
}

// ReverseGeocoder names the locality for a coordinate pair.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (geocode.Place, error)
}

// BackendLocator asks the collection daemon to geolocate the caller's IP.
// It sits between the GPS step and the direct public providers so a
// reachable daemon keeps lookups off third-party services.
type BackendLocator interface {
	LocateIP(ctx context.Context) (ipgeo.Place, error)
}

// Result is a resolved fix plus the classified failure of any earlier
// chain step, kept so the interface can explain the downgrade.
type Result struct {
	Fix record.GeoFix
	// GPSErr is the classified GPS failure when the fix came from a
	// fallback, nil when GPS succeeded or location is fully manual.
	GPSErr error
}

// Resolver walks the acquisition chain: GPS with reverse geocoding,
// backend IP lookup, direct IP providers, then a zeroed fix for manual
// entry. Every step is optional; a nil member is skipped.
type Resolver struct {
	position  PositionSource
	geocoder  ReverseGeocoder
	backend   BackendLocator
	providers []ipgeo.Provider
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Resolver.
type Option func(*Resolver)

func WithPositionSource(source PositionSource) Option {
	return func(r *Resolver) { r.position = source }
}

func WithGeocoder(geocoder ReverseGeocoder) Option {
	return func(r *Resolver) { r.geocoder = geocoder }
}

func WithBackend(locator BackendLocator) Option {
	return func(r *Resolver) { r.backend = locator }
}

func WithProviders(providers []ipgeo.Provider) Option {
	return func(r *Resolver) { r.providers = providers }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver builds the chain from configuration. backend may be nil
// when no daemon is configured.
func NewResolver(cfg config.Geo, backend BackendLocator, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		position: gpsd.New(cfg.GPSDAddress, time.Duration(cfg.GPSTimeoutSeconds)*time.Second),
		geocoder: geocode.New(cfg.GeocodeURL, time.Duration(cfg.GeocodeTimeoutSeconds)*time.Second),
		backend:  backend,
		logger:   logging.NewComponentLogger(logger, "geo"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if !cfg.DisableDirectProviders {
		r.providers = ipgeo.FromConfig(cfg)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire resolves the best available fix. It never returns an error:
// when every automated step fails the result is a zeroed manual fix and
// the classified GPS failure, and the caller collects city and state
// from the user.
func (r *Resolver) Acquire(ctx context.Context) Result {
	fix, gpsErr := r.acquireGPS(ctx)
	if gpsErr == nil {
		return Result{Fix: fix}
	}

	if place, ok := r.acquireIP(ctx); ok {
		fix = record.GeoFix{
			City:        place.City,
			State:       place.State,
			Timestamp:   r.now(),
			Source:      record.SourceIP,
			Approximate: true,
		}
		fix.Normalize()
		return Result{Fix: fix, GPSErr: gpsErr}
	}

	fix = record.GeoFix{Timestamp: r.now(), Source: record.SourceManual}
	fix.Normalize()
	return Result{Fix: fix, GPSErr: gpsErr}
}

func (r *Resolver) acquireGPS(ctx context.Context) (record.GeoFix, error) {
	if r.position == nil {
		return record.GeoFix{}, ErrPositionUnavailable
	}
	raw, err := r.position.Acquire(ctx)
	if err != nil {
		classified := Classify(err)
		r.logger.Warn("gps acquisition failed", logging.Error(err))
		return record.GeoFix{}, classified
	}

	fix := record.GeoFix{
		Latitude:  raw.Latitude,
		Longitude: raw.Longitude,
		Accuracy:  raw.Accuracy,
		Timestamp: raw.Time,
		Source:    record.SourceGPS,
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = r.now()
	}

	if r.geocoder != nil {
		place, err := r.geocoder.Reverse(ctx, raw.Latitude, raw.Longitude)
		if err != nil {
			r.logger.Warn("reverse geocode failed", logging.Error(err))
		} else {
			fix.City = place.City
			fix.State = place.State
		}
	}
	fix.Normalize()
	return fix, nil
}

func (r *Resolver) acquireIP(ctx context.Context) (ipgeo.Place, bool) {
	if r.backend != nil {
		place, err := r.backend.LocateIP(ctx)
		if err == nil && (place.City != "" || place.State != "") {
			return place, true
		}
		if err != nil {
			r.logger.Warn("backend ip lookup failed", logging.Error(err))
		}
	}
	if len(r.providers) > 0 {
		place, err := ipgeo.ResolveFirst(ctx, r.providers)
		if err == nil {
			return place, true
		}
		r.logger.Warn("direct ip lookup failed", logging.Error(err))
	}
	return ipgeo.Place{}, false
}

// Classify maps a raw acquisition failure onto the user-facing location
// errors.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gpsd.ErrDenied):
		return ErrPermissionDenied
	case errors.Is(err, gpsd.ErrTimedOut), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, gpsd.ErrUnavailable), errors.Is(err, gpsd.ErrNoFix):
		return ErrPositionUnavailable
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrPositionUnavailable), errors.Is(err, ErrTimeout):
		return err
	default:
		return ErrPositionUnavailable
	}
}

// ApplyManual overlays user-entered city and state on a fix without
// disturbing coordinates from an earlier automated step. Blank entries
// leave the existing values alone.
func ApplyManual(fix record.GeoFix, city, state string, now time.Time) record.GeoFix {
	city = strings.TrimSpace(city)
	state = strings.TrimSpace(state)
	changed := false
	if city != "" && city != fix.City {
		fix.City = city
		changed = true
	}
	if state != "" && state != fix.State {
		fix.State = state
		changed = true
	}
	if changed {
		fix.Source = record.SourceManual
		fix.Timestamp = now
	}
	fix.Normalize()
	return fix
}
