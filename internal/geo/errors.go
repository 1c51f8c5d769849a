package geo

import "errors"

// Failure classification for the GPS step. Timeout is soft: the chain
// continues with the IP fallbacks; the other two are surfaced so the user
// can fix the underlying condition.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("location timeout")
)

// Remediation returns the user-facing next step for a classified failure.
func Remediation(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Grant location access to this user (check gpsd socket permissions) and refresh."
	case errors.Is(err, ErrPositionUnavailable):
		return "No GPS signal or gpsd is not running. Approximate IP-based location was used instead."
	case errors.Is(err, ErrTimeout):
		return "GPS fix timed out. Approximate IP-based location was used instead."
	default:
		return "Location could not be resolved automatically. Enter it manually below."
	}
}
