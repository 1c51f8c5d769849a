// Package geo acquires a best-effort geographic fix through an ordered
// fallback chain: device GPS (with reverse geocoding), the backend's
// IP-geolocation endpoint, direct public IP-geolocation providers, and
// finally manual entry. Failures are classified so the interface can show
// the right remediation.
package geo
