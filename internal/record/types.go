package record

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status tracks whether a test still awaits its video upload.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// GeoSource records which stage of the acquisition chain produced a fix.
type GeoSource string

const (
	SourceGPS    GeoSource = "gps"
	SourceIP     GeoSource = "ip"
	SourceManual GeoSource = "manual"
)

// UnknownPlace is the sentinel used for city/state when resolution fails.
// Persisted records never carry an empty city or state.
const UnknownPlace = "Unknown"

// UserIdentity is one entry from the configured tester allow-list.
// Identities are chosen, never created, and are immutable once attached
// to a session.
type UserIdentity struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Session binds a client-generated id to the identity chosen on first run.
type Session struct {
	ID        string       `json:"sessionId"`
	User      UserIdentity `json:"userIdentity"`
	CreatedAt time.Time    `json:"createdAt"`
}

// GeoFix is a best-effort geographic position. Latitude and longitude are
// always present; 0/0 is the unresolved sentinel. Approximate is set for
// IP-derived fixes.
type GeoFix struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Accuracy    float64   `json:"accuracy,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Source      GeoSource `json:"source"`
	Approximate bool      `json:"approximate,omitempty"`
}

// Normalize fills the Unknown sentinels so a fix is safe to persist.
func (g *GeoFix) Normalize() {
	if strings.TrimSpace(g.City) == "" {
		g.City = UnknownPlace
	}
	if strings.TrimSpace(g.State) == "" {
		g.State = UnknownPlace
	}
	if g.Timestamp.IsZero() {
		g.Timestamp = time.Now().UTC()
	}
}

// Metadata is the flat descriptive field set captured for a test. All
// fields are free-form strings except ExternalBattery, which is tri-state
// so partial updates can leave it untouched.
type Metadata struct {
	DeviceID        string `json:"deviceId"`
	DeviceType      string `json:"deviceType"`
	TestCycle       string `json:"testCycle"`
	Environment     string `json:"environment"`
	RoadType        string `json:"roadType"`
	TrafficDensity  string `json:"trafficDensity,omitempty"`
	Lighting        string `json:"lighting,omitempty"`
	Weather         string `json:"weather,omitempty"`
	Temperature     string `json:"temperature,omitempty"`
	TestDate        string `json:"testDate,omitempty"`
	SpeedRange      string `json:"speedRange,omitempty"`
	VehicleMake     string `json:"vehicleMake,omitempty"`
	VehicleModel    string `json:"vehicleModel,omitempty"`
	VehicleYear     string `json:"vehicleYear,omitempty"`
	MountHeight     string `json:"mountHeight,omitempty"`
	MountAngle      string `json:"mountAngle,omitempty"`
	MountPosition   string `json:"mountPosition,omitempty"`
	LensOrientation string `json:"lensOrientation,omitempty"`
	CameraFirmware  string `json:"cameraFirmware,omitempty"`
	ModemFirmware   string `json:"modemFirmware,omitempty"`
	SoftwareVersion string `json:"softwareVersion,omitempty"`
	SIMCarrier      string `json:"simCarrier,omitempty"`
	Comments        string `json:"comments,omitempty"`
	ExternalBattery *bool  `json:"externalBattery,omitempty"`
}

// NewMetadata returns an empty metadata set stamped with today's date.
func NewMetadata(now time.Time) *Metadata {
	return &Metadata{TestDate: now.UTC().Format("2006-01-02")}
}

// ErrValidation tags missing-required-field failures so callers can keep
// the user on the form instead of surfacing a generic error.
var ErrValidation = errors.New("validation error")

// requiredFields maps the submit-time required subset to human labels.
var requiredFields = []struct {
	label string
	value func(*Metadata) string
}{
	{"device id", func(m *Metadata) string { return m.DeviceID }},
	{"device type", func(m *Metadata) string { return m.DeviceType }},
	{"test cycle", func(m *Metadata) string { return m.TestCycle }},
	{"environment", func(m *Metadata) string { return m.Environment }},
	{"road type", func(m *Metadata) string { return m.RoadType }},
}

// Validate enforces the required subset. It runs at submission time only;
// in-progress drafts may be arbitrarily incomplete.
func (m *Metadata) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: metadata missing", ErrValidation)
	}
	var missing []string
	for _, field := range requiredFields {
		if strings.TrimSpace(field.value(m)) == "" {
			missing = append(missing, field.label)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// VideoReference points at one stored blob. FileName doubles as the blob
// storage key; URL is a time-limited signed link.
type VideoReference struct {
	FileName   string    `json:"fileName"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// TestRecord is one field data-collection session. Records are keyed by
// the client-generated TestID and written with upsert semantics.
type TestRecord struct {
	TestID    string        `json:"testId"`
	SessionID string        `json:"sessionId,omitempty"`
	User      *UserIdentity `json:"userIdentity,omitempty"`
	Geo       *GeoFix       `json:"location,omitempty"`
	Metadata  *Metadata     `json:"metadata,omitempty"`

	// Videos is append-only and ordered by upload time ascending. The
	// legacy single-video shape is folded into this list on read.
	Videos []VideoReference `json:"videoReferences"`

	// LatestVideoName/LatestVideoURL mirror the most recent upload for
	// quick display without joining the video list.
	LatestVideoName string `json:"latestVideoName,omitempty"`
	LatestVideoURL  string `json:"latestVideoUrl,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so drafts and store results never alias.
func (t *TestRecord) Clone() *TestRecord {
	if t == nil {
		return nil
	}
	cp := *t
	if t.User != nil {
		user := *t.User
		cp.User = &user
	}
	if t.Geo != nil {
		geo := *t.Geo
		cp.Geo = &geo
	}
	if t.Metadata != nil {
		meta := *t.Metadata
		if t.Metadata.ExternalBattery != nil {
			battery := *t.Metadata.ExternalBattery
			meta.ExternalBattery = &battery
		}
		cp.Metadata = &meta
	}
	if len(t.Videos) > 0 {
		cp.Videos = make([]VideoReference, len(t.Videos))
		copy(cp.Videos, t.Videos)
	}
	return &cp
}
