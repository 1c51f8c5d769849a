package record

import (
	"strings"
	"time"
)

// Merge folds patch into existing, returning the merged record. A new
// value wins when present and non-empty; fields absent from the patch
// keep their existing value. Video references are owned by the store and
// are never modified here. Safe to apply the same patch twice.
func Merge(existing, patch *TestRecord) *TestRecord {
	if existing == nil {
		return patch.Clone()
	}
	merged := existing.Clone()
	if patch == nil {
		return merged
	}

	if strings.TrimSpace(patch.SessionID) != "" {
		merged.SessionID = patch.SessionID
	}
	if patch.User != nil {
		merged.User = mergeUser(merged.User, patch.User)
	}
	if patch.Geo != nil {
		merged.Geo = mergeGeo(merged.Geo, patch.Geo)
	}
	if patch.Metadata != nil {
		merged.Metadata = MergeMetadata(merged.Metadata, patch.Metadata)
	}
	if patch.Status != "" {
		merged.Status = patch.Status
	}
	return merged
}

func mergeUser(existing, patch *UserIdentity) *UserIdentity {
	if existing == nil {
		user := *patch
		return &user
	}
	merged := *existing
	if strings.TrimSpace(patch.DisplayName) != "" {
		merged.DisplayName = patch.DisplayName
	}
	if strings.TrimSpace(patch.Email) != "" {
		merged.Email = patch.Email
	}
	return &merged
}

// mergeGeo replaces the positional fields wholesale (a re-captured fix is
// a new position, including a legitimate 0/0 sentinel) while city/state
// only win when non-empty so a failed reverse geocode cannot erase a
// previously resolved place name.
func mergeGeo(existing, patch *GeoFix) *GeoFix {
	if existing == nil {
		geo := *patch
		geo.Normalize()
		return &geo
	}
	merged := *patch
	if strings.TrimSpace(merged.City) == "" || merged.City == UnknownPlace {
		if existing.City != "" {
			merged.City = existing.City
		}
	}
	if strings.TrimSpace(merged.State) == "" || merged.State == UnknownPlace {
		if existing.State != "" {
			merged.State = existing.State
		}
	}
	merged.Normalize()
	return &merged
}

// MergeMetadata merges field-by-field: non-empty strings win, the
// tri-state battery flag wins only when set in the patch.
func MergeMetadata(existing, patch *Metadata) *Metadata {
	if existing == nil {
		merged := *patch
		if patch.ExternalBattery != nil {
			battery := *patch.ExternalBattery
			merged.ExternalBattery = &battery
		}
		return &merged
	}
	merged := *existing
	assign := func(dst *string, src string) {
		if strings.TrimSpace(src) != "" {
			*dst = src
		}
	}
	assign(&merged.DeviceID, patch.DeviceID)
	assign(&merged.DeviceType, patch.DeviceType)
	assign(&merged.TestCycle, patch.TestCycle)
	assign(&merged.Environment, patch.Environment)
	assign(&merged.RoadType, patch.RoadType)
	assign(&merged.TrafficDensity, patch.TrafficDensity)
	assign(&merged.Lighting, patch.Lighting)
	assign(&merged.Weather, patch.Weather)
	assign(&merged.Temperature, patch.Temperature)
	assign(&merged.TestDate, patch.TestDate)
	assign(&merged.SpeedRange, patch.SpeedRange)
	assign(&merged.VehicleMake, patch.VehicleMake)
	assign(&merged.VehicleModel, patch.VehicleModel)
	assign(&merged.VehicleYear, patch.VehicleYear)
	assign(&merged.MountHeight, patch.MountHeight)
	assign(&merged.MountAngle, patch.MountAngle)
	assign(&merged.MountPosition, patch.MountPosition)
	assign(&merged.LensOrientation, patch.LensOrientation)
	assign(&merged.CameraFirmware, patch.CameraFirmware)
	assign(&merged.ModemFirmware, patch.ModemFirmware)
	assign(&merged.SoftwareVersion, patch.SoftwareVersion)
	assign(&merged.SIMCarrier, patch.SIMCarrier)
	assign(&merged.Comments, patch.Comments)
	if patch.ExternalBattery != nil {
		battery := *patch.ExternalBattery
		merged.ExternalBattery = &battery
	}
	return &merged
}

// Touch bumps UpdatedAt, setting CreatedAt on first write.
func (t *TestRecord) Touch(now time.Time) {
	now = now.UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}
