package record

import (
	"testing"
	"time"
)

func baseRecord() *TestRecord {
	battery := true
	return &TestRecord{
		TestID:    "test-1000-abc",
		SessionID: "session-1",
		User:      &UserIdentity{DisplayName: "Ada", Email: "ada@example.com"},
		Geo: &GeoFix{
			Latitude:  37.7749,
			Longitude: -122.4194,
			City:      "San Francisco",
			State:     "California",
			Source:    SourceGPS,
			Timestamp: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		},
		Metadata: &Metadata{
			DeviceID:        "D1",
			DeviceType:      "EVT",
			TestCycle:       "RC1",
			Environment:     "urban",
			RoadType:        "freeway",
			CameraFirmware:  "v1",
			ExternalBattery: &battery,
		},
		Videos: []VideoReference{{FileName: "test-1000-abc/1-clip.mp4"}},
		Status: StatusPending,
	}
}

func TestMergeKeepsFieldsAbsentFromPatch(t *testing.T) {
	existing := baseRecord()
	merged := Merge(existing, &TestRecord{
		TestID:   "test-1000-abc",
		Metadata: &Metadata{CameraFirmware: "v2"},
	})

	if merged.Metadata.CameraFirmware != "v2" {
		t.Fatalf("CameraFirmware = %q, want v2", merged.Metadata.CameraFirmware)
	}
	if merged.Metadata.DeviceID != "D1" {
		t.Errorf("DeviceID = %q, want D1 preserved", merged.Metadata.DeviceID)
	}
	if merged.Geo == nil || merged.Geo.City != "San Francisco" {
		t.Errorf("geo city lost on metadata-only patch: %+v", merged.Geo)
	}
	if len(merged.Videos) != 1 {
		t.Errorf("videos changed by merge: %d", len(merged.Videos))
	}
	if merged.User == nil || merged.User.Email != "ada@example.com" {
		t.Errorf("user lost on metadata-only patch: %+v", merged.User)
	}
}

func TestMergeEmptyPatchValuesLose(t *testing.T) {
	existing := baseRecord()
	merged := Merge(existing, &TestRecord{
		TestID:   "test-1000-abc",
		Metadata: &Metadata{DeviceID: "", Weather: "rain"},
	})

	if merged.Metadata.DeviceID != "D1" {
		t.Errorf("empty patch value replaced DeviceID: %q", merged.Metadata.DeviceID)
	}
	if merged.Metadata.Weather != "rain" {
		t.Errorf("Weather = %q, want rain", merged.Metadata.Weather)
	}
}

func TestMergeBatteryTriState(t *testing.T) {
	existing := baseRecord()

	merged := Merge(existing, &TestRecord{TestID: existing.TestID, Metadata: &Metadata{}})
	if merged.Metadata.ExternalBattery == nil || !*merged.Metadata.ExternalBattery {
		t.Fatalf("nil battery patch should keep existing true value")
	}

	off := false
	merged = Merge(merged, &TestRecord{TestID: existing.TestID, Metadata: &Metadata{ExternalBattery: &off}})
	if merged.Metadata.ExternalBattery == nil || *merged.Metadata.ExternalBattery {
		t.Fatalf("explicit false battery patch should win")
	}
}

func TestMergeGeoReplacesPosition(t *testing.T) {
	existing := baseRecord()
	merged := Merge(existing, &TestRecord{
		TestID: existing.TestID,
		Geo:    &GeoFix{Latitude: 40.0, Longitude: -105.0, Source: SourceManual},
	})

	if merged.Geo.Latitude != 40.0 || merged.Geo.Longitude != -105.0 {
		t.Errorf("re-captured position not applied: %+v", merged.Geo)
	}
	if merged.Geo.City != "San Francisco" {
		t.Errorf("city should survive a patch without one: %q", merged.Geo.City)
	}
	if merged.Geo.Source != SourceManual {
		t.Errorf("source = %q, want manual", merged.Geo.Source)
	}
}

func TestMergeUnknownCityDoesNotOverwrite(t *testing.T) {
	existing := baseRecord()
	merged := Merge(existing, &TestRecord{
		TestID: existing.TestID,
		Geo:    &GeoFix{City: UnknownPlace, State: UnknownPlace},
	})
	if merged.Geo.City != "San Francisco" || merged.Geo.State != "California" {
		t.Errorf("Unknown sentinel overwrote a resolved place: %s, %s", merged.Geo.City, merged.Geo.State)
	}
}

func TestMergeIdempotent(t *testing.T) {
	patch := baseRecord()
	once := Merge(nil, patch)
	twice := Merge(once, patch)

	if once.Metadata.DeviceID != twice.Metadata.DeviceID ||
		once.Metadata.CameraFirmware != twice.Metadata.CameraFirmware ||
		*once.Metadata.ExternalBattery != *twice.Metadata.ExternalBattery {
		t.Errorf("metadata differs after identical re-merge")
	}
	if *once.Geo != *twice.Geo {
		t.Errorf("geo differs after identical re-merge")
	}
	if len(once.Videos) != len(twice.Videos) {
		t.Errorf("videos differ after identical re-merge")
	}
}

func TestTouchBumpsUpdatedAt(t *testing.T) {
	rec := baseRecord()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	rec.Touch(now)
	if !rec.UpdatedAt.Equal(now) {
		t.Fatalf("UpdatedAt = %v, want %v", rec.UpdatedAt, now)
	}
}
