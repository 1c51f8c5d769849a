package testsupport

import (
	"context"
	"testing"
	"time"

	"fieldcap/internal/config"
	"fieldcap/internal/record"
	"fieldcap/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewTest persists a minimal valid test record and returns the stored copy.
func NewTest(t testing.TB, st *store.Store, testID string) *record.TestRecord {
	t.Helper()

	user := record.UserIdentity{DisplayName: "Test Runner", Email: "runner@example.com"}
	fix := record.GeoFix{
		Latitude:  37.7749,
		Longitude: -122.4194,
		City:      "San Francisco",
		State:     "California",
		Source:    record.SourceGPS,
		Timestamp: time.Now().UTC(),
	}
	saved, err := st.CreateOrUpdateTest(context.Background(), &record.TestRecord{
		TestID:    testID,
		SessionID: "session-test",
		User:      &user,
		Geo:       &fix,
		Metadata: &record.Metadata{
			DeviceID:    "D1",
			DeviceType:  "EVT",
			TestCycle:   "RC1",
			Environment: "urban",
			RoadType:    "freeway",
		},
	})
	if err != nil {
		t.Fatalf("store.CreateOrUpdateTest: %v", err)
	}
	return saved
}
