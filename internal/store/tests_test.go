package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"fieldcap/internal/record"
	"fieldcap/internal/store"
	"fieldcap/internal/testsupport"
)

func TestCreateThenFetchReturnsSubmittedMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	saved := testsupport.NewTest(t, st, "test-1000-abc")
	if saved.Status != record.StatusPending {
		t.Fatalf("status = %q, want pending", saved.Status)
	}

	fetched, err := st.GetTest(context.Background(), "test-1000-abc")
	if err != nil {
		t.Fatalf("GetTest: %v", err)
	}
	meta := fetched.Metadata
	if meta == nil {
		t.Fatal("metadata missing after fetch")
	}
	if meta.DeviceID != "D1" || meta.DeviceType != "EVT" || meta.TestCycle != "RC1" ||
		meta.Environment != "urban" || meta.RoadType != "freeway" {
		t.Errorf("metadata round-trip mismatch: %+v", meta)
	}
	if fetched.Geo == nil || fetched.Geo.City != "San Francisco" {
		t.Errorf("geo round-trip mismatch: %+v", fetched.Geo)
	}
	if fetched.CreatedAt.IsZero() || fetched.UpdatedAt.IsZero() {
		t.Errorf("timestamps not stamped: %v %v", fetched.CreatedAt, fetched.UpdatedAt)
	}
}

func TestUpsertIdempotence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewTest(t, st, "test-1000-abc")
	second, err := st.CreateOrUpdateTest(ctx, &record.TestRecord{
		TestID: "test-1000-abc",
		Metadata: &record.Metadata{
			DeviceID:    "D1",
			DeviceType:  "EVT",
			TestCycle:   "RC1",
			Environment: "urban",
			RoadType:    "freeway",
		},
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on re-upsert: %v vs %v", second.CreatedAt, first.CreatedAt)
	}
	if *second.Metadata != *first.Metadata {
		t.Errorf("metadata changed on identical re-upsert")
	}
	if second.Geo.City != first.Geo.City || second.Geo.Latitude != first.Geo.Latitude {
		t.Errorf("geo changed on identical re-upsert")
	}
}

func TestUpdateMetadataMergesNotReplaces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewTest(t, st, "test-1000-abc")
	updated, err := st.UpdateTestMetadata(ctx, "test-1000-abc", &record.TestRecord{
		Metadata: &record.Metadata{CameraFirmware: "v2"},
	})
	if err != nil {
		t.Fatalf("UpdateTestMetadata: %v", err)
	}

	if updated.Metadata.CameraFirmware != "v2" {
		t.Errorf("CameraFirmware = %q, want v2", updated.Metadata.CameraFirmware)
	}
	if updated.Metadata.DeviceID != "D1" {
		t.Errorf("DeviceID lost: %q", updated.Metadata.DeviceID)
	}
	if updated.Geo == nil || updated.Geo.City != "San Francisco" {
		t.Errorf("geo lost on metadata patch: %+v", updated.Geo)
	}
}

func TestUpdateMetadataMissingRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	_, err := st.UpdateTestMetadata(context.Background(), "test-gone", &record.TestRecord{
		Metadata: &record.Metadata{DeviceID: "D9"},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAppendVideoCompletesTest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewTest(t, st, "test-1000-abc")

	rec, err := st.AppendVideo(ctx, "test-1000-abc", record.VideoReference{
		FileName:   "test-1000-abc/1724570000000-clip.mp4",
		URL:        "https://blobs.example.com/signed",
		Size:       2048,
		Type:       "video/mp4",
		UploadedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AppendVideo: %v", err)
	}

	if rec.Status != record.StatusCompleted {
		t.Errorf("status = %q, want completed", rec.Status)
	}
	if len(rec.Videos) != 1 {
		t.Fatalf("videos = %d, want 1", len(rec.Videos))
	}
	if !strings.Contains(rec.Videos[0].FileName, "test-1000-abc") {
		t.Errorf("fileName %q should contain the test id", rec.Videos[0].FileName)
	}
	if rec.LatestVideoName != rec.Videos[0].FileName {
		t.Errorf("latest video not mirrored: %q", rec.LatestVideoName)
	}
}

func TestAppendVideoMissingRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	_, err := st.AppendVideo(context.Background(), "test-gone", record.VideoReference{FileName: "x"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListTestsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewTest(t, st, "test-1000-old")
	time.Sleep(5 * time.Millisecond)
	testsupport.NewTest(t, st, "test-2000-new")

	tests, err := st.ListTests(ctx)
	if err != nil {
		t.Fatalf("ListTests: %v", err)
	}
	if len(tests) != 2 {
		t.Fatalf("len = %d, want 2", len(tests))
	}
	if tests[0].TestID != "test-2000-new" {
		t.Errorf("order = [%s, %s], want newest first", tests[0].TestID, tests[1].TestID)
	}
}

func TestBlobKeysDeduplicatesLegacyAndList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewTest(t, st, "test-1000-abc")
	for _, name := range []string{"test-1000-abc/1-a.mp4", "test-1000-abc/2-b.mp4"} {
		if _, err := st.AppendVideo(ctx, "test-1000-abc", record.VideoReference{FileName: name, URL: "u"}); err != nil {
			t.Fatalf("AppendVideo %s: %v", name, err)
		}
	}

	keys, err := st.BlobKeys(ctx, "test-1000-abc")
	if err != nil {
		t.Fatalf("BlobKeys: %v", err)
	}
	// Latest-video mirror duplicates the second list entry.
	if len(keys) != 2 {
		t.Fatalf("keys = %v, want 2 deduplicated entries", keys)
	}
}

func TestDeleteTestRemovesEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewTest(t, st, "test-1000-abc")
	if err := st.DeleteTest(ctx, "test-1000-abc"); err != nil {
		t.Fatalf("DeleteTest: %v", err)
	}

	if _, err := st.GetTest(ctx, "test-1000-abc"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetTest after delete = %v, want ErrNotFound", err)
	}
	if _, err := st.MirrorValue(ctx, store.TestMirrorKey("test-1000-abc")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("mirror entry survived delete: %v", err)
	}
	if err := st.DeleteTest(ctx, "test-1000-abc"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestMirrorTracksEveryWrite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewTest(t, st, "test-1000-abc")
	raw, err := st.MirrorValue(ctx, store.TestMirrorKey("test-1000-abc"))
	if err != nil {
		t.Fatalf("MirrorValue: %v", err)
	}
	var mirrored record.TestRecord
	if err := json.Unmarshal(raw, &mirrored); err != nil {
		t.Fatalf("decode mirror: %v", err)
	}
	if mirrored.Metadata == nil || mirrored.Metadata.DeviceID != "D1" {
		t.Errorf("mirror out of sync with relational row: %+v", mirrored.Metadata)
	}

	if _, err := st.UpdateTestMetadata(ctx, "test-1000-abc", &record.TestRecord{
		Metadata: &record.Metadata{DeviceID: "D2"},
	}); err != nil {
		t.Fatalf("UpdateTestMetadata: %v", err)
	}
	raw, err = st.MirrorValue(ctx, store.TestMirrorKey("test-1000-abc"))
	if err != nil {
		t.Fatalf("MirrorValue after update: %v", err)
	}
	if err := json.Unmarshal(raw, &mirrored); err != nil {
		t.Fatalf("decode mirror: %v", err)
	}
	if mirrored.Metadata.DeviceID != "D2" {
		t.Errorf("mirror not refreshed on update: %q", mirrored.Metadata.DeviceID)
	}
}
