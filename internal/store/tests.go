package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldcap/internal/record"
)

// CreateOrUpdateTest inserts a record when none exists for the patch's
// test id, otherwise merges field-by-field (new non-empty value wins).
// Idempotent: applying the same payload twice yields the same record
// aside from updated_at. The kv mirror is rewritten in the same
// transaction.
func (s *Store) CreateOrUpdateTest(ctx context.Context, patch *record.TestRecord) (*record.TestRecord, error) {
	if patch == nil || !record.ValidTestID(patch.TestID) {
		return nil, errors.New("test id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := getTestRow(ctx, tx, patch.TestID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	merged := record.Merge(existing, patch)
	merged.TestID = patch.TestID
	if merged.Status == "" {
		merged.Status = record.StatusPending
	}
	if merged.Geo != nil {
		merged.Geo.Normalize()
	}
	if existing != nil {
		merged.CreatedAt = existing.CreatedAt
	}
	merged.Touch(time.Now())

	if err := upsertTestRow(ctx, tx, merged); err != nil {
		return nil, err
	}

	videos, err := loadVideos(ctx, tx, merged.TestID)
	if err != nil {
		return nil, err
	}
	merged.Videos = videos

	if err := writeMirror(ctx, tx, testMirrorKey(merged.TestID), merged); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return merged, nil
}

// UpdateTestMetadata merges a patch scoped to the metadata, geo, and user
// sub-objects. Returns ErrNotFound when no record exists, signaling the
// caller to fall back to a full create.
func (s *Store) UpdateTestMetadata(ctx context.Context, testID string, patch *record.TestRecord) (*record.TestRecord, error) {
	if !record.ValidTestID(testID) {
		return nil, errors.New("test id is required")
	}
	if _, err := s.GetTest(ctx, testID); err != nil {
		return nil, err
	}
	scoped := &record.TestRecord{TestID: testID}
	if patch != nil {
		scoped.User = patch.User
		scoped.Geo = patch.Geo
		scoped.Metadata = patch.Metadata
	}
	return s.CreateOrUpdateTest(ctx, scoped)
}

// GetTest fetches one record with its videos ordered by upload time
// ascending.
func (s *Store) GetTest(ctx context.Context, testID string) (*record.TestRecord, error) {
	rec, err := getTestRow(ctx, s.db, testID)
	if err != nil {
		return nil, err
	}
	videos, err := loadVideos(ctx, s.db, testID)
	if err != nil {
		return nil, err
	}
	rec.Videos = videos
	foldLegacyVideo(rec)
	return rec, nil
}

// ListTests returns all records newest first, each with its ordered
// videos attached.
func (s *Store) ListTests(ctx context.Context) ([]*record.TestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+testColumns+` FROM tests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	defer rows.Close()

	var records []*record.TestRecord
	index := make(map[string]*record.TestRecord)
	for rows.Next() {
		rec, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		index[rec.TestID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	videoRows, err := s.db.QueryContext(ctx,
		`SELECT test_id, file_name, url, size, content_type, uploaded_at
         FROM test_videos ORDER BY test_id, uploaded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer videoRows.Close()

	for videoRows.Next() {
		var (
			testID      string
			ref         record.VideoReference
			contentType sql.NullString
			uploadedRaw string
		)
		if err := videoRows.Scan(&testID, &ref.FileName, &ref.URL, &ref.Size, &contentType, &uploadedRaw); err != nil {
			return nil, err
		}
		ref.Type = contentType.String
		if uploaded, err := parseTimeString(uploadedRaw); err == nil {
			ref.UploadedAt = uploaded
		}
		if rec, ok := index[testID]; ok {
			rec.Videos = append(rec.Videos, ref)
		}
	}
	if err := videoRows.Err(); err != nil {
		return nil, err
	}

	for _, rec := range records {
		foldLegacyVideo(rec)
	}
	return records, nil
}

// AppendVideo records an uploaded blob against an existing test: the
// reference is appended, the latest-video denormalized fields refreshed,
// and status flips to completed. ErrNotFound when the test is absent.
func (s *Store) AppendVideo(ctx context.Context, testID string, ref record.VideoReference) (*record.TestRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := getTestRow(ctx, tx, testID)
	if err != nil {
		return nil, err
	}

	if ref.UploadedAt.IsZero() {
		ref.UploadedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO test_videos (test_id, file_name, url, size, content_type, uploaded_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		testID, ref.FileName, ref.URL, ref.Size, nullableString(ref.Type), formatTime(ref.UploadedAt),
	); err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}

	rec.LatestVideoName = ref.FileName
	rec.LatestVideoURL = ref.URL
	rec.Status = record.StatusCompleted
	rec.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE tests SET latest_video_name = ?, latest_video_url = ?, status = ?, updated_at = ?
         WHERE test_id = ?`,
		ref.FileName, ref.URL, rec.Status, formatTime(rec.UpdatedAt), testID,
	); err != nil {
		return nil, fmt.Errorf("update latest video: %w", err)
	}

	videos, err := loadVideos(ctx, tx, testID)
	if err != nil {
		return nil, err
	}
	rec.Videos = videos

	if err := writeMirror(ctx, tx, testMirrorKey(testID), rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// BlobKeys collects every storage key referenced by a record: the legacy
// single-video field plus the video list, deduplicated.
func (s *Store) BlobKeys(ctx context.Context, testID string) ([]string, error) {
	rec, err := s.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var keys []string
	add := func(key string) {
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	for _, video := range rec.Videos {
		add(video.FileName)
	}
	add(rec.LatestVideoName)
	return keys, nil
}

// DeleteTest removes the record row, its video rows, and the mirror
// entry. Blob cleanup is the caller's responsibility and must happen
// first; this is the final, authoritative step.
func (s *Store) DeleteTest(ctx context.Context, testID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM tests WHERE test_id = ?`, testID)
	if err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("test %s: %w", testID, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM test_videos WHERE test_id = ?`, testID); err != nil {
		return fmt.Errorf("delete videos: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kv_mirror WHERE key = ?`, testMirrorKey(testID)); err != nil {
		return fmt.Errorf("delete mirror entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const testColumns = `test_id, session_id, display_name, email,
    latitude, longitude, city, state, accuracy, geo_source, geo_approximate, geo_timestamp,
    metadata_json, latest_video_name, latest_video_url, legacy_video_name, legacy_video_url,
    status, created_at, updated_at`

func getTestRow(ctx context.Context, q querier, testID string) (*record.TestRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+testColumns+` FROM tests WHERE test_id = ?`, testID)
	rec, err := scanTest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("test %s: %w", testID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	return rec, nil
}

func scanTest(scanner interface{ Scan(dest ...any) error }) (*record.TestRecord, error) {
	var (
		testID          string
		sessionID       sql.NullString
		displayName     sql.NullString
		email           sql.NullString
		latitude        float64
		longitude       float64
		city            string
		state           string
		accuracy        float64
		geoSource       sql.NullString
		geoApproximate  sql.NullInt64
		geoTimestampRaw sql.NullString
		metadataJSON    sql.NullString
		latestVideoName sql.NullString
		latestVideoURL  sql.NullString
		legacyVideoName sql.NullString
		legacyVideoURL  sql.NullString
		statusStr       string
		createdRaw      string
		updatedRaw      string
	)

	if err := scanner.Scan(
		&testID, &sessionID, &displayName, &email,
		&latitude, &longitude, &city, &state, &accuracy, &geoSource, &geoApproximate, &geoTimestampRaw,
		&metadataJSON, &latestVideoName, &latestVideoURL, &legacyVideoName, &legacyVideoURL,
		&statusStr, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &record.TestRecord{
		TestID:          testID,
		SessionID:       sessionID.String,
		LatestVideoName: latestVideoName.String,
		LatestVideoURL:  latestVideoURL.String,
		Status:          record.Status(statusStr),
	}
	if displayName.Valid || email.Valid {
		rec.User = &record.UserIdentity{DisplayName: displayName.String, Email: email.String}
	}
	if geoSource.Valid || latitude != 0 || longitude != 0 || city != "" {
		geo := &record.GeoFix{
			Latitude:    latitude,
			Longitude:   longitude,
			City:        city,
			State:       state,
			Accuracy:    accuracy,
			Source:      record.GeoSource(geoSource.String),
			Approximate: geoApproximate.Int64 != 0,
		}
		if ts, err := parseTimeString(geoTimestampRaw.String); err == nil {
			geo.Timestamp = ts
		}
		rec.Geo = geo
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		var meta record.Metadata
		if err := json.Unmarshal([]byte(metadataJSON.String), &meta); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", testID, err)
		}
		rec.Metadata = &meta
	}
	// The legacy single-video shape is folded into the list on read; keep
	// the raw values around until videos are attached.
	if legacyVideoName.Valid && legacyVideoName.String != "" && rec.LatestVideoName == "" {
		rec.LatestVideoName = legacyVideoName.String
		rec.LatestVideoURL = legacyVideoURL.String
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}

func upsertTestRow(ctx context.Context, tx *sql.Tx, rec *record.TestRecord) error {
	var (
		displayName, email      any
		latitude, longitude     float64
		city, state             = record.UnknownPlace, record.UnknownPlace
		accuracy                float64
		geoSource, geoTimestamp any
		geoApproximate          int
	)
	if rec.User != nil {
		displayName = nullableString(rec.User.DisplayName)
		email = nullableString(rec.User.Email)
	}
	if rec.Geo != nil {
		latitude = rec.Geo.Latitude
		longitude = rec.Geo.Longitude
		city = rec.Geo.City
		state = rec.Geo.State
		accuracy = rec.Geo.Accuracy
		geoSource = nullableString(string(rec.Geo.Source))
		geoApproximate = boolToInt(rec.Geo.Approximate)
		if !rec.Geo.Timestamp.IsZero() {
			geoTimestamp = formatTime(rec.Geo.Timestamp)
		}
	}

	var metadataJSON any
	var deviceID, deviceType, testCycle, environment, roadType any
	if rec.Metadata != nil {
		encoded, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadataJSON = string(encoded)
		deviceID = nullableString(rec.Metadata.DeviceID)
		deviceType = nullableString(rec.Metadata.DeviceType)
		testCycle = nullableString(rec.Metadata.TestCycle)
		environment = nullableString(rec.Metadata.Environment)
		roadType = nullableString(rec.Metadata.RoadType)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO tests (
            test_id, session_id, display_name, email,
            latitude, longitude, city, state, accuracy, geo_source, geo_approximate, geo_timestamp,
            device_id, device_type, test_cycle, environment, road_type, metadata_json,
            latest_video_name, latest_video_url, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(test_id) DO UPDATE SET
            session_id = excluded.session_id,
            display_name = excluded.display_name,
            email = excluded.email,
            latitude = excluded.latitude,
            longitude = excluded.longitude,
            city = excluded.city,
            state = excluded.state,
            accuracy = excluded.accuracy,
            geo_source = excluded.geo_source,
            geo_approximate = excluded.geo_approximate,
            geo_timestamp = excluded.geo_timestamp,
            device_id = excluded.device_id,
            device_type = excluded.device_type,
            test_cycle = excluded.test_cycle,
            environment = excluded.environment,
            road_type = excluded.road_type,
            metadata_json = excluded.metadata_json,
            latest_video_name = excluded.latest_video_name,
            latest_video_url = excluded.latest_video_url,
            status = excluded.status,
            updated_at = excluded.updated_at`,
		rec.TestID,
		nullableString(rec.SessionID),
		displayName, email,
		latitude, longitude, city, state, accuracy, geoSource, geoApproximate, geoTimestamp,
		deviceID, deviceType, testCycle, environment, roadType, metadataJSON,
		nullableString(rec.LatestVideoName), nullableString(rec.LatestVideoURL),
		string(rec.Status),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert test: %w", err)
	}
	return nil
}

func loadVideos(ctx context.Context, q querier, testID string) ([]record.VideoReference, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT file_name, url, size, content_type, uploaded_at
         FROM test_videos WHERE test_id = ? ORDER BY uploaded_at, id`, testID)
	if err != nil {
		return nil, fmt.Errorf("load videos: %w", err)
	}
	defer rows.Close()

	var videos []record.VideoReference
	for rows.Next() {
		var (
			ref         record.VideoReference
			contentType sql.NullString
			uploadedRaw string
		)
		if err := rows.Scan(&ref.FileName, &ref.URL, &ref.Size, &contentType, &uploadedRaw); err != nil {
			return nil, err
		}
		ref.Type = contentType.String
		if uploaded, err := parseTimeString(uploadedRaw); err == nil {
			ref.UploadedAt = uploaded
		}
		videos = append(videos, ref)
	}
	return videos, rows.Err()
}

// foldLegacyVideo surfaces the legacy single-video shape as a one-element
// list when no list entries exist.
func foldLegacyVideo(rec *record.TestRecord) {
	if len(rec.Videos) > 0 || rec.LatestVideoName == "" {
		return
	}
	rec.Videos = []record.VideoReference{{
		FileName:   rec.LatestVideoName,
		URL:        rec.LatestVideoURL,
		UploadedAt: rec.UpdatedAt,
	}}
}
