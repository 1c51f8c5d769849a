package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func testMirrorKey(testID string) string { return "test:" + testID }

func sessionMirrorKey(sessionID string) string { return "session:" + sessionID }

// writeMirror serializes value as nested JSON under key inside the same
// transaction as the relational write, keeping both views of the record
// consistent.
func writeMirror(ctx context.Context, tx *sql.Tx, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode mirror value: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv_mirror (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(encoded), formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("write mirror %s: %w", key, err)
	}
	return nil
}

// MirrorValue returns the raw JSON held for a mirror key. Used by point
// lookups and by tests asserting mirror consistency.
func (s *Store) MirrorValue(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM kv_mirror WHERE key = ?`, key)
	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mirror key %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read mirror: %w", err)
	}
	return []byte(value), nil
}

// TestMirrorKey exposes the key format for callers and tests.
func TestMirrorKey(testID string) string { return testMirrorKey(testID) }

// SessionMirrorKey exposes the key format for callers and tests.
func SessionMirrorKey(sessionID string) string { return sessionMirrorKey(sessionID) }
