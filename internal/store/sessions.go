package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldcap/internal/record"
)

// CreateSession persists a client-generated session. Sessions are
// immutable after creation; re-creating an existing id is a no-op so the
// call stays idempotent across app restarts.
func (s *Store) CreateSession(ctx context.Context, session *record.Session) error {
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return errors.New("session id is required")
	}
	if strings.TrimSpace(session.User.DisplayName) == "" || strings.TrimSpace(session.User.Email) == "" {
		return errors.New("session identity is required")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, display_name, email, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(session_id) DO NOTHING`,
		session.ID, session.User.DisplayName, session.User.Email, formatTime(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	// On a conflicting no-op the mirror must reflect the row that
	// actually stands, not the rejected payload.
	stored := *session
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		existing, err := readSessionTx(ctx, tx, session.ID)
		if err != nil {
			return err
		}
		stored = *existing
	}
	if err := writeMirror(ctx, tx, sessionMirrorKey(stored.ID), &stored); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetSession looks a session up by id. ErrNotFound when absent.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*record.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx,
		`SELECT session_id, display_name, email, created_at FROM sessions WHERE session_id = ?`,
		sessionID), sessionID)
}

func readSessionTx(ctx context.Context, tx *sql.Tx, sessionID string) (*record.Session, error) {
	return scanSession(tx.QueryRowContext(ctx,
		`SELECT session_id, display_name, email, created_at FROM sessions WHERE session_id = ?`,
		sessionID), sessionID)
}

func scanSession(row *sql.Row, sessionID string) (*record.Session, error) {
	var (
		session    record.Session
		createdRaw string
	)
	err := row.Scan(&session.ID, &session.User.DisplayName, &session.User.Email, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		session.CreatedAt = created
	}
	return &session, nil
}
