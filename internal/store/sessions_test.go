package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fieldcap/internal/record"
	"fieldcap/internal/store"
	"fieldcap/internal/testsupport"
)

func TestSessionCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	session := &record.Session{
		ID:        "session-abc",
		User:      record.UserIdentity{DisplayName: "Ada", Email: "ada@example.com"},
		CreatedAt: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}
	if err := st.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := st.GetSession(ctx, "session-abc")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.User.DisplayName != "Ada" || got.User.Email != "ada@example.com" {
		t.Errorf("identity mismatch: %+v", got.User)
	}
	if !got.CreatedAt.Equal(session.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, session.CreatedAt)
	}
}

func TestSessionRecreateIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := &record.Session{
		ID:        "session-abc",
		User:      record.UserIdentity{DisplayName: "Ada", Email: "ada@example.com"},
		CreatedAt: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}
	if err := st.CreateSession(ctx, first); err != nil {
		t.Fatalf("first CreateSession: %v", err)
	}
	// Same id posted again after an app restart must not clobber the row.
	again := &record.Session{
		ID:        "session-abc",
		User:      record.UserIdentity{DisplayName: "Grace", Email: "grace@example.com"},
		CreatedAt: time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC),
	}
	if err := st.CreateSession(ctx, again); err != nil {
		t.Fatalf("second CreateSession: %v", err)
	}

	got, err := st.GetSession(ctx, "session-abc")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.User.DisplayName != "Ada" {
		t.Errorf("re-post overwrote the original identity: %+v", got.User)
	}
}

func TestSessionRepostKeepsMirrorOnStoredIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.CreateSession(ctx, &record.Session{
		ID:        "session-abc",
		User:      record.UserIdentity{DisplayName: "Ada", Email: "ada@example.com"},
		CreatedAt: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("first CreateSession: %v", err)
	}
	if err := st.CreateSession(ctx, &record.Session{
		ID:        "session-abc",
		User:      record.UserIdentity{DisplayName: "Grace", Email: "grace@example.com"},
		CreatedAt: time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("second CreateSession: %v", err)
	}

	row, err := st.GetSession(ctx, "session-abc")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	raw, err := st.MirrorValue(ctx, store.SessionMirrorKey("session-abc"))
	if err != nil {
		t.Fatalf("MirrorValue: %v", err)
	}
	var mirrored record.Session
	if err := json.Unmarshal(raw, &mirrored); err != nil {
		t.Fatalf("decode mirror: %v", err)
	}
	if mirrored.User.Email != "ada@example.com" {
		t.Errorf("mirror carries the rejected identity: %+v", mirrored.User)
	}
	if mirrored.User != row.User {
		t.Errorf("mirror diverged from row: row=%+v mirror=%+v", row.User, mirrored.User)
	}
}

func TestSessionRejectsIncompleteInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.CreateSession(ctx, &record.Session{ID: " "}); err == nil {
		t.Errorf("blank session id accepted")
	}
	if err := st.CreateSession(ctx, &record.Session{
		ID:   "session-abc",
		User: record.UserIdentity{DisplayName: "Ada"},
	}); err == nil {
		t.Errorf("missing email accepted")
	}
}

func TestSessionMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	_, err := st.GetSession(context.Background(), "session-gone")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
