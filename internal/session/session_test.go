package session

import (
	"errors"
	"testing"

	"fieldcap/internal/record"
)

var (
	ada   = record.UserIdentity{DisplayName: "Ada", Email: "ada@example.com"}
	grace = record.UserIdentity{DisplayName: "Grace", Email: "grace@example.com"}
)

func TestLoadWithoutSession(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.Load(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestEstablishCreatesThenReturnsSameSession(t *testing.T) {
	m := NewManager(t.TempDir())

	first, err := m.Establish(ada)
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if first.ID == "" || first.User != ada || first.CreatedAt.IsZero() {
		t.Fatalf("session = %+v", first)
	}

	second, err := m.Establish(ada)
	if err != nil {
		t.Fatalf("re-Establish: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("re-establish minted a new session: %q vs %q", second.ID, first.ID)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != first.ID || loaded.User != ada {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestEstablishRejectsDifferentIdentity(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.Establish(ada); err != nil {
		t.Fatalf("Establish: %v", err)
	}
	_, err := m.Establish(grace)
	if !errors.Is(err, ErrIdentityLocked) {
		t.Fatalf("err = %v, want ErrIdentityLocked", err)
	}
}

func TestResetAllowsNewIdentity(t *testing.T) {
	m := NewManager(t.TempDir())
	first, err := m.Establish(ada)
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := m.Load(); !errors.Is(err, ErrNoSession) {
		t.Errorf("session survived reset: %v", err)
	}

	second, err := m.Establish(grace)
	if err != nil {
		t.Fatalf("Establish after reset: %v", err)
	}
	if second.ID == first.ID || second.User != grace {
		t.Errorf("session = %+v", second)
	}

	// Resetting with nothing stored stays quiet.
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := m.Reset(); err != nil {
		t.Errorf("idempotent reset failed: %v", err)
	}
}
