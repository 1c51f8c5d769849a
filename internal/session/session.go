// Package session persists the client's local session: one id plus the
// identity chosen on first run, stored as JSON in the state directory.
// The identity is immutable once written; starting over means resetting
// the session.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"fieldcap/internal/record"
)

// ErrNoSession reports that no local session exists yet.
var ErrNoSession = errors.New("no local session")

// ErrIdentityLocked reports an attempt to rebind an existing session to
// a different identity.
var ErrIdentityLocked = errors.New("session identity is immutable")

const fileName = "session.json"

// Manager reads and writes the session file. Concurrent CLI invocations
// are serialized through a sibling lock file.
type Manager struct {
	path string
	lock *flock.Flock
}

// NewManager stores the session under dir, normally the config data dir.
func NewManager(dir string) *Manager {
	path := filepath.Join(dir, fileName)
	return &Manager{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the session file location.
func (m *Manager) Path() string { return m.path }

// Load reads the stored session. ErrNoSession when none exists.
func (m *Manager) Load() (record.Session, error) {
	if err := m.lock.Lock(); err != nil {
		return record.Session{}, fmt.Errorf("lock session file: %w", err)
	}
	defer m.lock.Unlock()
	return m.read()
}

// Establish returns the stored session, creating one bound to identity
// on first run. An existing session keeps its original identity; asking
// for a different one is an error, not a rebind.
func (m *Manager) Establish(identity record.UserIdentity) (record.Session, error) {
	if err := m.lock.Lock(); err != nil {
		return record.Session{}, fmt.Errorf("lock session file: %w", err)
	}
	defer m.lock.Unlock()

	existing, err := m.read()
	switch {
	case err == nil:
		if existing.User != identity {
			return record.Session{}, fmt.Errorf("%w: bound to %s", ErrIdentityLocked, existing.User.Email)
		}
		return existing, nil
	case !errors.Is(err, ErrNoSession):
		return record.Session{}, err
	}

	session := record.Session{
		ID:        uuid.NewString(),
		User:      identity,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.write(session); err != nil {
		return record.Session{}, err
	}
	return session, nil
}

// Reset deletes the stored session. Missing file is not an error.
func (m *Manager) Reset() error {
	if err := m.lock.Lock(); err != nil {
		return fmt.Errorf("lock session file: %w", err)
	}
	defer m.lock.Unlock()
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (m *Manager) read() (record.Session, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return record.Session{}, ErrNoSession
		}
		return record.Session{}, fmt.Errorf("read session file: %w", err)
	}
	var session record.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return record.Session{}, fmt.Errorf("parse session file: %w", err)
	}
	if session.ID == "" {
		return record.Session{}, ErrNoSession
	}
	return session, nil
}

func (m *Manager) write(session record.Session) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
