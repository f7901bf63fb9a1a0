package memory

// Package memory provides an in-memory snapshot store used for development and tests.
// Nothing survives a restart.
import (
    "context"
    "sync"

    "github.com/tinoosan/bankledger/internal/storage"
)

// Store keeps the last saved snapshot. It is guarded by an RWMutex for
// concurrent reads/writes and never shares maps or slices with callers.
type Store struct {
    mu    sync.RWMutex
    snap  storage.Snapshot
    saves int
    // FailSave, when set, is returned by Save instead of storing the snapshot.
    FailSave error
}

// New constructs an empty in-memory store.
func New() *Store {
    return &Store{snap: storage.Empty()}
}

// Seed replaces the stored snapshot, for local dev/tests.
func (s *Store) Seed(snap storage.Snapshot) { s.mu.Lock(); s.snap = snap.Clone(); s.mu.Unlock() }

// Reset drops everything.
func (s *Store) Reset() {
    s.mu.Lock()
    s.snap = storage.Empty()
    s.saves = 0
    s.mu.Unlock()
}

// Saves reports how many snapshots were written successfully.
func (s *Store) Saves() int { s.mu.RLock(); defer s.mu.RUnlock(); return s.saves }

// Load returns a copy of the stored snapshot.
func (s *Store) Load(_ context.Context) (storage.Snapshot, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.snap.Clone(), nil
}

// Save replaces the stored snapshot with a copy of snap.
func (s *Store) Save(_ context.Context, snap storage.Snapshot) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.FailSave != nil {
        return s.FailSave
    }
    s.snap = snap.Clone()
    s.saves++
    return nil
}

// Ready always succeeds.
func (s *Store) Ready(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
