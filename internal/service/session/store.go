// Package session provides the in-memory store for conversation histories.
// Sessions are keyed by an opaque identifier, created lazily, and kept for
// the process lifetime; there is deliberately no eviction.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/personagpt/backend/internal/model/chat"
)

// Store maps session identifiers to their conversation state. The store-level
// lock guards only the identifier map; each session carries its own lock so
// that exchanges on one session serialize without stalling any other session.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	sess chat.Session
}

// NewStore returns an empty store. Callers own the instance; nothing in this
// package keeps global state.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// GetOrCreate returns a snapshot of the session for id, creating an empty
// session first if the id is unknown. It never fails.
func (s *Store) GetOrCreate(id string) chat.Session {
	e := s.lookupOrCreate(id)

	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.sess)
}

// Append adds one or more turns to the session's history as a single atomic
// operation, creating the session if absent. Turn IDs and timestamps are
// assigned when unset. The user and assistant turns of one exchange must be
// appended together so readers never observe half an exchange.
func (s *Store) Append(id string, turns ...chat.Turn) {
	if len(turns) == 0 {
		return
	}

	e := s.lookupOrCreate(id)

	e.mu.Lock()
	defer e.mu.Unlock()
	appendLocked(e, turns)
}

// Reset replaces the session's turn sequence with an empty one, creating the
// session if absent. It is idempotent and never fails.
func (s *Store) Reset(id string) {
	e := s.lookupOrCreate(id)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Turns = nil
	e.sess.LastActivity = time.Now().UTC()
}

// Transcript returns a copy of the stored turns for id. Unknown ids yield nil
// without creating a session.
func (s *Store) Transcript(id string) []chat.Turn {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return copyTurns(e.sess.Turns)
}

// Exchange runs fn while holding the session's lock, passing it a snapshot of
// the current state. The turns fn returns are appended before the lock is
// released; if fn returns an error nothing is appended. The lock is released
// on every exit path, so a cancelled or failed exchange leaves the history
// untouched and the session usable. fn must not call back into the store for
// the same session.
func (s *Store) Exchange(id string, fn func(chat.Session) ([]chat.Turn, error)) error {
	e := s.lookupOrCreate(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	turns, err := fn(snapshot(e.sess))
	if err != nil {
		return err
	}

	appendLocked(e, turns)
	return nil
}

// Stats reports the number of sessions and the total stored turns.
func (s *Store) Stats() (sessions, turns int) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	// Sum without holding the store lock. An entry parked in a slow
	// exchange may delay this count, but it must never stall lookups or
	// creates on other sessions.
	for _, e := range entries {
		e.mu.Lock()
		turns += len(e.sess.Turns)
		e.mu.Unlock()
	}
	return len(entries), turns
}

// lookupOrCreate resolves the entry for id, inserting a fresh session when
// the id is unseen. The same id always resolves to the same entry for the
// life of the process.
func (s *Store) lookupOrCreate(id string) *entry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e
	}

	now := time.Now().UTC()
	e = &entry{sess: chat.Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
	}}
	s.entries[id] = e
	return e
}

// appendLocked adds turns to the entry, which must already be locked.
func appendLocked(e *entry, turns []chat.Turn) {
	if len(turns) == 0 {
		return
	}

	now := time.Now().UTC()
	for _, turn := range turns {
		if turn.ID == "" {
			turn.ID = uuid.NewString()
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		e.sess.Turns = append(e.sess.Turns, turn)
	}
	e.sess.LastActivity = now
}

// snapshot copies the session so callers can read it without holding the lock.
func snapshot(sess chat.Session) chat.Session {
	sess.Turns = copyTurns(sess.Turns)
	return sess
}

func copyTurns(turns []chat.Turn) []chat.Turn {
	if len(turns) == 0 {
		return nil
	}
	copied := make([]chat.Turn, len(turns))
	copy(copied, turns)
	return copied
}
