package session

import (
	"context"
	"errors"
	"log"
)

// Common errors for storage operations.
var (
	// ErrSessionNotFound is returned when a slot holds no session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCorrupt is returned when a stored document cannot be
	// decoded or repaired.
	ErrSessionCorrupt = errors.New("session document is corrupt")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("session store is closed")
)

// Store abstracts single-slot session persistence. Each slot holds at
// most one session; saving overwrites the slot whole. Implementations
// must be safe for concurrent use.
type Store interface {
	// Save writes the session into the slot, replacing any previous
	// occupant.
	Save(ctx context.Context, slot string, s *LearningSession) error

	// Load reads the slot. Returns ErrSessionNotFound for an empty
	// slot and ErrSessionCorrupt for a document that cannot be decoded
	// or repaired.
	Load(ctx context.Context, slot string) (*LearningSession, error)

	// Clear empties the slot. Clearing an already-empty slot is not an
	// error.
	Clear(ctx context.Context, slot string) error

	// Close releases any resources held by the store.
	Close() error
}

// LoadIfPresent reads a slot and degrades both absence and corruption to
// "no cached session", logging corruption on the way. Startup never
// fails because of a bad cached document.
func LoadIfPresent(ctx context.Context, store Store, slot string) *LearningSession {
	s, err := store.Load(ctx, slot)
	if err != nil {
		if errors.Is(err, ErrSessionCorrupt) {
			log.Printf("session: discarding corrupt document in slot %q: %v", slot, err)
		}
		return nil
	}
	return s
}
