package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidSlotName is returned when a slot name contains unsafe characters.
var ErrInvalidSlotName = errors.New("invalid slot name: contains path separator or traversal sequence")

// validateSlotName checks that a slot is safe to use as a path component.
func validateSlotName(slot string) error {
	if slot == "" {
		return errors.New("slot name cannot be empty")
	}
	if strings.ContainsAny(slot, `/\`) || strings.Contains(slot, "..") {
		return ErrInvalidSlotName
	}
	return nil
}

// FileStore implements Store using one JSON document per slot.
// Storage layout:
//
//	~/.studytree/sessions/
//	  └── <slot>.json
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFileStore creates a file-based session store. If baseDir is empty,
// uses ~/.studytree/sessions.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".studytree", "sessions")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FileStore{baseDir: baseDir}, nil
}

// Save writes the session into the slot, replacing any previous occupant.
func (f *FileStore) Save(ctx context.Context, slot string, s *LearningSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := validateSlotName(slot); err != nil {
		return err
	}

	data, err := Encode(s)
	if err != nil {
		return err
	}

	// Write-then-rename so a crash mid-write never leaves a truncated
	// document in the slot.
	path := f.slotPath(slot)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}

	return nil
}

// Load reads the slot.
func (f *FileStore) Load(ctx context.Context, slot string) (*LearningSession, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	if err := validateSlotName(slot); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.slotPath(slot)) // #nosec G304 - slot validated to prevent traversal
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	return Decode(data)
}

// Clear empties the slot.
func (f *FileStore) Clear(ctx context.Context, slot string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := validateSlotName(slot); err != nil {
		return err
	}

	if err := os.Remove(f.slotPath(slot)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Close releases any resources held by the store.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

func (f *FileStore) slotPath(slot string) string {
	return filepath.Join(f.baseDir, slot+".json")
}
