package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreSaveLoad(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	s := buildSession(t)

	if err := store.Save(ctx, "current", s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "current")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.SessionID != s.SessionID {
		t.Errorf("SessionID = %v, want %v", got.SessionID, s.SessionID)
	}
	if got.Tree.Len() != s.Tree.Len() {
		t.Errorf("Len() = %d, want %d", got.Tree.Len(), s.Tree.Len())
	}
}

func TestFileStoreOverwritesSlot(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	first := buildSession(t)
	second := New("a different topic")

	if err := store.Save(ctx, "current", first); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "current", second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(ctx, "current")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.SessionID != second.SessionID {
		t.Errorf("slot holds %v, want latest session %v", got.SessionID, second.SessionID)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	_, err = store.Load(context.Background(), "empty")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Load() error = %v, want ErrSessionNotFound", err)
	}
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	if err := os.WriteFile(filepath.Join(dir, "current.json"), []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err = store.Load(context.Background(), "current")
	if !errors.Is(err, ErrSessionCorrupt) {
		t.Errorf("Load() error = %v, want ErrSessionCorrupt", err)
	}

	// LoadIfPresent degrades corruption to absence.
	if got := LoadIfPresent(context.Background(), store, "current"); got != nil {
		t.Error("LoadIfPresent() should return nil for a corrupt slot")
	}
}

func TestFileStoreClear(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.Save(ctx, "current", buildSession(t)); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(ctx, "current"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := store.Load(ctx, "current"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Load() after Clear error = %v, want ErrSessionNotFound", err)
	}

	// Clearing twice is fine.
	if err := store.Clear(ctx, "current"); err != nil {
		t.Errorf("Clear() on empty slot error = %v", err)
	}
}

func TestFileStoreSlotValidation(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	for _, slot := range []string{"", "../escape", "a/b", `a\b`} {
		if err := store.Save(ctx, slot, buildSession(t)); err == nil {
			t.Errorf("Save(%q) should reject unsafe slot name", slot)
		}
	}
}

func TestFileStoreClosed(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Save(ctx, "current", buildSession(t)); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Save() after Close error = %v, want ErrStoreClosed", err)
	}
	if _, err := store.Load(ctx, "current"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Load() after Close error = %v, want ErrStoreClosed", err)
	}
}
