package testsupport

import (
	"context"
	"testing"

	"quill/internal/config"
	"quill/internal/library"
)

// MustOpenStore opens a library.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRecording inserts a recording row for tests using the provided store.
func NewRecording(t testing.TB, store *library.Store, filename, path string) *library.Recording {
	t.Helper()

	rec, err := store.Add(context.Background(), filename, path, 1024, 30)
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return rec
}
