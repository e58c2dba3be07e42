package blobstore

import (
	"context"
	"path/filepath"
	"testing"
)

// setupTestStore opens a fresh store in a per-test temporary directory.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "portfolio.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })

	return store
}
