package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/postale/postale/internal/store"
)

// NewTestStore opens a reconciled SQLiteStore on a fresh database file in
// a temporary directory. It automatically closes the store when the test
// completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), store.DBFileName))
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
