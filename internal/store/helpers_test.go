package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a store on a fresh database file.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), DBFileName))
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// mustTable looks up a table the default schema declares.
func (s Schema) mustTable(name string) Table {
	t, ok := s.Table(name)
	if !ok {
		panic("store: table " + name + " missing from schema")
	}
	return t
}

// openRawDB opens a bare database file without reconciling it.
func openRawDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), DBFileName))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// liveColumns returns name -> declared type for a table.
func liveColumns(t *testing.T, db *sqlx.DB, table string) map[string]string {
	t.Helper()

	var cols []liveColumn
	require.NoError(t, db.Select(&cols,
		"SELECT name, type, pk FROM pragma_table_info(?)", table))

	out := make(map[string]string, len(cols))
	for _, c := range cols {
		out[c.Name] = c.Type
	}
	return out
}

func countRows(t *testing.T, db *sqlx.DB, query string, args ...any) int {
	t.Helper()

	var n int
	require.NoError(t, db.Get(&n, query, args...))
	return n
}
