// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mwantia/illustag/pkg/db/store"
)

// NewStore returns a migrated SQLite store in a temporary directory.
// It is closed when the test finishes.
func NewStore(t testing.TB) *store.SQLiteStore {
	t.Helper()
	return OpenStore(t, filepath.Join(t.TempDir(), "illustag.db"))
}

// OpenStore opens and migrates the database at path. Opening the same path
// twice gives two independent connection pools, like two processes would.
func OpenStore(t testing.TB, path string) *store.SQLiteStore {
	t.Helper()

	st, err := store.NewSQLiteStore(store.SQLiteConfig{Path: path})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, st.Connect(ctx))
	require.NoError(t, st.Migrate(ctx))

	t.Cleanup(func() {
		st.Close()
	})
	return st
}
