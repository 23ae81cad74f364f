package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_ValidationErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		dbPath      string
		expectedErr string
	}{
		{"empty_path", "", "empty database path"},
		{"whitespace_path", "   ", "empty database path"},
		{"tabs_path", "\t\t", "empty database path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(ctx, tt.dbPath)
			assert.Nil(t, store)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestOpen_CreatesAndMigrates(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "session.db")

	store, err := Open(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	// File exists with strict permissions
	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	var ver int
	require.NoError(t, store.DB().QueryRowContext(ctx, "PRAGMA user_version;").Scan(&ver))
	assert.Equal(t, 1, ver)
}

func TestOpen_ReopenExisting(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "session.db")

	store, err := Open(ctx, dbPath)
	require.NoError(t, err)

	ss := NewSessionStore(store)
	require.NoError(t, ss.SaveCredentialSnapshot(ctx, []byte(`{"token":"t"}`)))
	require.NoError(t, store.Close())

	// Data survives a reopen (reload semantics)
	store2, err := Open(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = store2.Close() }()

	raw, ok, err := NewSessionStore(store2).LoadCredentialSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"token":"t"}`, string(raw))
}

func TestStore_CloseNil(t *testing.T) {
	var store *Store
	assert.NoError(t, store.Close())
}
