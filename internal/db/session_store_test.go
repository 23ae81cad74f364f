package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionStore(t *testing.T) *SessionStore {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewSessionStore(store)
}

func TestSessionStore_CredentialSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	ss := newTestSessionStore(t)

	_, ok, err := ss.LoadCredentialSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ss.SaveCredentialSnapshot(ctx, []byte(`{"access_token":"abc"}`)))
	raw, ok, err := ss.LoadCredentialSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"access_token":"abc"}`, string(raw))

	// Upsert replaces the previous snapshot
	require.NoError(t, ss.SaveCredentialSnapshot(ctx, []byte(`{"access_token":"def"}`)))
	raw, ok, err = ss.LoadCredentialSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"access_token":"def"}`, string(raw))
}

func TestSessionStore_SaveCredentialSnapshot_Validation(t *testing.T) {
	ctx := context.Background()
	ss := newTestSessionStore(t)

	err := ss.SaveCredentialSnapshot(ctx, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty credential snapshot")
}

func TestSessionStore_LabelVisibilityOverrides(t *testing.T) {
	ctx := context.Background()
	ss := newTestSessionStore(t)

	overrides, err := ss.LabelVisibilityOverrides(ctx)
	require.NoError(t, err)
	assert.Empty(t, overrides)

	require.NoError(t, ss.SetLabelVisibilityOverride(ctx, "CATEGORY_SOCIAL", false))
	require.NoError(t, ss.SetLabelVisibilityOverride(ctx, "STARRED", true))

	overrides, err = ss.LabelVisibilityOverrides(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"CATEGORY_SOCIAL": false, "STARRED": true}, overrides)

	// Upsert flips an existing override
	require.NoError(t, ss.SetLabelVisibilityOverride(ctx, "CATEGORY_SOCIAL", true))
	overrides, err = ss.LabelVisibilityOverrides(ctx)
	require.NoError(t, err)
	assert.True(t, overrides["CATEGORY_SOCIAL"])

	err = ss.SetLabelVisibilityOverride(ctx, "  ", true)
	assert.Error(t, err)
}

func TestSessionStore_ClearSession(t *testing.T) {
	ctx := context.Background()
	ss := newTestSessionStore(t)

	require.NoError(t, ss.SaveCredentialSnapshot(ctx, []byte(`{}`)))
	require.NoError(t, ss.SetLabelVisibilityOverride(ctx, "CATEGORY_SOCIAL", false))

	require.NoError(t, ss.ClearSession(ctx))

	_, ok, err := ss.LoadCredentialSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	overrides, err := ss.LabelVisibilityOverrides(ctx)
	require.NoError(t, err)
	assert.Empty(t, overrides)
}

func TestSessionStore_NotInitialized(t *testing.T) {
	ctx := context.Background()
	var ss *SessionStore

	assert.Error(t, ss.SaveCredentialSnapshot(ctx, []byte(`{}`)))
	_, _, err := ss.LoadCredentialSnapshot(ctx)
	assert.Error(t, err)
	assert.Error(t, ss.SetLabelVisibilityOverride(ctx, "x", true))
	_, err = ss.LabelVisibilityOverrides(ctx)
	assert.Error(t, err)
	assert.Error(t, ss.ClearSession(ctx))
	assert.Nil(t, NewSessionStore(nil))
}
