package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// credentialKey is the fixed key under which the credential snapshot lives.
const credentialKey = "credential"

// SessionStore persists per-session state: the credential snapshot and the
// visibility overrides for system labels (the remote API does not allow
// changing system-label visibility, so local state is authoritative there).
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a session store from a base store
func NewSessionStore(store *Store) *SessionStore {
	if store == nil {
		return nil
	}
	return &SessionStore{db: store.DB()}
}

// SaveCredentialSnapshot upserts the credential snapshot. Callers guarantee
// a failed credential never reaches this method.
func (ss *SessionStore) SaveCredentialSnapshot(ctx context.Context, snapshot []byte) error {
	if ss == nil || ss.db == nil {
		return fmt.Errorf("session store not initialized")
	}
	if len(snapshot) == 0 {
		return fmt.Errorf("empty credential snapshot")
	}
	_, err := ss.db.ExecContext(ctx, `INSERT INTO session_values(key, value, updated_at)
VALUES(?,?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at;
`, credentialKey, snapshot, time.Now().Unix())
	return err
}

// LoadCredentialSnapshot returns the persisted snapshot if present
func (ss *SessionStore) LoadCredentialSnapshot(ctx context.Context) ([]byte, bool, error) {
	if ss == nil || ss.db == nil {
		return nil, false, fmt.Errorf("session store not initialized")
	}
	var out []byte
	err := ss.db.QueryRowContext(ctx, `SELECT value FROM session_values WHERE key=?`, credentialKey).Scan(&out)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// SetLabelVisibilityOverride upserts the local visibility for a system label
func (ss *SessionStore) SetLabelVisibilityOverride(ctx context.Context, labelID string, visible bool) error {
	if ss == nil || ss.db == nil {
		return fmt.Errorf("session store not initialized")
	}
	if strings.TrimSpace(labelID) == "" {
		return fmt.Errorf("labelID cannot be empty")
	}
	v := 0
	if visible {
		v = 1
	}
	_, err := ss.db.ExecContext(ctx, `INSERT INTO label_visibility_overrides(label_id, visible, updated_at)
VALUES(?,?,?)
ON CONFLICT(label_id) DO UPDATE SET visible=excluded.visible, updated_at=excluded.updated_at;
`, labelID, v, time.Now().Unix())
	return err
}

// LabelVisibilityOverrides returns every persisted override keyed by label ID
func (ss *SessionStore) LabelVisibilityOverrides(ctx context.Context) (map[string]bool, error) {
	if ss == nil || ss.db == nil {
		return nil, fmt.Errorf("session store not initialized")
	}
	rows, err := ss.db.QueryContext(ctx, `SELECT label_id, visible FROM label_visibility_overrides`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		var v int
		if err := rows.Scan(&id, &v); err != nil {
			return nil, err
		}
		out[id] = v != 0
	}
	return out, rows.Err()
}

// ClearSession removes all persisted session state. Called on sign-out.
func (ss *SessionStore) ClearSession(ctx context.Context) error {
	if ss == nil || ss.db == nil {
		return fmt.Errorf("session store not initialized")
	}
	if _, err := ss.db.ExecContext(ctx, `DELETE FROM session_values`); err != nil {
		return err
	}
	_, err := ss.db.ExecContext(ctx, `DELETE FROM label_visibility_overrides`)
	return err
}
