// Package session persists orchestrator.Session state to SQLite so a
// session survives process restarts between turns.
//
// Grounded on internal/memory/backend/sqlitevec/backend.go's
// sql.Open/init/prepared-statement shape, narrowed from a vector-search
// table to a single session snapshot table (one row per session, replaced
// on each Save and removed by Delete), and generalized
// from its float32-embedding BLOB encoding to whole-session JSON
// serialization (a Session/Turn/Message tree has no fixed column shape
// worth normalizing into relational tables for this core's scope).
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/meao/internal/orchestrator"
)

// Store persists orchestrator.Session snapshots keyed by session ID.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite-backed session store at
// path. Use ":memory:" for an ephemeral, test-only store.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("session store: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			lifecycle TEXT NOT NULL,
			snapshot TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("session store: create table: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`)
	if err != nil {
		return fmt.Errorf("session store: create index: %w", err)
	}
	return nil
}

// Save upserts the full session snapshot.
func (s *Store) Save(ctx context.Context, sess *orchestrator.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session store: marshal session %s: %w", sess.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, lifecycle, snapshot, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			lifecycle = excluded.lifecycle,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, sess.ID, sess.UserID, string(sess.Lifecycle), string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("session store: save session %s: %w", sess.ID, err)
	}
	return nil
}

// Load retrieves a session snapshot by ID. ok is false if no such session
// exists.
func (s *Store) Load(ctx context.Context, id string) (sess *orchestrator.Session, ok bool, err error) {
	var payload string
	err = s.db.QueryRowContext(ctx, `SELECT snapshot FROM sessions WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session store: load session %s: %w", id, err)
	}
	var out orchestrator.Session
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, false, fmt.Errorf("session store: unmarshal session %s: %w", id, err)
	}
	return &out, true, nil
}

// ListByUser returns every session ID belonging to userID, most recently
// updated first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM sessions WHERE user_id = ? ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("session store: list sessions for %s: %w", userID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("session store: scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a session snapshot. Deleting a non-existent session is
// not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("session store: delete session %s: %w", id, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
