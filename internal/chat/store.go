// Package chat persists AI chat sessions in their own SQLite database,
// versioned independently of the notepad store.
package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nzaccagnino/go-notepad/internal/schema"
	_ "modernc.org/sqlite"
)

const SchemaVersion = 3

type Store struct {
	conn *sql.DB
}

func Open(path string) (*Store, error) {
	return OpenVersion(context.Background(), path, SchemaVersion)
}

// OpenVersion opens the store and upgrades it to version.
func OpenVersion(ctx context.Context, path string, version int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create chat db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open chat database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := schema.Migrate(ctx, conn, migrations, version); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate chat database: %w", err)
	}
	return &Store{conn: conn}, nil
}

var migrations = []schema.Step{
	{From: 0, Name: "sessions", Apply: func(ctx context.Context, tx *sql.Tx) error {
		return schema.Exec(ctx, tx,
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				messages TEXT NOT NULL DEFAULT '[]',
				created INTEGER NOT NULL,
				last_updated INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_last_updated ON sessions(last_updated)`,
		)
	}},
	{From: 1, Name: "sessions.last_synced", Apply: func(ctx context.Context, tx *sql.Tx) error {
		if err := schema.AddColumn(ctx, tx, "sessions", "last_synced", "INTEGER"); err != nil {
			return err
		}
		// Clearing the marker forces every existing session through the next sync.
		return schema.Exec(ctx, tx,
			`CREATE INDEX IF NOT EXISTS idx_sessions_last_synced ON sessions(last_synced)`,
			`UPDATE sessions SET last_synced = NULL`,
		)
	}},
	{From: 2, Name: "sessions.title", Apply: func(ctx context.Context, tx *sql.Tx) error {
		if err := schema.AddColumn(ctx, tx, "sessions", "title", "TEXT"); err != nil {
			return err
		}
		return schema.Exec(ctx, tx, `UPDATE sessions SET title = NULL`)
	}},
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Version(ctx context.Context) (int, error) {
	return schema.Version(ctx, s.conn)
}

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var sess Session
	var messages string
	var title sql.NullString
	var created, updated int64
	var synced sql.NullInt64
	if err := row.Scan(&sess.ID, &title, &messages, &created, &updated, &synced); err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal([]byte(messages), &sess.Messages); err != nil {
		return Session{}, fmt.Errorf("session %s: failed to decode messages: %w", sess.ID, err)
	}
	if title.Valid {
		t := title.String
		sess.Title = &t
	}
	sess.Created = time.UnixMilli(created)
	sess.LastUpdated = time.UnixMilli(updated)
	if synced.Valid {
		t := time.UnixMilli(synced.Int64)
		sess.LastSynced = &t
	}
	return sess, nil
}

const sessionColumns = `id, title, messages, created, last_updated, last_synced`

// GetAllSessions returns every session, most recently updated first.
func (s *Store) GetAllSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY last_updated DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	sess, err := scanSession(s.conn.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

// SaveSession upserts a session. A stored last_synced value is kept when
// the incoming session does not carry one, so content saves never drop
// sync state.
func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if sess.Messages == nil {
		sess.Messages = []Message{}
	}
	messages, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	if sess.Created.IsZero() {
		sess.Created = time.Now()
	}
	if sess.LastUpdated.IsZero() {
		sess.LastUpdated = sess.Created
	}

	var title sql.NullString
	if sess.Title != nil {
		title = sql.NullString{String: *sess.Title, Valid: true}
	}
	var synced sql.NullInt64
	if sess.LastSynced != nil {
		synced = sql.NullInt64{Int64: sess.LastSynced.UnixMilli(), Valid: true}
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, title, messages, created, last_updated, last_synced)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			messages = excluded.messages,
			created = excluded.created,
			last_updated = excluded.last_updated,
			last_synced = COALESCE(excluded.last_synced, sessions.last_synced)
	`, sess.ID, title, string(messages), sess.Created.UnixMilli(), sess.LastUpdated.UnixMilli(), synced)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *Store) MarkSynced(ctx context.Context, id string, at time.Time) error {
	if _, err := s.conn.ExecContext(ctx, `UPDATE sessions SET last_synced = ? WHERE id = ?`, at.UnixMilli(), id); err != nil {
		return fmt.Errorf("failed to mark session %s synced: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
