package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nzaccagnino/go-notepad/internal/schema"
)

// SchemaVersion is the Embedded Store version this build writes.
const SchemaVersion = 3

type DB struct {
	conn *sql.DB
	now  func() time.Time
}

func New(dbPath string) (*DB, error) {
	return OpenVersion(context.Background(), dbPath, SchemaVersion)
}

// OpenVersion opens the store and upgrades it to version. Anything other than
// SchemaVersion is only useful for exercising upgrade paths.
func OpenVersion(ctx context.Context, dbPath string, version int) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps SaveAllTabs transactions from tripping over each other.
	conn.SetMaxOpenConns(1)

	if _, err := schema.Migrate(ctx, conn, migrations, version); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &DB{conn: conn, now: time.Now}, nil
}

var migrations = []schema.Step{
	{From: 0, Name: "tabs and drawings", Apply: func(ctx context.Context, tx *sql.Tx) error {
		return schema.Exec(ctx, tx,
			`CREATE TABLE IF NOT EXISTS tabs (
				id INTEGER PRIMARY KEY,
				name TEXT NOT NULL,
				content TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL DEFAULT 'markdown'
			)`,
			`CREATE TABLE IF NOT EXISTS drawings (
				id INTEGER PRIMARY KEY,
				elements TEXT,
				app_state TEXT,
				files TEXT
			)`,
		)
	}},
	{From: 1, Name: "tab sync metadata", Apply: func(ctx context.Context, tx *sql.Tx) error {
		for _, col := range []struct{ name, decl string }{
			{"note_id", "TEXT"},
			{"last_modified", "INTEGER"},
			{"last_synced", "INTEGER"},
		} {
			if err := schema.AddColumn(ctx, tx, "tabs", col.name, col.decl); err != nil {
				return err
			}
		}
		return schema.Exec(ctx, tx,
			`CREATE INDEX IF NOT EXISTS idx_tabs_note_id ON tabs(note_id)`,
			`CREATE INDEX IF NOT EXISTS idx_tabs_last_modified ON tabs(last_modified)`,
			`CREATE INDEX IF NOT EXISTS idx_tabs_last_synced ON tabs(last_synced)`,
		)
	}},
	{From: 2, Name: "todos", Apply: func(ctx context.Context, tx *sql.Tx) error {
		return schema.Exec(ctx, tx,
			`CREATE TABLE IF NOT EXISTS todos (
				id INTEGER PRIMARY KEY,
				text TEXT NOT NULL,
				completed INTEGER NOT NULL DEFAULT 0,
				list TEXT NOT NULL DEFAULT 'inbox',
				due_date TEXT,
				notes TEXT,
				urls TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_todos_list ON todos(list)`,
			`CREATE TABLE IF NOT EXISTS todo_meta (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
		)
	}},
}

var ErrNotFound = errors.New("record not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Timestamps are stored as unix milliseconds; NULL and 0 both mean unset.

func toMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid || v.Int64 == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
