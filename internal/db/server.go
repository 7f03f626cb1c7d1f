package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// ServerDB backs the notes proxy. SQLite serves self-hosted installs and
// Postgres serves the Supabase target; both share the same SQL, written with
// '?' placeholders and rebound per driver.
type ServerDB struct {
	conn   *sql.DB
	driver string
	now    func() time.Time
}

// ServerNote keeps Content exactly as the client sent it (base64).
type ServerNote struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewServerDB(driver, dsn string) (*ServerDB, error) {
	var conn *sql.DB
	var err error
	switch driver {
	case "sqlite":
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, fmt.Errorf("failed to create db directory: %w", err)
			}
		}
		conn, err = sql.Open("sqlite3", dsn)
	case "postgres":
		conn, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &ServerDB{conn: conn, driver: driver, now: time.Now}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func (db *ServerDB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			key_hash TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_name ON notes(name)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at)`,
	}
	for _, s := range stmts {
		if _, err := db.conn.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (db *ServerDB) Close() error {
	return db.conn.Close()
}

func (db *ServerDB) rebind(query string) string {
	if db.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func scanServerNote(row interface{ Scan(...any) error }) (ServerNote, error) {
	var n ServerNote
	var created, updated int64
	if err := row.Scan(&n.ID, &n.Name, &n.Content, &created, &updated); err != nil {
		return ServerNote{}, err
	}
	n.CreatedAt = time.UnixMilli(created).UTC()
	n.UpdatedAt = time.UnixMilli(updated).UTC()
	return n, nil
}

func (db *ServerDB) queryNotes(ctx context.Context, query string, args ...any) ([]ServerNote, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []ServerNote{}
	for rows.Next() {
		n, err := scanServerNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (db *ServerDB) ListNotes(ctx context.Context) ([]ServerNote, error) {
	return db.queryNotes(ctx, `
		SELECT id, name, content, created_at, updated_at
		FROM notes
		ORDER BY updated_at DESC
	`)
}

func (db *ServerDB) SearchNotes(ctx context.Context, term string) ([]ServerNote, error) {
	return db.queryNotes(ctx, `
		SELECT id, name, content, created_at, updated_at
		FROM notes
		WHERE LOWER(name) LIKE ?
		ORDER BY updated_at DESC
	`, "%"+strings.ToLower(term)+"%")
}

func (db *ServerDB) GetNote(ctx context.Context, id string) (*ServerNote, error) {
	n, err := scanServerNote(db.conn.QueryRowContext(ctx, db.rebind(`
		SELECT id, name, content, created_at, updated_at FROM notes WHERE id = ?
	`), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return &n, nil
}

// UpsertNote creates a note when id is empty and otherwise updates it in
// place, keeping its original creation time.
func (db *ServerDB) UpsertNote(ctx context.Context, id, name, content string) (*ServerNote, error) {
	if id == "" {
		id = uuid.New().String()
	}
	now := db.now().UnixMilli()

	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO notes (id, name, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			content = excluded.content,
			updated_at = excluded.updated_at
	`), id, name, content, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert note: %w", err)
	}

	return db.GetNote(ctx, id)
}

// API keys are handed out as "<id>.<secret>"; only a bcrypt hash of the
// secret is stored.

func (db *ServerDB) CreateAPIKey(ctx context.Context, label string) (string, error) {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	secret := strings.ReplaceAll(uuid.New().String(), "-", "")

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO api_keys (id, label, key_hash, created_at) VALUES (?, ?, ?, ?)
	`), id, label, string(hash), db.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to store key: %w", err)
	}
	return id + "." + secret, nil
}

func (db *ServerDB) ValidateAPIKey(ctx context.Context, key string) (bool, error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok || id == "" || secret == "" {
		return false, nil
	}

	var hash string
	err := db.conn.QueryRowContext(ctx, db.rebind(`SELECT key_hash FROM api_keys WHERE id = ?`), id).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up key: %w", err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil, nil
}
