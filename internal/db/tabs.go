package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const tabColumns = `id, name, content, type, note_id, last_modified, last_synced`

func scanTab(row interface{ Scan(...any) error }) (Tab, error) {
	var t Tab
	var typ string
	var noteID sql.NullString
	var lastModified, lastSynced sql.NullInt64
	if err := row.Scan(&t.ID, &t.Name, &t.Content, &typ, &noteID, &lastModified, &lastSynced); err != nil {
		return Tab{}, err
	}
	t.Type = TabType(typ)
	if noteID.Valid {
		t.NoteID = noteID.String
	}
	t.LastModified = fromMillis(lastModified)
	t.LastSynced = fromMillis(lastSynced)
	return t, nil
}

func queryTabs(ctx context.Context, q querier) ([]Tab, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+tabColumns+` FROM tabs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}
	defer rows.Close()

	var tabs []Tab
	for rows.Next() {
		t, err := scanTab(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tab: %w", err)
		}
		tabs = append(tabs, t)
	}
	return tabs, rows.Err()
}

func upsertTab(ctx context.Context, q querier, t Tab) error {
	if t.Type == "" {
		t.Type = TabMarkdown
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO tabs (`+tabColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			content = excluded.content,
			type = excluded.type,
			note_id = excluded.note_id,
			last_modified = excluded.last_modified,
			last_synced = excluded.last_synced
	`, t.ID, t.Name, t.Content, string(t.Type), nullString(t.NoteID), toMillis(t.LastModified), toMillis(t.LastSynced))
	if err != nil {
		return fmt.Errorf("failed to save tab %d: %w", t.ID, err)
	}
	return nil
}

// SaveAllTabs replaces the whole tab collection in one transaction.
// Sync metadata survives the rewrite: LastModified only moves when content
// changed, and NoteID/LastSynced never move backwards behind a stale caller.
func (db *DB) SaveAllTabs(ctx context.Context, tabs []Tab) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := queryTabs(ctx, tx)
	if err != nil {
		return err
	}
	existing := make(map[int64]Tab, len(current))
	for _, t := range current {
		existing[t.ID] = t
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tabs`); err != nil {
		return fmt.Errorf("failed to clear tabs: %w", err)
	}

	now := db.now()
	for _, t := range tabs {
		if prev, ok := existing[t.ID]; ok {
			if prev.Content == t.Content {
				t.LastModified = prev.LastModified
			} else {
				t.LastModified = now
			}
			if t.NoteID == "" {
				t.NoteID = prev.NoteID
			}
			if prev.LastSynced.After(t.LastSynced) {
				t.NoteID = prev.NoteID
				t.LastSynced = prev.LastSynced
			}
		} else if t.LastModified.IsZero() {
			t.LastModified = now
		}
		if err := upsertTab(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tabs: %w", err)
	}
	return nil
}

// LoadAllTabs returns every tab ordered by ID. An empty store yields the
// default untitled tab so there is always something to show.
func (db *DB) LoadAllTabs(ctx context.Context) ([]Tab, error) {
	tabs, err := queryTabs(ctx, db.conn)
	if err != nil {
		return nil, err
	}
	if len(tabs) == 0 {
		return []Tab{DefaultTab()}, nil
	}
	return tabs, nil
}

func (db *DB) GetTab(ctx context.Context, id int64) (*Tab, error) {
	t, err := scanTab(db.conn.QueryRowContext(ctx, `SELECT `+tabColumns+` FROM tabs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tab: %w", err)
	}
	return &t, nil
}

// PutTab writes a single tab exactly as given.
func (db *DB) PutTab(ctx context.Context, t Tab) error {
	return upsertTab(ctx, db.conn, t)
}

// MarkTabSynced sets the note link and sync time for one tab unconditionally.
func (db *DB) MarkTabSynced(ctx context.Context, id int64, noteID string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE tabs SET note_id = ?, last_synced = ? WHERE id = ?
	`, nullString(noteID), toMillis(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark tab %d synced: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("tab %d: %w", id, ErrNotFound)
	}
	return nil
}

// MarkTabPushed records a push of content for one tab. The sync time is
// written only while the stored content still equals what was pushed; an
// edit saved during the upload keeps the tab pending and only gains the
// note link. It reports whether the tab is now in sync.
func (db *DB) MarkTabPushed(ctx context.Context, id int64, noteID, content string, at time.Time) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE tabs SET note_id = ?, last_synced = ? WHERE id = ? AND content = ?
	`, nullString(noteID), toMillis(at), id, content)
	if err != nil {
		return false, fmt.Errorf("failed to mark tab %d pushed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	res, err = db.conn.ExecContext(ctx, `UPDATE tabs SET note_id = ? WHERE id = ?`, nullString(noteID), id)
	if err != nil {
		return false, fmt.Errorf("failed to link tab %d: %w", id, err)
	}
	if n, err = res.RowsAffected(); err != nil {
		return false, err
	}
	if n == 0 {
		return false, fmt.Errorf("tab %d: %w", id, ErrNotFound)
	}
	return false, nil
}

func (db *DB) NextTabID(ctx context.Context) (int64, error) {
	var id int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM tabs`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to compute next tab id: %w", err)
	}
	return id, nil
}

// CloseTab deletes a tab, and its drawing when it is an excalidraw tab.
func (db *DB) CloseTab(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var typ string
	err = tx.QueryRowContext(ctx, `SELECT type FROM tabs WHERE id = ?`, id).Scan(&typ)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up tab %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tabs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tab %d: %w", id, err)
	}
	if TabType(typ) == TabExcalidraw {
		if _, err := tx.ExecContext(ctx, `DELETE FROM drawings WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete drawing %d: %w", id, err)
		}
	}
	return tx.Commit()
}
