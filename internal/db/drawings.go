package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

func (db *DB) SaveDrawing(ctx context.Context, d Drawing) error {
	files, err := json.Marshal(d.Files)
	if err != nil {
		return fmt.Errorf("failed to marshal drawing files: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO drawings (id, elements, app_state, files)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			elements = excluded.elements,
			app_state = excluded.app_state,
			files = excluded.files
	`, d.ID, rawOrNull(d.Elements), rawOrNull(d.AppState), string(files))
	if err != nil {
		return fmt.Errorf("failed to save drawing %d: %w", d.ID, err)
	}
	return nil
}

func (db *DB) LoadDrawing(ctx context.Context, id int64) (*Drawing, error) {
	var d Drawing
	var elements, appState, files sql.NullString
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, elements, app_state, files FROM drawings WHERE id = ?
	`, id).Scan(&d.ID, &elements, &appState, &files)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load drawing: %w", err)
	}

	if elements.Valid {
		d.Elements = json.RawMessage(elements.String)
	}
	if appState.Valid {
		d.AppState = json.RawMessage(appState.String)
	}
	if files.Valid && files.String != "" && files.String != "null" {
		if err := json.Unmarshal([]byte(files.String), &d.Files); err != nil {
			return nil, fmt.Errorf("failed to decode drawing files: %w", err)
		}
	}
	return &d, nil
}

func (db *DB) DeleteDrawing(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM drawings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete drawing: %w", err)
	}
	return nil
}

func rawOrNull(m json.RawMessage) sql.NullString {
	if len(m) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(m), Valid: true}
}
