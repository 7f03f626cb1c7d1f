package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
)

const (
	metaProjects   = "projects"
	metaLegacyTodo = "todoData"
)

func upsertTask(ctx context.Context, q querier, t Task) error {
	if t.List == "" {
		t.List = ListInbox
	}
	urls, err := json.Marshal(t.URLs)
	if err != nil {
		return fmt.Errorf("failed to marshal task urls: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO todos (id, text, completed, list, due_date, notes, urls)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			completed = excluded.completed,
			list = excluded.list,
			due_date = excluded.due_date,
			notes = excluded.notes,
			urls = excluded.urls
	`, t.ID, t.Text, t.Completed, t.List, nullString(t.DueDate), nullString(t.Notes), string(urls))
	if err != nil {
		return fmt.Errorf("failed to save task %d: %w", t.ID, err)
	}
	return nil
}

func (db *DB) SaveTask(ctx context.Context, t Task) error {
	return upsertTask(ctx, db.conn, t)
}

// SaveTasks upserts a batch in one transaction.
func (db *DB) SaveTasks(ctx context.Context, tasks []Task) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tasks {
		if err := upsertTask(ctx, tx, t); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) DeleteTask(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// SaveProjects replaces the list of known project names.
func (db *DB) SaveProjects(ctx context.Context, names []string) error {
	return saveProjects(ctx, db.conn, names)
}

func saveProjects(ctx context.Context, q querier, names []string) error {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO todo_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaProjects, string(data))
	if err != nil {
		return fmt.Errorf("failed to save projects: %w", err)
	}
	return nil
}

func loadProjects(ctx context.Context, q querier) ([]string, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM todo_meta WHERE key = ?`, metaProjects).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return names, nil
}

// LoadAllTodoData reads every task and groups it by list. A legacy
// single-blob record, if present, is fanned out into task rows first.
func (db *DB) LoadAllTodoData(ctx context.Context) (*TodoData, error) {
	if err := db.migrateLegacyTodos(ctx); err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, text, completed, list, due_date, notes, urls FROM todos ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	data := &TodoData{
		Inbox:    []Task{},
		Archive:  []Task{},
		Projects: map[string][]Task{},
	}
	for rows.Next() {
		var t Task
		var dueDate, notes, urls sql.NullString
		if err := rows.Scan(&t.ID, &t.Text, &t.Completed, &t.List, &dueDate, &notes, &urls); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.DueDate = dueDate.String
		t.Notes = notes.String
		if urls.Valid && urls.String != "" {
			if err := json.Unmarshal([]byte(urls.String), &t.URLs); err != nil {
				return nil, fmt.Errorf("failed to decode urls of task %d: %w", t.ID, err)
			}
		}
		if t.URLs == nil {
			t.URLs = []string{}
		}

		switch t.List {
		case ListInbox:
			data.Inbox = append(data.Inbox, t)
		case ListArchive:
			data.Archive = append(data.Archive, t)
		default:
			data.Projects[t.List] = append(data.Projects[t.List], t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	names, err := loadProjects(ctx, db.conn)
	if err != nil {
		return nil, err
	}
	data.ProjectNames = mergeNames(names, data.Projects)
	for _, name := range data.ProjectNames {
		if _, ok := data.Projects[name]; !ok {
			data.Projects[name] = []Task{}
		}
	}
	return data, nil
}

func (db *DB) migrateLegacyTodos(ctx context.Context) error {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM todo_meta WHERE key = ?`, metaLegacyTodo).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check legacy todos: %w", err)
	}

	var legacy legacyTodoData
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return fmt.Errorf("failed to decode legacy todos: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	put := func(list string, tasks []Task) error {
		for _, t := range tasks {
			t.List = list
			if err := upsertTask(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	}
	if err := put(ListInbox, legacy.Inbox); err != nil {
		return err
	}
	if err := put(ListArchive, legacy.Archive); err != nil {
		return err
	}
	for name, tasks := range legacy.Projects {
		if err := put(name, tasks); err != nil {
			return err
		}
	}

	names, err := loadProjects(ctx, tx)
	if err != nil {
		return err
	}
	if err := saveProjects(ctx, tx, mergeNames(names, legacy.Projects)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM todo_meta WHERE key = ?`, metaLegacyTodo); err != nil {
		return fmt.Errorf("failed to remove legacy todos: %w", err)
	}
	return tx.Commit()
}

// mergeNames returns names followed by any project keys it is missing, with
// the extra keys sorted so the result is stable.
func mergeNames(names []string, projects map[string][]Task) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names)+len(projects))
	for _, n := range names {
		if n == ListInbox || n == ListArchive || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	var extra []string
	for n := range projects {
		if !seen[n] && n != ListInbox && n != ListArchive {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
