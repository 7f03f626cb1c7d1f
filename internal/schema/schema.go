// Package schema applies ordered, versioned migrations to an embedded SQLite
// database. The applied version lives in PRAGMA user_version.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrFutureVersion = errors.New("database schema is newer than this build supports")

// Step upgrades a database from version From to From+1.
// Apply must be safe to run against a database that already has some of its
// objects, since older builds created tables without bumping the version.
type Step struct {
	From  int
	Name  string
	Apply func(ctx context.Context, tx *sql.Tx) error
}

// Version returns the schema version recorded in the database.
func Version(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Migrate runs every step from the stored version up to target, each in its
// own transaction together with the version bump. It returns the version the
// database had before the upgrade.
func Migrate(ctx context.Context, db *sql.DB, steps []Step, target int) (int, error) {
	prev, err := Version(ctx, db)
	if err != nil {
		return 0, err
	}
	if prev > target {
		return prev, fmt.Errorf("%w: stored %d, wanted %d", ErrFutureVersion, prev, target)
	}

	byFrom := make(map[int]Step, len(steps))
	for _, s := range steps {
		byFrom[s.From] = s
	}

	for v := prev; v < target; v++ {
		step, ok := byFrom[v]
		if !ok {
			return prev, fmt.Errorf("no migration from version %d", v)
		}
		if err := apply(ctx, db, step, v+1); err != nil {
			return prev, fmt.Errorf("migration %d->%d (%s): %w", v, v+1, step.Name, err)
		}
	}
	return prev, nil
}

func apply(ctx context.Context, db *sql.DB, step Step, next int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := step.Apply(ctx, tx); err != nil {
		return err
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, next)); err != nil {
		return err
	}
	return tx.Commit()
}

func TableExists(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	return n > 0, err
}

func ColumnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	return n > 0, err
}

// AddColumn adds column to table unless it is already there.
func AddColumn(ctx context.Context, tx *sql.Tx, table, column, decl string) error {
	ok, err := ColumnExists(ctx, tx, table, column)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
	return err
}

// Exec runs statements in order, stopping at the first failure.
func Exec(ctx context.Context, tx *sql.Tx, stmts ...string) error {
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
