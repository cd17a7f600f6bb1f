// Package tablestore persists tables as single-table SQLite files.
package tablestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"mmproteo/internal/fileutil"
	"mmproteo/internal/table"
)

// TableName is the name of the table holding the rows inside every file.
const TableName = "data"

// Write stores t at path. The file is built next to path and renamed into
// place, so readers never observe a partial file.
func Write(ctx context.Context, path string, t *table.Table) error {
	if t == nil || len(t.Columns) == 0 {
		return errors.New("tablestore: refusing to write a table without columns")
	}
	tmp, err := fileutil.TempPath(path)
	if err != nil {
		return err
	}
	if err := writeFile(ctx, tmp, t); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func writeFile(ctx context.Context, path string, t *table.Table) error {
	db, err := open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	types := columnTypes(t)
	defs := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = quote(c) + " " + types[i]
		marks[i] = "?"
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quote(TableName), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quote(TableName), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for _, row := range t.Rows {
		for i, c := range t.Columns {
			args[i] = row[c]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Read loads the table stored at path.
func Read(ctx context.Context, path string) (*table.Table, error) {
	if !fileutil.FileExists(path) {
		return nil, fmt.Errorf("tablestore: %s: %w", path, os.ErrNotExist)
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", quote(TableName)))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := table.New(columns...)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(table.Row, len(columns))
		for i, c := range columns {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=OFF",
		"PRAGMA synchronous=OFF",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	return db, nil
}

// columnTypes derives a SQLite affinity per column from its first non-nil value.
func columnTypes(t *table.Table) []string {
	types := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		types[i] = "TEXT"
		for _, row := range t.Rows {
			v := row[c]
			if v == nil {
				continue
			}
			switch v.(type) {
			case int64, int, bool:
				types[i] = "INTEGER"
			case float64:
				types[i] = "REAL"
			case []byte:
				types[i] = "BLOB"
			}
			break
		}
	}
	return types
}

func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
