package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

const migrationTable = "schema_migrations"

// ApplyMigrations executes the .sql files found at the root of migrationFS in
// lexical order, recording each applied file so it runs at most once.
// It returns the names of the files applied by this call.
func ApplyMigrations(ctx context.Context, db *sqlx.DB, migrationFS fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`, migrationTable)
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	applied := make([]string, 0, len(files))
	for _, file := range files {
		var exists bool
		checkSQL := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE name = $1)`, migrationTable)
		if err := db.GetContext(ctx, &exists, checkSQL, file); err != nil {
			return nil, fmt.Errorf("check migration %s: %w", file, err)
		}
		if exists {
			continue
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := ExtractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		err = WithTx(ctx, db, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, upSQL); err != nil {
				return fmt.Errorf("exec migration %s: %w", file, err)
			}
			recordSQL := fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1)`, migrationTable)
			if _, err := tx.ExecContext(ctx, recordSQL, file); err != nil {
				return fmt.Errorf("record migration %s: %w", file, err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		applied = append(applied, file)
	}
	return applied, nil
}

// ExtractUpMigration returns the SQL in the "-- +migrate Up" section.
func ExtractUpMigration(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	upIdx := strings.Index(content, up)
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, down)
	if downIdx == -1 {
		return content[upIdx+len(up):]
	}
	return content[upIdx+len(up) : downIdx]
}
