package db

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Migrate applies migrations and optional seed files found in the repository.
// It creates a `schema_migrations` table to track applied migrations and applies
// any SQL files in `db/migrations/` that have not yet been recorded. Seed files
// in seedFS are applied idempotently.
func Migrate(ctx context.Context, d *DB, migrationFS embed.FS, seedFS embed.FS) error {
	// ensure migrations table exists
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	// embedded migrations are provided under "migrations/..." in the top-level db package
	migDir := "migrations"

	entries, err := fs.ReadDir(migrationFS, migDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// collect .sql files and sort
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	for _, fname := range files {
		// use filename (without extension) as migration version key
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		row := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			// already applied
			continue
		}

		p := path.Join(migDir, fname)
		b, err := fs.ReadFile(migrationFS, p)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec migration %s: %w", fname, err)
		}

		if _, err := d.Exec(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, strftime('%s','now'))`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
	}

	if err := seedTasks(ctx, d, seedFS); err != nil {
		return err
	}
	return seedTrainingTypes(ctx, d, seedFS)
}

type seedTask struct {
	Order         int    `json:"order"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	RequiresScore bool   `json:"requires_score"`
	MinimumScore  string `json:"minimum_score"`
}

func seedTasks(ctx context.Context, d *DB, seedFS embed.FS) error {
	b, err := fs.ReadFile(seedFS, path.Join("seed", "tasks_v1.json"))
	if err != nil {
		// seed file is optional
		return nil
	}
	var tasks []seedTask
	if err := json.Unmarshal(b, &tasks); err != nil {
		return fmt.Errorf("parse task seed: %w", err)
	}
	for _, t := range tasks {
		var minScore any
		if t.MinimumScore != "" {
			minScore = t.MinimumScore
		}
		if _, err := d.Exec(ctx, `INSERT OR IGNORE INTO tasks (display_order, name, description, category, requires_score, minimum_score, is_active) VALUES (?, ?, ?, ?, ?, ?, 1)`,
			t.Order, t.Name, t.Description, t.Category, t.RequiresScore, minScore); err != nil {
			return fmt.Errorf("seed task %q: %w", t.Name, err)
		}
	}
	return nil
}

type seedTrainingType struct {
	Name             string `json:"name"`
	Order            int    `json:"order"`
	AllowsCustomType bool   `json:"allows_custom_type"`
}

func seedTrainingTypes(ctx context.Context, d *DB, seedFS embed.FS) error {
	b, err := fs.ReadFile(seedFS, path.Join("seed", "training_types_v1.json"))
	if err != nil {
		return nil
	}
	var types []seedTrainingType
	if err := json.Unmarshal(b, &types); err != nil {
		return fmt.Errorf("parse training type seed: %w", err)
	}
	for _, tt := range types {
		if _, err := d.Exec(ctx, `INSERT OR IGNORE INTO advanced_training_types (name, display_order, allows_custom_type, is_active) VALUES (?, ?, ?, 1)`,
			tt.Name, tt.Order, tt.AllowsCustomType); err != nil {
			return fmt.Errorf("seed training type %q: %w", tt.Name, err)
		}
	}
	return nil
}
