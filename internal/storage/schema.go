package storage

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// expectedTables lists every table the bootstrapper must be able to query
// before it records the database as initialized. schema_migrations is
// included because losing it would re-run every migration.
var expectedTables = []string{
	"schema_migrations",
	"users",
	"user_profiles",
	"roles",
	"permissions",
	"role_permissions",
	"user_roles",
	"install_locks",
}

// ExpectedTables returns the table names the schema verifier probes.
func ExpectedTables() []string {
	return append([]string(nil), expectedTables...)
}

// RunMigrations executes unapplied SQL migration files from the provided
// filesystem in order. It tracks applied migrations in a schema_migrations
// table so each file runs at most once, which makes schema creation safe
// to re-invoke on every bootstrap attempt.
func (db *DB) RunMigrations(ctx context.Context, migrationsFS fs.FS) error {
	// Ensure the tracking table exists. This is idempotent.
	if _, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("storage: create schema_migrations: %w", err)
	}

	applied, err := db.loadAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("storage: load applied migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("storage: read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		name := entry.Name()
		if applied[name] {
			db.logger.Debug("migration already applied, skipping", "file", name)
			continue
		}

		content, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("storage: read migration %s: %w", name, err)
		}

		db.logger.Info("running migration", "file", name)
		if _, err := db.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("storage: execute migration %s: %w", name, err)
		}

		if _, err := db.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, name,
		); err != nil {
			return fmt.Errorf("storage: record migration %s: %w", name, err)
		}
	}

	return nil
}

// loadAppliedMigrations returns the set of migration filenames already
// recorded in the schema_migrations table.
func (db *DB) loadAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := db.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// VerifyTables positively confirms that every expected table is queryable.
// Migration success alone is not trusted: a half-dropped schema can leave
// schema_migrations claiming work that no longer exists. Returns the names
// of tables that failed the probe.
func (db *DB) VerifyTables(ctx context.Context) ([]string, error) {
	var missing []string
	for _, table := range expectedTables {
		// Identifier comes from the fixed expectedTables list, never from input.
		row := db.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, table))
		var n int64
		if err := row.Scan(&n); err != nil {
			db.logger.Warn("table probe failed", "table", table, "error", err)
			missing = append(missing, table)
		}
	}
	return missing, nil
}

// DropAll removes every managed table. Used only by the forced repair path;
// CASCADE covers any dependent objects a partial install left behind.
func (db *DB) DropAll(ctx context.Context) error {
	// Reverse dependency order so plain DROP would also work.
	tables := append([]string(nil), expectedTables...)
	for i, j := 0, len(tables)-1; i < j; i, j = i+1, j-1 {
		tables[i], tables[j] = tables[j], tables[i]
	}
	for _, table := range tables {
		if _, err := db.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, table)); err != nil {
			return fmt.Errorf("storage: drop %s: %w", table, err)
		}
	}
	db.logger.Warn("dropped all managed tables")
	return nil
}
