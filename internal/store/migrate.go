package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migrations are applied in order and tracked in schema_migrations. Each is
// a single statement in the dialect subset postgres and sqlite share.
var migrations = []struct {
	version string
	stmt    string
}{
	{
		version: "0001_frames",
		stmt: `
			CREATE TABLE IF NOT EXISTS frames (
				region TEXT NOT NULL,
				sub TEXT NOT NULL,
				display_count INTEGER NOT NULL DEFAULT 0,
				extra_field_defs TEXT NOT NULL DEFAULT '[]',
				extra_json TEXT NOT NULL DEFAULT '{}',
				last_save TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (region, sub)
			)
		`,
	},
	{
		version: "0002_ports",
		stmt: `
			CREATE TABLE IF NOT EXISTS ports (
				region TEXT NOT NULL,
				sub TEXT NOT NULL,
				position INTEGER NOT NULL,
				label TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'INACTIVE',
				fiber_type TEXT NOT NULL DEFAULT '',
				connector_type TEXT NOT NULL DEFAULT '',
				destination TEXT NOT NULL DEFAULT '',
				otdr_distance TEXT NOT NULL DEFAULT '',
				otdr_distance_value TEXT NOT NULL DEFAULT '',
				last_maintained TEXT NOT NULL DEFAULT '',
				branching_joint TEXT NOT NULL DEFAULT '',
				cx_location TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				custom_fields TEXT NOT NULL DEFAULT '{}',
				PRIMARY KEY (region, sub, position),
				FOREIGN KEY (region, sub) REFERENCES frames(region, sub) ON DELETE CASCADE
			)
		`,
	},
	{
		version: "0003_rosters",
		stmt: `
			CREATE TABLE IF NOT EXISTS rosters (
				region TEXT NOT NULL,
				sub TEXT NOT NULL,
				sort_order INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (region, sub)
			)
		`,
	},
	{
		version: "0004_rosters_region_idx",
		stmt:    `CREATE INDEX IF NOT EXISTS idx_rosters_region ON rosters(region, sort_order)`,
	},
}

func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return err
	}

	for _, migration := range migrations {
		if migrated, err := isMigrated(ctx, db, migration.version); err != nil {
			return err
		} else if migrated {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", migration.version, err)
		}

		if _, err := tx.ExecContext(ctx, migration.stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", migration.version, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES($1, $2)`,
			migration.version, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", migration.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", migration.version, err)
		}
	}

	return nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func isMigrated(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return exists, nil
}
