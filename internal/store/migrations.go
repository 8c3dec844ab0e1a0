package store

import (
	"database/sql"
	"fmt"
	"time"

	"expectkit/internal/logging"
)

// Schema versions:
// v1: runs and results tables
// v2: runs.source and results.duration_ms
const CurrentSchemaVersion = 2

// Migration adds a column to an existing table.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations bring v1 databases up to date. Fresh databases
// already have every column.
var pendingMigrations = []Migration{
	{"runs", "source", "TEXT DEFAULT ''"},
	{"results", "duration_ms", "INTEGER DEFAULT 0"},
}

// RunMigrations applies schema migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	applied, skipped := 0, 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			logging.StoreDebug("Table missing, skipping migration: %s.%s", m.Table, m.Column)
			skipped++
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			skipped++
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		logging.StoreDebug("Executing migration: %s", query)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.Table, m.Column, err)
		}
		logging.Store("Migration applied: added %s.%s", m.Table, m.Column)
		applied++
	}

	logging.Store("Schema migrations complete: applied=%d, skipped=%d", applied, skipped)
	return nil
}

// recordSchemaVersion notes CurrentSchemaVersion once per upgrade.
func recordSchemaVersion(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
		version INTEGER NOT NULL,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_versions: %w", err)
	}
	var recorded sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_versions`).Scan(&recorded); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if recorded.Valid && recorded.Int64 >= CurrentSchemaVersion {
		return nil
	}
	if _, err := db.Exec(`INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)`,
		CurrentSchemaVersion, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the recorded schema version, inferring it from
// the table layout when nothing was recorded.
func GetSchemaVersion(db *sql.DB) int {
	if tableExists(db, "schema_versions") {
		var version sql.NullInt64
		if err := db.QueryRow(`SELECT MAX(version) FROM schema_versions`).Scan(&version); err == nil && version.Valid {
			return int(version.Int64)
		}
	}
	switch {
	case !tableExists(db, "runs"):
		return 0
	case columnExists(db, "runs", "source") && columnExists(db, "results", "duration_ms"):
		return 2
	default:
		return 1
	}
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var count int
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		logging.StoreDebug("Table existence check failed for %s: %v", table, err)
		return false
	}
	return count > 0
}
