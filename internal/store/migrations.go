package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration is one forward-only schema step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the applied and available schema versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// migrations must stay sorted by Version; versions are never reused.
var migrations = []Migration{
	{
		Version:     1,
		Description: "vehicles and asset_groups with ordered pic_ids",
		SQL: `
CREATE TABLE vehicles (
  id TEXT PRIMARY KEY,
  vin TEXT,
  year TEXT,
  make TEXT,
  model TEXT,
  mileage TEXT,
  price TEXT,
  drivetrain TEXT,
  transmission TEXT,
  motor TEXT,
  description TEXT,
  pic_ids TEXT NOT NULL DEFAULT '[]',
  version INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE asset_groups (
  id TEXT PRIMARY KEY,
  name TEXT,
  pic_ids TEXT NOT NULL DEFAULT '[]',
  version INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "list ordering indexes",
		SQL: `
CREATE INDEX idx_vehicles_created_at_desc ON vehicles(created_at DESC);
CREATE INDEX idx_asset_groups_created_at_desc ON asset_groups(created_at DESC);
`,
	},
}

func schemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func pendingAfter(version int) []Migration {
	for i, m := range migrations {
		if m.Version > version {
			return migrations[i:]
		}
	}
	return nil
}

// runMigrations applies each pending migration in its own transaction.
func runMigrations(db *sql.DB) error {
	current, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range pendingAfter(current) {
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m Migration) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err = tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, formatTime(time.Now().UTC())); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// MigrationPlan reports the schema state without applying anything.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	current, err := schemaVersion(db)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{CurrentVersion: current, Pending: []MigrationInfo{}}
	if n := len(migrations); n > 0 {
		status.AvailableVersion = migrations[n-1].Version
	}
	for _, m := range pendingAfter(current) {
		status.Pending = append(status.Pending, MigrationInfo{Version: m.Version, Description: m.Description})
	}
	return status, nil
}
