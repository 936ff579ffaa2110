package sqlite

import (
	"fmt"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "entries: tiered memory records",
		SQL: `
CREATE TABLE entries (
    id              TEXT PRIMARY KEY,
    content         TEXT NOT NULL,
    metadata        TEXT NOT NULL DEFAULT '{}',
    importance      REAL NOT NULL DEFAULT 0,
    stage           TEXT NOT NULL CHECK (stage IN ('working', 'episodic', 'semantic', 'persistent')),
    consolidated_to TEXT,
    created_at      INTEGER NOT NULL,
    last_accessed   INTEGER NOT NULL,
    access_count    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_entries_importance   ON entries(importance DESC);
CREATE INDEX idx_entries_created      ON entries(created_at ASC);
CREATE INDEX idx_entries_consolidated ON entries(consolidated_to);
`,
	},
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
