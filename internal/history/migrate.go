package history

import (
	"database/sql"
	"strings"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    at                DATETIME NOT NULL,
    total             INTEGER NOT NULL DEFAULT 0,
    protected_count   INTEGER NOT NULL DEFAULT 0,
    unprotected_count INTEGER NOT NULL DEFAULT 0,
    warning_count     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS entries (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    snapshot_id    INTEGER NOT NULL REFERENCES snapshots(id),
    namespace      TEXT NOT NULL DEFAULT '',
    name           TEXT NOT NULL DEFAULT '',
    kind           TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT '',
    matched_policy TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_entries_snapshot ON entries(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_entries_trend ON entries(namespace, name, kind);
`

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	// v2: add selector_key and replicas columns for richer entries (idempotent)
	for _, stmt := range []string{
		"ALTER TABLE entries ADD COLUMN selector_key TEXT DEFAULT ''",
		"ALTER TABLE entries ADD COLUMN replicas INTEGER",
	} {
		if _, err := db.Exec(stmt); err != nil && !isDuplicateColumn(err) {
			return err
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	// SQLite returns "duplicate column name" when the column already exists.
	msg := err.Error()
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}
