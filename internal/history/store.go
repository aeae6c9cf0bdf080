// Package history provides persistent snapshot storage using SQLite.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/ppiankov/pdbwatch/internal/store"
)

// SnapshotSummary is a compact representation of a historical snapshot.
type SnapshotSummary struct {
	At               time.Time `json:"at"`
	ID               int64     `json:"id"`
	Total            int       `json:"total"`
	ProtectedCount   int       `json:"protectedCount"`
	UnprotectedCount int       `json:"unprotectedCount"`
	WarningCount     int       `json:"warningCount"`
}

// TrendPoint represents a single data point for one workload over time.
type TrendPoint struct {
	At            time.Time `json:"at"`
	Status        string    `json:"status"`
	MatchedPolicy string    `json:"matchedPolicy,omitempty"`
}

// Store persists snapshots and workload entries to SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for tests).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists a snapshot and its workload entries to the database.
func (s *Store) Save(snap store.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // commit below; rollback is no-op after commit

	result, err := tx.Exec(
		"INSERT INTO snapshots (at, total, protected_count, unprotected_count, warning_count) VALUES (?, ?, ?, ?, ?)",
		snap.At, snap.Summary.Total, snap.Summary.Protected, snap.Summary.Unprotected, len(snap.Warnings),
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	snapID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting snapshot id: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO entries (snapshot_id, namespace, name, kind, status, matched_policy, selector_key, replicas) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("preparing entry insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // statement lifetime bounded by tx

	insert := func(entries []store.Entry) error {
		for i := range entries {
			e := &entries[i]
			var replicas any
			if e.Workload.Replicas != nil {
				replicas = *e.Workload.Replicas
			}
			_, err := stmt.Exec(snapID, e.Workload.Namespace, e.Workload.Name, e.Workload.Kind, e.Status, e.MatchedPolicy, e.SelectorKey, replicas)
			if err != nil {
				return fmt.Errorf("inserting entry: %w", err)
			}
		}
		return nil
	}
	if err := insert(snap.Protected); err != nil {
		return err
	}
	if err := insert(snap.Unprotected); err != nil {
		return err
	}

	return tx.Commit()
}

// List returns the most recent snapshot summaries, ordered newest first.
func (s *Store) List(limit int) ([]SnapshotSummary, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		"SELECT id, at, total, protected_count, unprotected_count, warning_count FROM snapshots ORDER BY at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	var summaries []SnapshotSummary
	for rows.Next() {
		var s SnapshotSummary
		if err := rows.Scan(&s.ID, &s.At, &s.Total, &s.ProtectedCount, &s.UnprotectedCount, &s.WarningCount); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Trend returns coverage data points for a specific workload over time.
func (s *Store) Trend(name, ns, kind string, limit int) ([]TrendPoint, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT s.at, e.status, e.matched_policy
		FROM entries e
		JOIN snapshots s ON s.id = e.snapshot_id
		WHERE e.name = ? AND e.namespace = ? AND e.kind = ?
		ORDER BY s.at DESC
		LIMIT ?`,
		name, ns, kind, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying trend: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.At, &p.Status, &p.MatchedPolicy); err != nil {
			return nil, fmt.Errorf("scanning trend point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// GetLatest returns the most recent snapshot with its entries, or nil if no snapshots exist.
func (s *Store) GetLatest() (*store.Snapshot, error) {
	var snapID int64
	var at time.Time
	err := s.db.QueryRow("SELECT id, at FROM snapshots ORDER BY at DESC LIMIT 1").Scan(&snapID, &at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT namespace, name, kind, status, matched_policy, selector_key, replicas FROM entries WHERE snapshot_id = ?",
		snapID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	snap := &store.Snapshot{At: at}
	for rows.Next() {
		var e store.Entry
		var kind, status string
		var replicas sql.NullInt64
		if err := rows.Scan(&e.Workload.Namespace, &e.Workload.Name, &kind, &status, &e.MatchedPolicy, &e.SelectorKey, &replicas); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Workload.Kind = store.WorkloadKind(kind)
		e.Status = store.CoverageStatus(status)
		if replicas.Valid {
			n := int32(replicas.Int64) //nolint:gosec // replica counts fit in int32
			e.Workload.Replicas = &n
		}
		switch e.Status {
		case store.StatusProtected:
			snap.Protected = append(snap.Protected, e)
		default:
			snap.Unprotected = append(snap.Unprotected, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	snap.Summary = store.Summary{
		Protected:   len(snap.Protected),
		Unprotected: len(snap.Unprotected),
		Total:       len(snap.Protected) + len(snap.Unprotected),
	}
	return snap, nil
}
