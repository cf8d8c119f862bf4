// Package sqlitekv provides an optional, durable backing store for the
// performance log ring: the same append/list/clear shape the in-memory
// timing.Store's ring exposes, persisted as rows in a pure-Go SQLite
// database (the ring itself is never written to disk). It is an additional
// persistence path, not a replacement — the in-memory ring remains authoritative for a
// running process; this store only survives a restart.
package sqlitekv

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO required

	"github.com/oraclab/oraccore/internal/timing"
)

// DB wraps a SQLite connection holding the performance_log table.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/performance_log.db,
// enabling WAL mode for crash-safe concurrent access, and runs migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("sqlitekv: create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "performance_log.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: open: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("sqlitekv: ping: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("sqlitekv: migrate: %w", err)
	}
	return d, nil
}

// Close shuts down the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	_, err := d.db.Exec(`CREATE TABLE IF NOT EXISTS performance_log (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		command_id  TEXT NOT NULL,
		topic_id    TEXT NOT NULL,
		completed_at INTEGER NOT NULL,
		payload     TEXT NOT NULL
	)`)
	return err
}

// Append persists one completed [timing.Command] as a new row.
func (d *DB) Append(cmd timing.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("sqlitekv: marshal command: %w", err)
	}
	_, err = d.db.Exec(
		`INSERT INTO performance_log (command_id, topic_id, completed_at, payload) VALUES (?, ?, ?, ?)`,
		cmd.ID, cmd.TopicID, cmd.Stages.CompletedAt.UnixMilli(), string(payload),
	)
	return err
}

// List returns up to limit of the most recently completed commands,
// most-recent-first. limit <= 0 means unbounded.
func (d *DB) List(limit int) ([]timing.Command, error) {
	query := `SELECT payload FROM performance_log ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []timing.Command
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var cmd timing.Command
		if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
			return nil, fmt.Errorf("sqlitekv: unmarshal command: %w", err)
		}
		out = append(out, cmd)
	}
	return out, rows.Err()
}

// Clear deletes every row, returning the number removed.
func (d *DB) Clear() (int, error) {
	result, err := d.db.Exec(`DELETE FROM performance_log`)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// PruneOlderThan deletes rows completed before cutoff, returning the number
// removed. The cron job that trims the in-memory ring does not call it.
func (d *DB) PruneOlderThan(cutoff time.Time) (int, error) {
	result, err := d.db.Exec(`DELETE FROM performance_log WHERE completed_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}
