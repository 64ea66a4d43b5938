package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS processed_ids (
	seq INTEGER PRIMARY KEY,
	id  TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS sync_meta (
	singleton   INTEGER PRIMARY KEY CHECK (singleton = 1),
	total_notes INTEGER NOT NULL DEFAULT 0,
	last_run    TEXT NOT NULL DEFAULT ''
);
`

// SQLiteBackend stores the snapshot in a SQLite database. Every Save rewrites
// the whole snapshot inside one transaction.
type SQLiteBackend struct {
	path string

	once    sync.Once
	conn    *sql.DB
	openErr error
}

// NewSQLiteBackend returns a backend for the database at path. The database
// is opened lazily on first use.
func NewSQLiteBackend(path string) *SQLiteBackend {
	return &SQLiteBackend{path: path}
}

func (b *SQLiteBackend) db() (*sql.DB, error) {
	b.once.Do(func() {
		if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
			b.openErr = fmt.Errorf("state: mkdir: %w", err)
			return
		}
		conn, err := sql.Open("sqlite", b.path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err != nil {
			b.openErr = fmt.Errorf("state: open db: %w", err)
			return
		}
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec(sqliteSchema); err != nil {
			conn.Close()
			b.openErr = fmt.Errorf("state: apply schema: %w", err)
			return
		}
		b.conn = conn
	})
	return b.conn, b.openErr
}

// Load reads the snapshot; an empty database yields nil
func (b *SQLiteBackend) Load() (*Snapshot, error) {
	conn, err := b.db()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{ProcessedIDs: []string{}}
	row := conn.QueryRow(`SELECT total_notes, last_run FROM sync_meta WHERE singleton = 1`)
	switch err := row.Scan(&snap.TotalNotes, &snap.LastRun); err {
	case nil:
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, fmt.Errorf("state: read meta: %w", err)
	}

	rows, err := conn.Query(`SELECT id FROM processed_ids ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("state: read ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("state: scan id: %w", err)
		}
		snap.ProcessedIDs = append(snap.ProcessedIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: iterate ids: %w", err)
	}
	return snap, nil
}

// Save replaces the stored snapshot
func (b *SQLiteBackend) Save(snap *Snapshot) error {
	conn, err := b.db()
	if err != nil {
		return err
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("state: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM processed_ids`); err != nil {
		return fmt.Errorf("state: clear ids: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO processed_ids (seq, id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("state: prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, id := range snap.ProcessedIDs {
		if _, err := stmt.Exec(i, id); err != nil {
			return fmt.Errorf("state: insert id: %w", err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO sync_meta (singleton, total_notes, last_run) VALUES (1, ?, ?)
		ON CONFLICT(singleton) DO UPDATE SET total_notes = excluded.total_notes, last_run = excluded.last_run`,
		snap.TotalNotes, snap.LastRun); err != nil {
		return fmt.Errorf("state: write meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// Close releases the database handle
func (b *SQLiteBackend) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
