package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// fixed width so text ordering matches time ordering
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// SQLite stores runs in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the history database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("history: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		creator     TEXT NOT NULL,
		mode        TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		fetched     INTEGER NOT NULL DEFAULT 0,
		new         INTEGER NOT NULL DEFAULT 0,
		ingested    INTEGER NOT NULL DEFAULT 0,
		transcribed INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		error       TEXT
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS runs_creator_started ON runs (creator, started_at)`)
	return err
}

// Record inserts one run.
func (s *SQLite) Record(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (creator, mode, started_at, finished_at, fetched, new, ingested, transcribed, failed, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Creator, r.Mode,
		r.StartedAt.UTC().Format(sqliteTimeLayout), r.FinishedAt.UTC().Format(sqliteTimeLayout),
		r.Fetched, r.New, r.Ingested, r.Transcribed, r.Failed, nullString(r.Error),
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// Recent lists the newest runs.
func (s *SQLite) Recent(ctx context.Context, creator string, limit int) ([]Run, error) {
	q := `SELECT id, creator, mode, started_at, finished_at, fetched, new, ingested, transcribed, failed, error FROM runs`
	var args []any
	if creator != "" {
		q += ` WHERE creator = ?`
		args = append(args, creator)
	}
	q += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, normLimit(limit))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		var errText sql.NullString
		if err := rows.Scan(&r.ID, &r.Creator, &r.Mode, &started, &finished,
			&r.Fetched, &r.New, &r.Ingested, &r.Transcribed, &r.Failed, &errText); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		r.StartedAt, _ = time.Parse(sqliteTimeLayout, started)
		r.FinishedAt, _ = time.Parse(sqliteTimeLayout, finished)
		r.Error = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
