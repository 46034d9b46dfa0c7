// Package history records one row per ingestion cycle so operators can see
// what each scheduled or manual run did.
package history

import (
	"context"
	"strings"
	"time"
)

// Run modes.
const (
	ModeIngest   = "ingest"
	ModeBackfill = "backfill"
)

// Run is one finished cycle for one creator.
type Run struct {
	ID          int64     `json:"id"`
	Creator     string    `json:"creator"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Fetched     int       `json:"fetched"`
	New         int       `json:"new"`
	Ingested    int       `json:"ingested"`
	Transcribed int       `json:"transcribed"`
	Failed      int       `json:"failed"`
	Error       string    `json:"error,omitempty"`
}

// Duration is the wall time of the cycle.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Recorder persists and lists runs. Implementations are safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, r Run) error
	// Recent returns up to limit runs, newest first. creator "" means all.
	Recent(ctx context.Context, creator string, limit int) ([]Run, error)
	Close() error
}

// Open picks PostgreSQL when databaseURL is set, SQLite at sqlitePath otherwise.
func Open(ctx context.Context, databaseURL, sqlitePath string) (Recorder, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return OpenPostgres(ctx, databaseURL)
	}
	return OpenSQLite(sqlitePath)
}

const defaultLimit = 20

func normLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultLimit
	}
	return limit
}
