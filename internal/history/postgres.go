package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores runs in a shared PostgreSQL database.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a pgx pool and ensures the runs table exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS cortex_runs (
		id          BIGSERIAL PRIMARY KEY,
		creator     TEXT NOT NULL,
		mode        TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		fetched     INTEGER NOT NULL DEFAULT 0,
		new         INTEGER NOT NULL DEFAULT 0,
		ingested    INTEGER NOT NULL DEFAULT 0,
		transcribed INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS cortex_runs_creator_started ON cortex_runs (creator, started_at DESC)`)
	return err
}

// Record inserts one run.
func (p *Postgres) Record(ctx context.Context, r Run) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO cortex_runs (creator, mode, started_at, finished_at, fetched, new, ingested, transcribed, failed, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.Creator, r.Mode, r.StartedAt, r.FinishedAt,
		r.Fetched, r.New, r.Ingested, r.Transcribed, r.Failed, r.Error,
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// Recent lists the newest runs.
func (p *Postgres) Recent(ctx context.Context, creator string, limit int) ([]Run, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, creator, mode, started_at, finished_at, fetched, new, ingested, transcribed, failed, error
		 FROM cortex_runs
		 WHERE $1 = '' OR creator = $1
		 ORDER BY started_at DESC, id DESC
		 LIMIT $2`, creator, normLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Creator, &r.Mode, &r.StartedAt, &r.FinishedAt,
			&r.Fetched, &r.New, &r.Ingested, &r.Transcribed, &r.Failed, &r.Error); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
