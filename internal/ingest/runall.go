package ingest

import (
	"context"
	"log/slog"
)

// RunAll runs one ingestion cycle for every enabled creator, one after
// another. A creator's failure is logged and reported and never blocks the next.
func (e *Engine) RunAll(ctx context.Context, opts Options) []CycleReport {
	return e.each(ctx, "ingest", func(ctx context.Context, name string) (CycleReport, error) {
		c, err := e.Registry.Get(name)
		if err != nil {
			return CycleReport{Creator: name, Err: err}, err
		}
		return e.ProcessCreator(ctx, c, opts)
	})
}

// BackfillAll runs Backfill for every enabled creator, one after another.
func (e *Engine) BackfillAll(ctx context.Context, opts Options) []CycleReport {
	return e.each(ctx, "backfill", func(ctx context.Context, name string) (CycleReport, error) {
		c, err := e.Registry.Get(name)
		if err != nil {
			return CycleReport{Creator: name, Err: err}, err
		}
		return e.Backfill(ctx, c, opts)
	})
}

// RunCreator runs one ingestion cycle for a named creator, enabled or not.
func (e *Engine) RunCreator(ctx context.Context, name string, opts Options) (CycleReport, error) {
	c, err := e.Registry.Get(name)
	if err != nil {
		return CycleReport{Creator: name, Err: err}, err
	}
	return e.ProcessCreator(ctx, c, opts)
}

func (e *Engine) each(ctx context.Context, mode string, fn func(context.Context, string) (CycleReport, error)) []CycleReport {
	if err := e.Registry.Reload(); err != nil {
		slog.Warn("ingest: registry reload failed, using cached list", slog.Any("error", err))
	}
	creators := e.Registry.ListEnabled()
	reports := make([]CycleReport, 0, len(creators))
	for _, c := range creators {
		if ctx.Err() != nil {
			break
		}
		r, err := fn(ctx, c.Name)
		if err != nil {
			slog.Error("ingest: creator failed",
				slog.String("mode", mode),
				slog.String("creator", c.Name),
				slog.Any("error", err),
			)
		} else {
			slog.Info("ingest: creator done",
				slog.String("mode", mode),
				slog.String("creator", c.Name),
				slog.Int("new", r.New),
				slog.Int("ingested", r.Ingested),
				slog.Int("transcribed", r.Transcribed),
				slog.Int("failed", r.Failed),
			)
		}
		reports = append(reports, r)
	}
	return reports
}
