package ingest

import (
	"context"
	"fmt"
	"os"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/anatolykoptev/go_cortex/internal/history"
	"github.com/anatolykoptev/go_cortex/internal/registry"
	"github.com/anatolykoptev/go_cortex/internal/store"
)

// Backfill transcribes stored videos that have no transcript yet. Nothing is
// downloaded. Metadata is rewritten with transcribed=true, or a minimal
// record is written when none exists.
func (e *Engine) Backfill(ctx context.Context, c registry.Creator, opts Options) (report CycleReport, err error) {
	report = CycleReport{Creator: c.Name, Mode: history.ModeBackfill, StartedAt: e.clock()}
	defer e.finish(ctx, &report)

	if e.Transcriber == nil {
		report.Err = fmt.Errorf("backfill %s: no transcriber configured: %w", c.Name, engine.ErrConfiguration)
		return report, report.Err
	}
	st, err := store.Open(e.Registry.Dir(c))
	if err != nil {
		report.Err = err
		return report, err
	}
	pending, err := st.PendingTranscripts()
	if err != nil {
		report.Err = err
		return report, err
	}
	report.Fetched = len(pending)
	report.New = len(pending)

	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		o := e.backfillOne(ctx, st, c, p)
		o.Creator = c.Name
		report.add(o)
		e.emit(opts, o)
	}

	e.touch(c.Name)
	return report, nil
}

func (e *Engine) backfillOne(ctx context.Context, st *store.Store, c registry.Creator, p store.Pending) Outcome {
	o := Outcome{VideoID: p.VideoID, Title: p.VideoID}

	meta, ok, err := st.Metadata(p.VideoID)
	if err != nil || !ok {
		meta = engine.VideoMetadata{
			VideoID:    p.VideoID,
			CreateTime: p.CreateTime,
			Platform:   c.Platform,
		}
		if info, statErr := os.Stat(p.Path); statErr == nil {
			meta.FileSize = info.Size()
		}
	}
	if meta.Title != "" {
		o.Title = meta.Title
	}

	n, err := e.transcribeInto(ctx, st, p.VideoID, p.Path, p.CreateTime)
	if err != nil {
		o.Status, o.Err = StatusTranscribeFailed, err
		return o
	}
	o.Transcribed, o.TranscriptChars = true, n

	meta.Transcribed = true
	if _, err := st.SaveMetadata(p.VideoID, meta); err != nil {
		o.Status, o.Err = StatusSaveFailed, err
		return o
	}
	o.Status = StatusTranscribed
	return o
}
