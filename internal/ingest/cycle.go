package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/anatolykoptev/go_cortex/internal/history"
	"github.com/anatolykoptev/go_cortex/internal/platform"
	"github.com/anatolykoptev/go_cortex/internal/registry"
	"github.com/anatolykoptev/go_cortex/internal/store"
)

// ProcessCreator runs one ingestion cycle. The returned error is non-nil only
// when the cycle could not run at all (unknown platform, store or fetch failure).
func (e *Engine) ProcessCreator(ctx context.Context, c registry.Creator, opts Options) (report CycleReport, err error) {
	report = CycleReport{Creator: c.Name, Mode: history.ModeIngest, StartedAt: e.clock()}
	defer e.finish(ctx, &report)

	fail := func(err error) (CycleReport, error) {
		report.Err = err
		return report, err
	}

	adapter, err := e.NewAdapter(c.Platform, e.Cfg)
	if err != nil {
		return fail(err)
	}
	st, err := store.Open(e.Registry.Dir(c))
	if err != nil {
		return fail(err)
	}

	batch := e.Cfg.BatchSize
	if batch <= 0 {
		batch = engine.DefaultBatchSize
	}
	engine.IncrPolls()
	videos, err := adapter.FetchVideos(ctx, c.ID, batch)
	if err != nil {
		engine.IncrPollErrors()
		return fail(fmt.Errorf("ingest %s: fetch: %w", c.Name, err))
	}
	report.Fetched = len(videos)

	var fresh []engine.Video
	for _, v := range videos {
		if !store.ValidID(v.VideoID) {
			slog.Warn("ingest: skipping video with unusable id",
				slog.String("creator", c.Name), slog.String("video_id", v.VideoID))
			continue
		}
		ok, err := st.Exists(v.VideoID)
		if err != nil {
			return fail(fmt.Errorf("ingest %s: %w", c.Name, err))
		}
		if !ok {
			fresh = append(fresh, v)
		}
	}
	report.New = len(fresh)
	engine.AddNewVideos(len(fresh))

	if len(fresh) > 0 {
		scratch, err := os.MkdirTemp(e.Cfg.ScratchDir, "cortex-cycle-")
		if err != nil {
			return fail(fmt.Errorf("ingest %s: scratch dir: %w: %w", c.Name, engine.ErrStorageIO, err))
		}
		defer os.RemoveAll(scratch)

		for _, v := range fresh {
			if ctx.Err() != nil {
				break
			}
			o := e.ingestOne(ctx, adapter, st, v, scratch, opts)
			o.Creator = c.Name
			report.add(o)
			e.emit(opts, o)
		}
	}

	// A cancelled batch is incomplete; last_check stays unchanged.
	if ctx.Err() != nil {
		report.Err = ctx.Err()
		return report, nil
	}
	e.touch(c.Name)
	return report, nil
}

// ingestOne handles a single new video. It never returns an error; failures
// are folded into the outcome.
func (e *Engine) ingestOne(ctx context.Context, adapter platform.Adapter, st *store.Store, v engine.Video, scratch string, opts Options) Outcome {
	o := Outcome{VideoID: v.VideoID, Title: v.Title}

	tmp := filepath.Join(scratch, v.VideoID+store.ExtVideo)
	defer os.Remove(tmp)

	if err := adapter.DownloadVideo(ctx, v, tmp); err != nil {
		engine.IncrDownloadErrors()
		o.Status, o.Err = StatusDownloadFailed, err
		return o
	}
	engine.IncrDownloads()

	var size int64
	if info, err := os.Stat(tmp); err == nil {
		size = info.Size()
	}

	path, err := st.SaveVideo(v.VideoID, tmp, v.CreateTime)
	if err != nil {
		o.Status, o.Err = StatusSaveFailed, err
		return o
	}

	o.Status = StatusIngested
	if !opts.SkipTranscribe {
		if n, err := e.transcribeInto(ctx, st, v.VideoID, path, v.CreateTime); err != nil {
			o.Status, o.Err = StatusTranscribeFailed, err
		} else {
			o.Transcribed, o.TranscriptChars = true, n
		}
	}

	meta := engine.NewVideoMetadata(v)
	meta.DownloadedAt = e.clock().Format(engine.ISOTimeLayout)
	meta.FileSize = size
	meta.Transcribed = o.Transcribed
	if _, err := st.SaveMetadata(v.VideoID, meta); err != nil {
		o.Status, o.Err = StatusSaveFailed, err
		return o
	}
	o.Stored = true
	return o
}

// slowTranscribe is the wall time past which a transcription is logged as slow.
const slowTranscribe = 5 * time.Minute

// transcribeInto transcribes a stored payload and saves the transcript,
// returning its length in runes.
func (e *Engine) transcribeInto(ctx context.Context, st *store.Store, videoID, path, createTime string) (int, error) {
	if e.Transcriber == nil {
		return 0, fmt.Errorf("no transcriber configured: %w", engine.ErrConfiguration)
	}
	var text string
	err := engine.TrackOperation(ctx, "transcribe "+videoID, slowTranscribe, func(ctx context.Context) error {
		var err error
		text, err = e.Transcriber.Transcribe(ctx, path)
		return err
	})
	if err != nil {
		engine.IncrTranscriptionErrors()
		return 0, err
	}
	if _, err := st.SaveTranscript(videoID, text, createTime); err != nil {
		return 0, err
	}
	engine.IncrTranscriptions()
	return utf8.RuneCountInString(text), nil
}
