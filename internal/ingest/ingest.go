// Package ingest runs the per-creator cycle: fetch the recent feed, keep what
// the store has not seen, download, transcribe and persist each new video.
//
// A failure on one video never stops the others. A failed fetch aborts the
// cycle without touching last_check, so the next run retries the same window.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/anatolykoptev/go_cortex/internal/history"
	"github.com/anatolykoptev/go_cortex/internal/platform"
	"github.com/anatolykoptev/go_cortex/internal/registry"
	"github.com/anatolykoptev/go_cortex/internal/transcribe"
)

// Status is the result of handling one video.
type Status string

const (
	StatusIngested         Status = "ingested"
	StatusTranscribed      Status = "transcribed"
	StatusDownloadFailed   Status = "download_failed"
	StatusSaveFailed       Status = "save_failed"
	StatusTranscribeFailed Status = "transcribe_failed"
)

// Outcome reports one video. Stored means the payload and metadata were
// persisted in this cycle; TranscriptChars counts runes of a saved transcript.
type Outcome struct {
	Creator         string `json:"creator"`
	VideoID         string `json:"video_id"`
	Title           string `json:"title"`
	Status          Status `json:"status"`
	Stored          bool   `json:"stored"`
	Transcribed     bool   `json:"transcribed"`
	TranscriptChars int    `json:"transcript_chars,omitempty"`
	Err             error  `json:"-"`
}

// Error returns the failure text, "" on success.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Options tunes a single cycle.
type Options struct {
	SkipTranscribe bool
	// OnOutcome receives every per-video outcome as it happens.
	OnOutcome func(Outcome)
}

// CycleReport summarizes one cycle for one creator.
type CycleReport struct {
	Creator     string    `json:"creator"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Fetched     int       `json:"fetched"`
	New         int       `json:"new"`
	Ingested    int       `json:"ingested"`
	Transcribed int       `json:"transcribed"`
	Failed      int       `json:"failed"`
	Outcomes    []Outcome `json:"outcomes"`
	Err         error     `json:"-"`
}

func (r *CycleReport) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Stored {
		r.Ingested++
	}
	if o.Transcribed {
		r.Transcribed++
	}
	if o.Status != StatusIngested && o.Status != StatusTranscribed {
		r.Failed++
	}
}

// AdapterFactory resolves a platform name to an adapter.
type AdapterFactory func(name string, cfg *engine.Config) (platform.Adapter, error)

// Engine executes cycles. Safe for concurrent use across different creators.
type Engine struct {
	Cfg         *engine.Config
	Registry    *registry.Registry
	Transcriber transcribe.Transcriber // nil = transcription unavailable
	History     history.Recorder       // nil = not recorded
	NewAdapter  AdapterFactory

	now func() time.Time
}

// New wires an engine with the registered platform adapters.
func New(cfg *engine.Config, reg *registry.Registry, tr transcribe.Transcriber, rec history.Recorder) *Engine {
	return &Engine{
		Cfg:         cfg,
		Registry:    reg,
		Transcriber: tr,
		History:     rec,
		NewAdapter:  platform.New,
		now:         time.Now,
	}
}

func (e *Engine) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}

func (e *Engine) emit(opts Options, o Outcome) {
	attrs := []any{
		slog.String("creator", o.Creator),
		slog.String("video_id", o.VideoID),
		slog.String("status", string(o.Status)),
	}
	if o.Err != nil {
		attrs = append(attrs, slog.Any("error", o.Err))
		slog.Warn("ingest: video", attrs...)
	} else {
		slog.Info("ingest: video", attrs...)
	}
	if opts.OnOutcome != nil {
		opts.OnOutcome(o)
	}
}

// finish stamps the report and records it. History errors are logged only.
func (e *Engine) finish(ctx context.Context, r *CycleReport) {
	r.FinishedAt = e.clock()
	if e.History == nil {
		return
	}
	run := history.Run{
		Creator:     r.Creator,
		Mode:        r.Mode,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Fetched:     r.Fetched,
		New:         r.New,
		Ingested:    r.Ingested,
		Transcribed: r.Transcribed,
		Failed:      r.Failed,
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
	}
	if err := e.History.Record(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("ingest: history not recorded", slog.String("creator", r.Creator), slog.Any("error", err))
	}
}

// touch updates last_check once per completed cycle.
func (e *Engine) touch(name string) {
	if err := e.Registry.UpdateLastCheck(name); err != nil {
		slog.Warn("ingest: last_check not updated", slog.String("creator", name), slog.Any("error", err))
	}
}
