package cli

import (
	"context"
	"log/slog"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/anatolykoptev/go_cortex/internal/history"
	"github.com/anatolykoptev/go_cortex/internal/ingest"
	_ "github.com/anatolykoptev/go_cortex/internal/platform/douyin"
	"github.com/anatolykoptev/go_cortex/internal/registry"
	"github.com/anatolykoptev/go_cortex/internal/transcribe"
)

// app is what a command needs, opened from engine.Cfg.
type app struct {
	cfg  *engine.Config
	reg  *registry.Registry
	hist history.Recorder // nil when the history store could not be opened
}

func openApp() (*app, error) {
	cfg := engine.Cfg
	reg, err := registry.Open(cfg.CreatorsFile, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, reg: reg}, nil
}

// withHistory opens the run-history store. Failure is logged and leaves
// history disabled.
func (a *app) withHistory(ctx context.Context) *app {
	rec, err := history.Open(ctx, a.cfg.DatabaseURL, a.cfg.HistoryPath())
	if err != nil {
		slog.Warn("history disabled", slog.Any("error", err))
		return a
	}
	a.hist = rec
	return a
}

func (a *app) close() {
	if a.hist != nil {
		if err := a.hist.Close(); err != nil {
			slog.Warn("history close failed", slog.Any("error", err))
		}
	}
}

// newEngine wires an ingestion engine. skipTranscribe leaves the transcriber unset.
func (a *app) newEngine(skipTranscribe bool) (*ingest.Engine, error) {
	var tr transcribe.Transcriber
	if !skipTranscribe {
		var err error
		if tr, err = transcribe.New(a.cfg); err != nil {
			return nil, err
		}
	}
	return ingest.New(a.cfg, a.reg, tr, a.hist), nil
}
