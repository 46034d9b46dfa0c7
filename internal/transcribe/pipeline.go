package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/engine"
)

const deleteTimeout = 30 * time.Second

// Pipeline is the dashscope backend: extract, stage, recognize, clean up.
type Pipeline struct {
	Extractor  AudioExtractor
	Recognizer Recognizer
	ScratchDir string

	// Store stages the audio. When nil it is built from cfg on first use.
	Store ObjectStore

	cfg      *engine.Config
	newStore func(context.Context, *engine.Config) (ObjectStore, error)
	storeMu  sync.Mutex
	storeErr error // latched ErrConfiguration; other build errors are retried
	now      func() time.Time
}

// NewDashScopePipeline wires ffmpeg, the OSS object store and the DashScope recognizer.
func NewDashScopePipeline(cfg *engine.Config) *Pipeline {
	return &Pipeline{
		Extractor:  NewFFmpeg(cfg.FFmpegPath),
		Recognizer: NewDashScope(cfg),
		ScratchDir: cfg.ScratchDir,
		cfg:        cfg,
		newStore:   newS3ObjectStore,
		now:        time.Now,
	}
}

func newS3ObjectStore(ctx context.Context, cfg *engine.Config) (ObjectStore, error) {
	s, err := NewS3Store(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Pipeline) objectStore(ctx context.Context) (ObjectStore, error) {
	p.storeMu.Lock()
	defer p.storeMu.Unlock()
	if p.Store != nil {
		return p.Store, nil
	}
	if p.storeErr != nil {
		return nil, p.storeErr
	}
	if p.cfg == nil || p.newStore == nil {
		p.storeErr = fmt.Errorf("transcribe: no object store: %w", engine.ErrConfiguration)
		return nil, p.storeErr
	}
	st, err := p.newStore(ctx, p.cfg)
	if err != nil {
		if errors.Is(err, engine.ErrConfiguration) {
			p.storeErr = err
		}
		return nil, err
	}
	p.Store = st
	return st, nil
}

// Transcribe runs the full pipeline for one video. The staged object and the
// local wav are removed on every path; a failed delete is only logged.
func (p *Pipeline) Transcribe(ctx context.Context, videoPath string) (string, error) {
	store, err := p.objectStore(ctx)
	if err != nil {
		return "", err
	}
	if p.cfg != nil && p.cfg.BailianAPIKey == "" {
		return "", fmt.Errorf("transcribe: BAILIAN_API_KEY not set: %w", engine.ErrConfiguration)
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	wav := scratchWavPath(p.ScratchDir, videoPath, now())
	defer os.Remove(wav)

	if err := p.Extractor.Extract(ctx, videoPath, wav); err != nil {
		return "", err
	}

	obj, err := store.Put(ctx, wav)
	if obj.Key != "" {
		defer p.deleteObject(ctx, store, obj.Key)
	}
	if err != nil {
		return "", fmt.Errorf("transcribe: stage audio: %w: %w", engine.ErrTranscription, err)
	}

	text, err := p.Recognizer.Recognize(ctx, obj.URL)
	if err != nil {
		if errors.Is(err, engine.ErrTranscription) || errors.Is(err, engine.ErrConfiguration) {
			return "", err
		}
		return "", fmt.Errorf("transcribe: %w: %w", engine.ErrTranscription, err)
	}
	return text, nil
}

func (p *Pipeline) deleteObject(ctx context.Context, store ObjectStore, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	if err := store.Delete(ctx, key); err != nil {
		slog.Warn("transcribe: temp object not deleted", slog.String("key", key), slog.Any("error", err))
	}
}
