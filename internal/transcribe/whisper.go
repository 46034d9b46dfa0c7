package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	openai "github.com/sashabaranov/go-openai"
)

// Whisper sends extracted audio to an OpenAI-compatible transcription endpoint.
type Whisper struct {
	Extractor  AudioExtractor
	ScratchDir string

	apiKey string
	model  string
	client *openai.Client
}

// NewWhisper builds the whisper backend from the process configuration.
func NewWhisper(cfg *engine.Config) *Whisper {
	oc := openai.DefaultConfig(cfg.WhisperAPIKey)
	if cfg.WhisperAPIURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.WhisperAPIURL, "/")
	}
	timeout := cfg.TranscribeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	oc.HTTPClient = engine.NewDownloadClient(timeout)

	model := cfg.WhisperModel
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{
		Extractor:  NewFFmpeg(cfg.FFmpegPath),
		ScratchDir: cfg.ScratchDir,
		apiKey:     cfg.WhisperAPIKey,
		model:      model,
		client:     openai.NewClientWithConfig(oc),
	}
}

// Transcribe extracts audio and uploads it in one multipart request.
func (w *Whisper) Transcribe(ctx context.Context, videoPath string) (string, error) {
	if w.apiKey == "" {
		return "", fmt.Errorf("whisper: WHISPER_API_KEY not set: %w", engine.ErrConfiguration)
	}
	wav := scratchWavPath(w.ScratchDir, videoPath, time.Now())
	defer os.Remove(wav)

	if err := w.Extractor.Extract(ctx, videoPath, wav); err != nil {
		return "", err
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: wav,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("whisper: %w: %w", engine.ErrTranscription, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("whisper: empty transcript: %w", engine.ErrTranscription)
	}
	return text, nil
}
