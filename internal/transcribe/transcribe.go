// Package transcribe turns a stored video into transcript text.
//
// Two backends are available. The dashscope pipeline extracts a 16 kHz mono
// wav with ffmpeg, stages it in an S3-compatible bucket (Aliyun OSS), hands a
// short-lived presigned URL to the DashScope paraformer ASR task API and polls
// until the task settles. The whisper backend posts the same wav to any
// OpenAI-compatible /audio/transcriptions endpoint.
package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_cortex/internal/engine"
)

// Backend names accepted by TRANSCRIBER.
const (
	BackendDashScope = "dashscope"
	BackendWhisper   = "whisper"
)

// Transcriber converts a local video file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, videoPath string) (string, error)
}

// New picks the backend named by cfg.Transcriber. Missing credentials are not
// an error here; they surface as engine.ErrConfiguration on the first Transcribe.
func New(cfg *engine.Config) (Transcriber, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transcriber)) {
	case "", BackendDashScope:
		return NewDashScopePipeline(cfg), nil
	case BackendWhisper:
		return NewWhisper(cfg), nil
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q: %w", cfg.Transcriber, engine.ErrConfiguration)
	}
}
