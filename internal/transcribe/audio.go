package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/engine"
)

// AudioExtractor writes a speech-ready wav for a video.
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath, wavPath string) error
}

// FFmpeg extracts 16 kHz mono PCM audio.
type FFmpeg struct {
	Path string
	Run  engine.CommandRunner
}

// NewFFmpeg returns an extractor for the binary at path ("" = ffmpeg on PATH).
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path, Run: engine.ExecCommand}
}

// Args returns the ffmpeg argument list for one extraction.
func (f *FFmpeg) Args(videoPath, wavPath string) []string {
	return []string{
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		wavPath,
	}
}

// Extract runs ffmpeg and checks that it produced output.
func (f *FFmpeg) Extract(ctx context.Context, videoPath, wavPath string) error {
	if err := f.Run(ctx, f.Path, f.Args(videoPath, wavPath)...); err != nil {
		return fmt.Errorf("audio extraction: %w: %w", engine.ErrTranscription, err)
	}
	if info, err := os.Stat(wavPath); err != nil || info.Size() == 0 {
		return fmt.Errorf("audio extraction: no output for %s: %w", filepath.Base(videoPath), engine.ErrTranscription)
	}
	return nil
}

// scratchWavPath names the temporary wav for a video inside dir.
func scratchWavPath(dir, videoPath string, now time.Time) string {
	if dir == "" {
		dir = os.TempDir()
	}
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	return filepath.Join(dir, fmt.Sprintf("%s_%s.wav", base, now.Format("20060102150405")))
}
