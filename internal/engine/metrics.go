package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the process.
var metrics struct {
	Polls               atomic.Int64
	PollErrors          atomic.Int64
	NewVideos           atomic.Int64
	Downloads           atomic.Int64
	DownloadErrors      atomic.Int64
	Transcriptions      atomic.Int64
	TranscriptionErrors atomic.Int64
	LLMCalls            atomic.Int64
	LLMErrors           atomic.Int64
	PlatformAPIRequests atomic.Int64
}

// GetMetrics returns a snapshot of all metrics.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"polls":                 metrics.Polls.Load(),
		"poll_errors":           metrics.PollErrors.Load(),
		"new_videos":            metrics.NewVideos.Load(),
		"downloads":             metrics.Downloads.Load(),
		"download_errors":       metrics.DownloadErrors.Load(),
		"transcriptions":        metrics.Transcriptions.Load(),
		"transcription_errors":  metrics.TranscriptionErrors.Load(),
		"llm_calls":             metrics.LLMCalls.Load(),
		"llm_errors":            metrics.LLMErrors.Load(),
		"platform_api_requests": metrics.PlatformAPIRequests.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"polls", "poll_errors", "new_videos",
		"downloads", "download_errors",
		"transcriptions", "transcription_errors",
		"llm_calls", "llm_errors",
		"platform_api_requests",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the ingest, platform, transcribe and knowledge packages.
func IncrPolls()               { metrics.Polls.Add(1) }
func IncrPollErrors()          { metrics.PollErrors.Add(1) }
func AddNewVideos(n int)       { metrics.NewVideos.Add(int64(n)) }
func IncrDownloads()           { metrics.Downloads.Add(1) }
func IncrDownloadErrors()      { metrics.DownloadErrors.Add(1) }
func IncrTranscriptions()      { metrics.Transcriptions.Add(1) }
func IncrTranscriptionErrors() { metrics.TranscriptionErrors.Add(1) }
func IncrLLMCalls()            { metrics.LLMCalls.Add(1) }
func IncrLLMErrors()           { metrics.LLMErrors.Add(1) }
func IncrPlatformAPIRequests() { metrics.PlatformAPIRequests.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
