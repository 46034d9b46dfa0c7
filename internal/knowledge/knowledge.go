// Package knowledge condenses every stored transcript into a markdown report
// with one LLM call.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/engine"
)

// Defaults used when the config leaves the sample settings at zero.
const (
	DefaultSamples     = 5
	DefaultSampleChars = 500
)

// Transcript is one stored transcript with its optional metadata record.
type Transcript struct {
	Creator  string               `json:"creator"`
	File     string               `json:"file"`
	Content  string               `json:"-"`
	Metadata engine.VideoMetadata `json:"metadata"`
}

// Topic is one theme the model found.
type Topic struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	KeyPoints   []string `json:"key_points"`
	Creators    []string `json:"creators"`
	Insights    []string `json:"insights"`
}

// Knowledge is the parsed answer. Raw holds the model text when it was not JSON.
type Knowledge struct {
	Topics          []Topic  `json:"topics,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	Trends          []string `json:"trends,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Raw             string   `json:"raw,omitempty"`
}

// Report is the result of one extraction. Path is "" when nothing was written.
type Report struct {
	Path        string    `json:"path,omitempty"`
	Transcripts int       `json:"transcripts"`
	GeneratedAt time.Time `json:"generated_at"`
	Knowledge   Knowledge `json:"knowledge"`
}

// CompleteFunc sends a system and user prompt to a chat model.
type CompleteFunc func(ctx context.Context, system, prompt string) (string, error)

// Extractor scans DataDir and writes reports into OutDir.
type Extractor struct {
	DataDir     string
	OutDir      string
	Samples     int
	SampleChars int
	Complete    CompleteFunc

	now func() time.Time
}

// New builds an extractor from cfg that calls the configured LLM client.
func New(cfg *engine.Config) *Extractor {
	return &Extractor{
		DataDir:     cfg.DataDir,
		OutDir:      cfg.KnowledgeDir,
		Samples:     cfg.KnowledgeSamples,
		SampleChars: cfg.KnowledgeSampleChars,
		Complete:    engine.CallLLM,
		now:         time.Now,
	}
}

// Collect reads every transcript under DataDir, creator directories in name
// order. Unreadable files are skipped.
func (x *Extractor) Collect() ([]Transcript, error) {
	dirs, err := os.ReadDir(x.DataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("knowledge: read %s: %w: %w", x.DataDir, engine.ErrStorageIO, err)
	}
	var out []Transcript
	for _, d := range dirs {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		dir := filepath.Join(x.DataDir, d.Name())
		files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
		if err != nil {
			continue
		}
		for _, f := range files {
			if strings.HasPrefix(filepath.Base(f), ".") {
				continue
			}
			data, err := os.ReadFile(f)
			if err != nil {
				continue
			}
			t := Transcript{Creator: d.Name(), File: f, Content: string(data)}
			if raw, err := os.ReadFile(strings.TrimSuffix(f, ".txt") + ".json"); err == nil {
				_ = json.Unmarshal(raw, &t.Metadata)
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// BuildPrompt renders the analyst prompt with the first samples transcripts,
// each cut to chars runes.
func BuildPrompt(ts []Transcript, samples, chars int) string {
	if samples <= 0 {
		samples = DefaultSamples
	}
	if chars <= 0 {
		chars = DefaultSampleChars
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, analystPrompt, len(ts), samples)
	for i, t := range ts {
		if i >= samples {
			break
		}
		fmt.Fprintf(&sb, sampleBlock, t.Creator, engine.TruncateRunes(t.Content, chars, ""))
	}
	return sb.String()
}

// Parse decodes the first {...} span of the answer, falling back to Raw.
func Parse(answer string) Knowledge {
	if obj := engine.ExtractJSONObject(answer); obj != "" {
		var k Knowledge
		if err := json.Unmarshal([]byte(obj), &k); err == nil {
			return k
		}
	}
	return Knowledge{Raw: answer}
}

// Extract collects transcripts, asks the model and writes the report to
// OutDir/knowledge_YYYYmmdd_HHMMSS.md. With no transcripts it returns an
// empty report without calling the model.
func (x *Extractor) Extract(ctx context.Context) (Report, error) {
	now := x.now
	if now == nil {
		now = time.Now
	}
	ts, err := x.Collect()
	if err != nil {
		return Report{}, err
	}
	slog.Info("knowledge: collected transcripts", slog.Int("count", len(ts)))
	if len(ts) == 0 {
		return Report{}, nil
	}
	if x.Complete == nil {
		return Report{}, fmt.Errorf("knowledge: no LLM configured: %w", engine.ErrConfiguration)
	}

	answer, err := x.Complete(ctx, systemPrompt, BuildPrompt(ts, x.Samples, x.SampleChars))
	if err != nil {
		return Report{}, fmt.Errorf("knowledge: llm: %w", err)
	}

	at := now()
	rep := Report{Transcripts: len(ts), GeneratedAt: at, Knowledge: Parse(answer)}
	if err := os.MkdirAll(x.OutDir, 0o755); err != nil {
		return rep, fmt.Errorf("knowledge: mkdir %s: %w: %w", x.OutDir, engine.ErrStorageIO, err)
	}
	path := filepath.Join(x.OutDir, "knowledge_"+at.Format("20060102_150405")+".md")
	body := fmt.Sprintf(reportTemplate, at.Format("2006-01-02 15:04:05"), len(ts), answer)
	if err := engine.WriteFileAtomic(path, []byte(body), 0o644); err != nil {
		return rep, fmt.Errorf("knowledge: write %s: %w: %w", path, engine.ErrStorageIO, err)
	}
	rep.Path = path
	slog.Info("knowledge: report written", slog.String("path", path))
	return rep, nil
}
