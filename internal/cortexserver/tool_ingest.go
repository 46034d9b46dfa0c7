package cortexserver

import (
	"context"
	"errors"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/anatolykoptev/go_cortex/internal/history"
	"github.com/anatolykoptev/go_cortex/internal/ingest"
	"github.com/anatolykoptev/go_cortex/internal/knowledge"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type IngestRunInput struct {
	Name           string `json:"name,omitempty" jsonschema:"Creator name. Empty runs every enabled creator one after another."`
	SkipTranscribe bool   `json:"skip_transcribe,omitempty" jsonschema:"Store videos without transcribing them"`
}

type BackfillInput struct {
	Name string `json:"name,omitempty" jsonschema:"Creator name. Empty backfills every enabled creator."`
}

type VideoResult struct {
	VideoID         string `json:"video_id"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	TranscriptChars int    `json:"transcript_chars,omitempty"`
	Error           string `json:"error,omitempty"`
}

type CycleResult struct {
	Creator     string        `json:"creator"`
	Mode        string        `json:"mode"`
	Fetched     int           `json:"fetched"`
	New         int           `json:"new"`
	Ingested    int           `json:"ingested"`
	Transcribed int           `json:"transcribed"`
	Failed      int           `json:"failed"`
	DurationMS  int64         `json:"duration_ms"`
	Error       string        `json:"error,omitempty"`
	Videos      []VideoResult `json:"videos,omitempty"`
}

type RunOutput struct {
	Cycles []CycleResult `json:"cycles"`
}

type KnowledgeInput struct{}

type RunHistoryInput struct {
	Name  string `json:"name,omitempty" jsonschema:"Filter by creator name"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max rows, newest first (default 20)"`
}

type RunHistoryOutput struct {
	Runs []history.Run `json:"runs"`
}

func cycleResult(r ingest.CycleReport) CycleResult {
	out := CycleResult{
		Creator:     r.Creator,
		Mode:        r.Mode,
		Fetched:     r.Fetched,
		New:         r.New,
		Ingested:    r.Ingested,
		Transcribed: r.Transcribed,
		Failed:      r.Failed,
	}
	if !r.FinishedAt.IsZero() {
		out.DurationMS = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	for _, o := range r.Outcomes {
		out.Videos = append(out.Videos, VideoResult{
			VideoID:         o.VideoID,
			Title:           engine.TruncateRunes(o.Title, 60, "…"),
			Status:          string(o.Status),
			TranscriptChars: o.TranscriptChars,
			Error:           o.Error(),
		})
	}
	return out
}

func runOutput(reports []ingest.CycleReport) RunOutput {
	out := RunOutput{Cycles: make([]CycleResult, 0, len(reports))}
	for _, r := range reports {
		out.Cycles = append(out.Cycles, cycleResult(r))
	}
	return out
}

func (s *Service) IngestRun(ctx context.Context, in IngestRunInput) (RunOutput, error) {
	opts := ingest.Options{SkipTranscribe: in.SkipTranscribe}
	if in.Name == "" {
		return runOutput(s.Engine.RunAll(ctx, opts)), nil
	}
	r, err := s.Engine.RunCreator(ctx, in.Name, opts)
	if errors.Is(err, engine.ErrNotFound) {
		return RunOutput{}, err
	}
	return runOutput([]ingest.CycleReport{r}), nil
}

func (s *Service) TranscribeBackfill(ctx context.Context, in BackfillInput) (RunOutput, error) {
	if in.Name == "" {
		return runOutput(s.Engine.BackfillAll(ctx, ingest.Options{})), nil
	}
	c, err := s.Registry.Get(in.Name)
	if err != nil {
		return RunOutput{}, err
	}
	r, err := s.Engine.Backfill(ctx, c, ingest.Options{})
	if errors.Is(err, engine.ErrConfiguration) {
		return RunOutput{}, err
	}
	return runOutput([]ingest.CycleReport{r}), nil
}

func (s *Service) KnowledgeExtract(ctx context.Context, _ KnowledgeInput) (knowledge.Report, error) {
	if s.Knowledge == nil {
		return knowledge.Report{}, errors.New("knowledge extraction is not configured")
	}
	return s.Knowledge.Extract(ctx)
}

func (s *Service) RunHistory(ctx context.Context, in RunHistoryInput) (RunHistoryOutput, error) {
	if s.History == nil {
		return RunHistoryOutput{Runs: []history.Run{}}, nil
	}
	runs, err := s.History.Recent(ctx, in.Name, in.Limit)
	if err != nil {
		return RunHistoryOutput{}, err
	}
	if runs == nil {
		runs = []history.Run{}
	}
	return RunHistoryOutput{Runs: runs}, nil
}

func registerIngestRun(server *mcp.Server, s *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_run",
		Description: "Run one ingestion cycle now: fetch the creator's recent videos, download and transcribe the ones not stored yet. Returns per-video outcomes.",
	}, handler(s.IngestRun))
}

func registerTranscribeBackfill(server *mcp.Server, s *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcribe_backfill",
		Description: "Transcribe already stored videos that have no transcript yet. Nothing is downloaded.",
	}, handler(s.TranscribeBackfill))
}

func registerKnowledgeExtract(server *mcp.Server, s *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "knowledge_extract",
		Description: "Summarize all stored transcripts with the LLM into topics, summary, trends and recommendations. Writes a markdown report and returns the parsed result.",
	}, handler(s.KnowledgeExtract))
}

func registerRunHistory(server *mcp.Server, s *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_history",
		Description: "Recent ingestion and backfill runs with counts, duration and errors, newest first.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, handler(s.RunHistory))
}
