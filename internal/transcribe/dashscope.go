package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/cenkalti/backoff/v5"
)

const (
	submitPath     = "/api/v1/services/audio/asr/transcription"
	taskPathPrefix = "/api/v1/tasks/"
	maxASRBody     = 8 << 20
)

// DashScope task states.
const (
	taskPending   = "PENDING"
	taskRunning   = "RUNNING"
	taskSucceeded = "SUCCEEDED"
	taskFailed    = "FAILED"
	taskCanceled  = "CANCELED"
)

// Recognizer turns a fetchable audio URL into text.
type Recognizer interface {
	Recognize(ctx context.Context, fileURL string) (string, error)
}

// DashScope submits paraformer file-transcription tasks and polls them to completion.
type DashScope struct {
	baseURL      string
	apiKey       string
	model        string
	client       *http.Client
	pollInterval time.Duration
	timeout      time.Duration
}

// NewDashScope builds a recognizer from the process configuration.
func NewDashScope(cfg *engine.Config) *DashScope {
	d := &DashScope{
		baseURL:      strings.TrimRight(cfg.DashScopeAPIURL, "/"),
		apiKey:       cfg.BailianAPIKey,
		model:        cfg.ASRModel,
		client:       cfg.HTTPClient,
		pollInterval: cfg.TranscribePollInterval,
		timeout:      cfg.TranscribeTimeout,
	}
	if d.baseURL == "" {
		d.baseURL = "https://dashscope.aliyuncs.com"
	}
	if d.model == "" {
		d.model = "paraformer-v2"
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: 30 * time.Second}
	}
	if d.pollInterval <= 0 {
		d.pollInterval = 2 * time.Second
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Minute
	}
	return d
}

type submitRequest struct {
	Model string `json:"model"`
	Input struct {
		FileURLs []string `json:"file_urls"`
	} `json:"input"`
	Parameters map[string]any `json:"parameters"`
}

type taskResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Output  struct {
		TaskID     string       `json:"task_id"`
		TaskStatus string       `json:"task_status"`
		Code       string       `json:"code"`
		Message    string       `json:"message"`
		Results    []taskResult `json:"results"`
	} `json:"output"`
}

type taskResult struct {
	SubtaskStatus    string `json:"subtask_status"`
	Transcription    string `json:"transcription"`
	Transcript       string `json:"transcript"`
	Text             string `json:"text"`
	TranscriptionURL string `json:"transcription_url"`
	Code             string `json:"code"`
	Message          string `json:"message"`
}

type transcriptionDoc struct {
	Transcripts []struct {
		Text      string `json:"text"`
		Sentences []struct {
			Text string `json:"text"`
		} `json:"sentences"`
	} `json:"transcripts"`
	Text          string `json:"text"`
	Transcription string `json:"transcription"`
}

// Recognize submits fileURL and blocks until the task settles or the timeout passes.
func (d *DashScope) Recognize(ctx context.Context, fileURL string) (string, error) {
	if d.apiKey == "" {
		return "", fmt.Errorf("dashscope: BAILIAN_API_KEY not set: %w", engine.ErrConfiguration)
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	taskID, err := d.submit(ctx, fileURL)
	if err != nil {
		return "", err
	}
	slog.Debug("dashscope: task submitted", slog.String("task_id", taskID))

	result, err := d.wait(ctx, taskID)
	if err != nil {
		return "", err
	}
	return d.extractText(ctx, result)
}

func (d *DashScope) submit(ctx context.Context, fileURL string) (string, error) {
	var body submitRequest
	body.Model = d.model
	body.Input.FileURLs = []string{fileURL}
	body.Parameters = map[string]any{}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+submitPath, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		d.authorize(req)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-DashScope-Async", "enable")
		return d.client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("dashscope: submit: %w: %w", engine.ErrTranscription, err)
	}
	tr, err := decodeTask(resp)
	if err != nil {
		return "", err
	}
	if tr.Output.TaskID == "" {
		return "", fmt.Errorf("dashscope: submit rejected: %s %s: %w", tr.Code, tr.Message, engine.ErrTranscription)
	}
	return tr.Output.TaskID, nil
}

// errTaskRunning keeps the poll loop going.
var errTaskRunning = errors.New("task still running")

func (d *DashScope) wait(ctx context.Context, taskID string) (taskResponse, error) {
	poll := func() (taskResponse, error) {
		tr, err := d.fetchTask(ctx, taskID)
		if err != nil {
			// transient fetch errors are retried until the deadline
			return taskResponse{}, err
		}
		switch tr.Output.TaskStatus {
		case taskSucceeded:
			return tr, nil
		case taskFailed, taskCanceled:
			msg := firstNonEmpty(tr.Output.Message, tr.Message, tr.Output.Code)
			return taskResponse{}, backoff.Permanent(fmt.Errorf("dashscope: task %s %s: %s: %w",
				taskID, strings.ToLower(tr.Output.TaskStatus), msg, engine.ErrTranscription))
		default:
			return taskResponse{}, errTaskRunning
		}
	}

	tr, err := backoff.Retry(ctx, poll,
		backoff.WithBackOff(&backoff.ConstantBackOff{Interval: d.pollInterval}),
		backoff.WithMaxElapsedTime(d.timeout),
	)
	if err != nil {
		if errors.Is(err, engine.ErrTranscription) {
			return taskResponse{}, err
		}
		return taskResponse{}, fmt.Errorf("dashscope: task %s did not finish: %w: %w", taskID, engine.ErrTranscription, err)
	}
	return tr, nil
}

func (d *DashScope) fetchTask(ctx context.Context, taskID string) (taskResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+taskPathPrefix+taskID, nil)
	if err != nil {
		return taskResponse{}, backoff.Permanent(err)
	}
	d.authorize(req)
	resp, err := d.client.Do(req)
	if err != nil {
		return taskResponse{}, err
	}
	return decodeTask(resp)
}

func (d *DashScope) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("User-Agent", engine.UserAgentBot)
}

func decodeTask(resp *http.Response) (taskResponse, error) {
	defer resp.Body.Close()
	var tr taskResponse
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxASRBody))
	if err != nil {
		return tr, err
	}
	if engine.IsRetryableStatus(resp.StatusCode) {
		return tr, fmt.Errorf("dashscope: http %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return tr, fmt.Errorf("dashscope: http %d, undecodable body: %w", resp.StatusCode, engine.ErrTranscription)
	}
	if resp.StatusCode != http.StatusOK {
		return tr, backoff.Permanent(fmt.Errorf("dashscope: http %d: %s %s: %w",
			resp.StatusCode, tr.Code, tr.Message, engine.ErrTranscription))
	}
	return tr, nil
}

// extractText walks the known result shapes: inline fields first, then the
// downloadable transcription document.
func (d *DashScope) extractText(ctx context.Context, tr taskResponse) (string, error) {
	if len(tr.Output.Results) == 0 {
		return "", fmt.Errorf("dashscope: empty results: %w", engine.ErrTranscription)
	}
	r := tr.Output.Results[0]
	if r.SubtaskStatus == taskFailed {
		return "", fmt.Errorf("dashscope: subtask failed: %s %s: %w", r.Code, r.Message, engine.ErrTranscription)
	}
	if text := firstNonEmpty(r.Transcription, r.Transcript, r.Text); text != "" {
		return text, nil
	}
	if r.TranscriptionURL == "" {
		return "", fmt.Errorf("dashscope: no transcript in result: %w", engine.ErrTranscription)
	}

	resp, err := engine.FetchWithRetry(ctx, d.client, r.TranscriptionURL, nil)
	if err != nil {
		return "", fmt.Errorf("dashscope: fetch transcription: %w: %w", engine.ErrTranscription, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxASRBody))
	if err != nil {
		return "", fmt.Errorf("dashscope: read transcription: %w: %w", engine.ErrTranscription, err)
	}
	var doc transcriptionDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("dashscope: parse transcription: %w: %w", engine.ErrTranscription, err)
	}
	if text := textFromDoc(doc); text != "" {
		return text, nil
	}
	return "", fmt.Errorf("dashscope: transcript is empty: %w", engine.ErrTranscription)
}

func textFromDoc(doc transcriptionDoc) string {
	var first string
	if len(doc.Transcripts) > 0 {
		first = doc.Transcripts[0].Text
	}
	if text := firstNonEmpty(first, doc.Text, doc.Transcription); text != "" {
		return text
	}
	var parts []string
	for _, t := range doc.Transcripts {
		for _, s := range t.Sentences {
			if s.Text != "" {
				parts = append(parts, s.Text)
			}
		}
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
