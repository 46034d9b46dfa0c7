package engine

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// Config holds all runtime configuration, injected from main.
type Config struct {
	DataDir      string
	KnowledgeDir string
	CreatorsFile string
	ScratchDir   string // "" = os.TempDir()
	BatchSize    int

	TikHubAPIKey         string
	TikHubAPIURL         string
	TikHubRPS            float64
	FetchTimeout         time.Duration
	DouyinDownloadHelper []string // nil = download play URL over HTTP

	Transcriber            string // dashscope | whisper
	AliyunAccessKeyID      string
	AliyunAccessKeySecret  string
	AliyunSecurityToken    string
	OSSBucket              string
	OSSRegion              string
	OSSEndpoint            string
	OSSURLTTL              time.Duration
	BailianAPIKey          string
	DashScopeAPIURL        string
	ASRModel               string
	TranscribeTimeout      time.Duration
	TranscribePollInterval time.Duration
	FFmpegPath             string
	WhisperAPIURL          string
	WhisperAPIKey          string
	WhisperModel           string

	LLMAPIKey            string
	LLMAPIBase           string
	LLMModel             string
	LLMTemperature       float64
	LLMMaxTokens         int
	KnowledgeSamples     int
	KnowledgeSampleChars int
	LLMClient            *llm.Client // nil = knowledge extraction disabled

	DatabaseURL string // "" = SQLite history in DataDir
	MCPPort     string

	HTTPClient *http.Client
}

// HistoryPath is the SQLite run-history location used when DatabaseURL is empty.
func (c Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// SchedulerStatePath is where a running scheduler publishes its pid and jobs.
func (c Config) SchedulerStatePath() string {
	return filepath.Join(c.DataDir, "scheduler.json")
}

var cfg Config

// Cfg exposes the configuration for sub-packages.
// Always points to the current cfg value.
var Cfg = &cfg

// Init installs the given configuration.
func Init(c Config) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	cfg = c
	Cfg = &cfg
}

// DefaultBatchSize is how many recent videos a cycle asks the platform for.
const DefaultBatchSize = 50
