// go_cortex: creator monitoring and video knowledge pipeline.
//
// Polls registered creators on their own intervals, stores new videos with
// transcripts and metadata, and condenses transcripts into knowledge reports.
// Runs as a CLI, a foreground scheduler (`start`) or an HTTP MCP server (`serve`).
package main

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go_cortex/internal/cli"
	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	setupLogging(env.Str("LOG_LEVEL", "info"))
	initEngine()

	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func initEngine() {
	c := engine.Config{
		DataDir:      env.Str("DATA_DIR", "data"),
		KnowledgeDir: env.Str("KNOWLEDGE_DIR", "knowledge"),
		CreatorsFile: env.Str("CREATORS_FILE", "creators.json"),
		ScratchDir:   env.Str("SCRATCH_DIR", ""),
		BatchSize:    env.Int("BATCH_SIZE", engine.DefaultBatchSize),

		TikHubAPIKey:         env.Str("TIKHUB_API_KEY", ""),
		TikHubAPIURL:         env.Str("TIKHUB_API_URL", "https://api.tikhub.io"),
		TikHubRPS:            env.Float("TIKHUB_RPS", 2),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 30*time.Second),
		DouyinDownloadHelper: env.List("DOUYIN_DOWNLOAD_HELPER", ""),

		Transcriber:            env.Str("TRANSCRIBER", "dashscope"),
		AliyunAccessKeyID:      env.Str("ALIYUN_ACCESS_KEY_ID", ""),
		AliyunAccessKeySecret:  env.Str("ALIYUN_ACCESS_KEY_SECRET", ""),
		AliyunSecurityToken:    env.Str("ALIYUN_SECURITY_TOKEN", ""),
		OSSBucket:              env.Str("OSS_BUCKET", ""),
		OSSRegion:              env.Str("OSS_REGION", "oss-cn-beijing"),
		OSSEndpoint:            env.Str("OSS_ENDPOINT", ""),
		OSSURLTTL:              env.Duration("OSS_URL_TTL", time.Hour),
		BailianAPIKey:          env.Str("BAILIAN_API_KEY", ""),
		DashScopeAPIURL:        env.Str("DASHSCOPE_API_URL", "https://dashscope.aliyuncs.com"),
		ASRModel:               env.Str("ASR_MODEL", "paraformer-v2"),
		TranscribeTimeout:      env.Duration("TRANSCRIBE_TIMEOUT", 10*time.Minute),
		TranscribePollInterval: env.Duration("TRANSCRIBE_POLL_INTERVAL", 2*time.Second),
		FFmpegPath:             env.Str("FFMPEG_PATH", "ffmpeg"),
		WhisperAPIURL:          env.Str("WHISPER_API_URL", "https://api.openai.com/v1"),
		WhisperAPIKey:          env.Str("WHISPER_API_KEY", ""),
		WhisperModel:           env.Str("WHISPER_MODEL", "whisper-1"),

		LLMAPIKey:            env.Str("LLM_API_KEY", env.Str("DEEPSEEK_API_KEY", "")),
		LLMAPIBase:           env.Str("LLM_API_BASE", env.Str("DEEPSEEK_API_URL", "https://api.deepseek.com/v1")),
		LLMModel:             env.Str("LLM_MODEL", "deepseek-chat"),
		LLMTemperature:       env.Float("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:         env.Int("LLM_MAX_TOKENS", 4096),
		KnowledgeSamples:     env.Int("KNOWLEDGE_SAMPLES", 5),
		KnowledgeSampleChars: env.Int("KNOWLEDGE_SAMPLE_CHARS", 500),

		DatabaseURL: env.Str("DATABASE_URL", ""),
		MCPPort:     env.Str("MCP_PORT", "8893"),

		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
		llm.WithFallbackKeys(env.List("LLM_API_KEY_FALLBACKS", "")),
		llm.WithMaxTokens(c.LLMMaxTokens),
		llm.WithTemperature(c.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	)

	engine.Init(c)
}
