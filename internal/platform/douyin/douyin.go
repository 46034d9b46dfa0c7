// Package douyin implements the platform adapter for Douyin via the TikHub API.
package douyin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/anatolykoptev/go_cortex/internal/platform"
	"github.com/anatolykoptev/go_cortex/internal/store"
	"golang.org/x/time/rate"
)

// Name is the registry key for this adapter.
const Name = "douyin"

const (
	userPostsPath  = "/api/v1/douyin/app/v3/fetch_user_post_videos"
	shareURLFormat = "https://www.douyin.com/video/%s"
	defaultTitle   = "无标题"
	defaultAuthor  = "未知作者"
	helperTimeout  = 180 * time.Second
	maxAPIBody     = 4 << 20
)

func init() {
	platform.Register(Name, func(cfg *engine.Config) (platform.Adapter, error) {
		return New(cfg), nil
	})
}

var (
	limiterOnce sync.Once
	apiLimiter  *rate.Limiter
)

// sharedLimiter throttles TikHub calls across every creator running in this process.
func sharedLimiter(rps float64) *rate.Limiter {
	limiterOnce.Do(func() {
		if rps <= 0 {
			apiLimiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		apiLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	})
	return apiLimiter
}

// Adapter talks to TikHub for listings and downloads payloads over HTTP or a helper.
type Adapter struct {
	apiURL   string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
	download *http.Client
	limiter  *rate.Limiter
	helper   []string
	run      engine.CommandRunner
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithRunner replaces the command runner used for the download helper.
func WithRunner(r engine.CommandRunner) Option { return func(a *Adapter) { a.run = r } }

// WithLimiter replaces the process-wide API limiter.
func WithLimiter(l *rate.Limiter) Option { return func(a *Adapter) { a.limiter = l } }

// WithDownloadClient replaces the HTTP client used for payload downloads.
func WithDownloadClient(c *http.Client) Option { return func(a *Adapter) { a.download = c } }

// New builds an adapter from the process configuration.
func New(cfg *engine.Config, opts ...Option) *Adapter {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	a := &Adapter{
		apiURL:   strings.TrimRight(cfg.TikHubAPIURL, "/"),
		apiKey:   cfg.TikHubAPIKey,
		timeout:  timeout,
		client:   client,
		download: engine.NewDownloadClient(helperTimeout),
		limiter:  sharedLimiter(cfg.TikHubRPS),
		helper:   cfg.DouyinDownloadHelper,
		run:      engine.ExecCommand,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

type userPostsResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		AwemeList []aweme `json:"aweme_list"`
	} `json:"data"`
}

type aweme struct {
	AwemeID    string `json:"aweme_id"`
	Desc       string `json:"desc"`
	CreateTime int64  `json:"create_time"`
	Author     struct {
		Nickname string `json:"nickname"`
	} `json:"author"`
	Video struct {
		PlayAddr struct {
			URLList []string `json:"url_list"`
		} `json:"play_addr"`
	} `json:"video"`
	Statistics engine.Statistics `json:"statistics"`
}

// FetchVideos lists the creator's most recent posts.
func (a *Adapter) FetchVideos(ctx context.Context, creatorID string, count int) ([]engine.Video, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("douyin: TIKHUB_API_KEY not set: %w", engine.ErrConfiguration)
	}
	if count <= 0 {
		count = engine.DefaultBatchSize
	}

	u, err := url.Parse(a.apiURL + userPostsPath)
	if err != nil {
		return nil, fmt.Errorf("douyin: bad api url: %w", engine.ErrConfiguration)
	}
	q := u.Query()
	q.Set("sec_user_id", creatorID)
	q.Set("max_cursor", "0")
	q.Set("count", strconv.Itoa(count))
	q.Set("sort_type", "0")
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	engine.IncrPlatformAPIRequests()

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept", "application/json")
		return a.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("douyin: fetch %s: %w: %w", creatorID, engine.ErrPlatformAPI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
	if err != nil {
		return nil, fmt.Errorf("douyin: read response: %w: %w", engine.ErrPlatformAPI, err)
	}
	return parseUserPosts(body, resp.StatusCode)
}

// parseUserPosts maps a TikHub response into videos, preserving API order.
func parseUserPosts(body []byte, status int) ([]engine.Video, error) {
	var r userPostsResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("douyin: http %d, undecodable body: %w", status, engine.ErrPlatformAPI)
	}
	if r.Code != http.StatusOK {
		msg := r.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, fmt.Errorf("douyin: api code %d: %s: %w", r.Code, msg, engine.ErrPlatformAPI)
	}

	videos := make([]engine.Video, 0, len(r.Data.AwemeList))
	for _, item := range r.Data.AwemeList {
		if !store.ValidID(item.AwemeID) {
			continue
		}
		videos = append(videos, toVideo(item))
	}
	return videos, nil
}

func toVideo(item aweme) engine.Video {
	v := engine.Video{
		VideoID:    item.AwemeID,
		Title:      item.Desc,
		Author:     item.Author.Nickname,
		ShareURL:   fmt.Sprintf(shareURLFormat, item.AwemeID),
		Statistics: item.Statistics,
		Platform:   Name,
	}
	if v.Title == "" {
		v.Title = defaultTitle
	}
	if v.Author == "" {
		v.Author = defaultAuthor
	}
	if item.CreateTime > 0 {
		v.CreateTime = time.Unix(item.CreateTime, 0).Local().Format(engine.ISOTimeLayout)
	}
	if urls := item.Video.PlayAddr.URLList; len(urls) > 0 {
		v.VideoURL = urls[0]
	}
	return v
}

// DownloadVideo fetches the payload into dest, through the helper when configured.
func (a *Adapter) DownloadVideo(ctx context.Context, v engine.Video, dest string) error {
	if len(a.helper) > 0 {
		return a.downloadWithHelper(ctx, v, dest)
	}
	if v.VideoURL == "" {
		return fmt.Errorf("douyin: %s has no play url", v.VideoID)
	}
	_, err := engine.DownloadToFile(ctx, a.download, v.VideoURL, dest, map[string]string{
		"Referer": "https://www.douyin.com/",
	})
	if err != nil {
		return fmt.Errorf("douyin: download %s: %w", v.VideoID, err)
	}
	return nil
}

func (a *Adapter) downloadWithHelper(ctx context.Context, v engine.Video, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, helperTimeout)
	defer cancel()

	args := make([]string, 0, len(a.helper)+1)
	args = append(args, a.helper[1:]...)
	args = append(args, v.ShareURL, dest)
	if err := a.run(ctx, a.helper[0], args...); err != nil {
		return fmt.Errorf("douyin: helper %s: %w", v.VideoID, err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("douyin: helper produced no file for %s", v.VideoID)
		}
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("douyin: helper produced an empty file for %s", v.VideoID)
	}
	return nil
}
