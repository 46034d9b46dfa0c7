// Package platform defines the contract between the ingestion engine and a
// content platform, plus a name-keyed registry of adapter constructors.
package platform

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/anatolykoptev/go_cortex/internal/engine"
)

// Adapter lists a creator's recent videos and downloads one of them.
type Adapter interface {
	// FetchVideos returns up to count recent videos, newest first. Non-success
	// API responses are wrapped in engine.ErrPlatformAPI.
	FetchVideos(ctx context.Context, creatorID string, count int) ([]engine.Video, error)
	// DownloadVideo writes the payload to dest. Any error means the video is skipped.
	DownloadVideo(ctx context.Context, v engine.Video, dest string) error
}

// Constructor builds an adapter from the process configuration.
type Constructor func(cfg *engine.Config) (Adapter, error)

var (
	mu           sync.RWMutex
	constructors = map[string]Constructor{}
)

// Register makes a platform available under name. Called from adapter init().
func Register(name string, c Constructor) {
	mu.Lock()
	defer mu.Unlock()
	constructors[strings.ToLower(name)] = c
}

// New builds the adapter for a platform name.
func New(name string, cfg *engine.Config) (Adapter, error) {
	mu.RLock()
	c, ok := constructors[strings.ToLower(strings.TrimSpace(name))]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("platform %q: %w", name, engine.ErrUnsupportedPlatform)
	}
	return c(cfg)
}

// Names lists registered platforms, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(constructors))
	for n := range constructors {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Supported reports whether an adapter is registered under name.
func Supported(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := constructors[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
