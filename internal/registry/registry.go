// Package registry persists the list of monitored creators in a single JSON file.
//
// Every mutation is a locked read-modify-write followed by an atomic rewrite of
// the whole file (temp file + rename), so a crash mid-write never leaves a
// truncated registry and concurrent callers never lose each other's updates.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/engine"
)

// DefaultIntervalHours is the polling interval used when none is given.
const DefaultIntervalHours = 48

// Creator is one monitored content-platform account.
type Creator struct {
	Name          string `json:"name"`
	Platform      string `json:"platform"`
	ID            string `json:"id"`
	IntervalHours int    `json:"interval_hours"`
	Enabled       *bool  `json:"enabled,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	LastCheck     string `json:"last_check,omitempty"`
	Directory     string `json:"directory"`
}

// IsEnabled reports the enabled flag; an absent flag means enabled.
func (c Creator) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Interval returns the polling interval, falling back to the default for
// legacy records without one.
func (c Creator) Interval() time.Duration {
	h := c.IntervalHours
	if h <= 0 {
		h = DefaultIntervalHours
	}
	return time.Duration(h) * time.Hour
}

type fileFormat struct {
	Creators []Creator `json:"creators"`
}

// Registry is the durable creator list. Safe for concurrent use.
type Registry struct {
	path    string
	dataDir string
	now     func() time.Time

	mu       sync.Mutex
	creators []Creator
}

// Open loads the registry at path, creating an empty file if none exists.
// Creator directories resolve relative to dataDir.
func Open(path, dataDir string) (*Registry, error) {
	r := &Registry{path: path, dataDir: dataDir, now: time.Now}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := r.save(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// load replaces the in-memory list with the file contents. Caller holds mu.
func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		r.creators = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("registry: read %s: %w", r.path, err)
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("registry: parse %s: %w", r.path, err)
	}
	r.creators = f.Creators
	return nil
}

// save rewrites the whole file atomically. Caller holds mu.
func (r *Registry) save() error {
	creators := r.creators
	if creators == nil {
		creators = []Creator{}
	}
	data, err := json.MarshalIndent(fileFormat{Creators: creators}, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("registry: mkdir: %w", err)
	}
	if err := engine.WriteFileAtomic(r.path, data, 0o644); err != nil {
		return fmt.Errorf("registry: write %s: %w", r.path, err)
	}
	return nil
}

// mutate runs fn against a freshly loaded list and persists the result.
func (r *Registry) mutate(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return r.save()
}

// List returns every creator in insertion order.
func (r *Registry) List() []Creator {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Creator, len(r.creators))
	copy(out, r.creators)
	return out
}

// ListEnabled returns creators whose enabled flag is true or absent.
func (r *Registry) ListEnabled() []Creator {
	var out []Creator
	for _, c := range r.List() {
		if c.IsEnabled() {
			out = append(out, c)
		}
	}
	return out
}

// Reload re-reads the backing file, picking up edits made by other processes.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Add registers a creator and persists immediately.
// intervalHours <= 0 selects DefaultIntervalHours.
func (r *Registry) Add(name, platform, externalID string, intervalHours int) (Creator, error) {
	name = strings.TrimSpace(name)
	platform = strings.ToLower(strings.TrimSpace(platform))
	externalID = strings.TrimSpace(externalID)
	if name == "" || platform == "" || externalID == "" {
		return Creator{}, errors.New("registry: name, platform and id are required")
	}
	if intervalHours <= 0 {
		intervalHours = DefaultIntervalHours
	}

	enabled := true
	c := Creator{
		Name:          name,
		Platform:      platform,
		ID:            externalID,
		IntervalHours: intervalHours,
		Enabled:       &enabled,
		CreatedAt:     r.now().Format(engine.ISOTimeLayout),
		Directory:     engine.CreatorDirName(externalID, name),
	}

	err := r.mutate(func() error {
		if r.indexOf(name) >= 0 {
			return fmt.Errorf("registry: %q: %w", name, engine.ErrDuplicateName)
		}
		r.creators = append(r.creators, c)
		return nil
	})
	if err != nil {
		return Creator{}, err
	}
	return c, nil
}

// Remove deletes the named creator. Absent names are a no-op.
// Stored artifacts are left on disk.
func (r *Registry) Remove(name string) error {
	return r.mutate(func() error {
		if i := r.indexOf(name); i >= 0 {
			r.creators = append(r.creators[:i], r.creators[i+1:]...)
		}
		return nil
	})
}

// UpdateLastCheck stamps the creator's last-check time with now.
func (r *Registry) UpdateLastCheck(name string) error {
	return r.mutate(func() error {
		i := r.indexOf(name)
		if i < 0 {
			return fmt.Errorf("registry: creator %q: %w", name, engine.ErrNotFound)
		}
		r.creators[i].LastCheck = r.now().Format(engine.ISOTimeLayout)
		return nil
	})
}

// SetEnabled toggles whether the scheduler and run-all pick up the creator.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	return r.mutate(func() error {
		i := r.indexOf(name)
		if i < 0 {
			return fmt.Errorf("registry: creator %q: %w", name, engine.ErrNotFound)
		}
		r.creators[i].Enabled = &enabled
		return nil
	})
}

// Get looks a creator up by name.
func (r *Registry) Get(name string) (Creator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(name); i >= 0 {
		return r.creators[i], nil
	}
	return Creator{}, fmt.Errorf("registry: creator %q: %w", name, engine.ErrNotFound)
}

// GetByID looks a creator up by external platform id.
func (r *Registry) GetByID(externalID string) (Creator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creators {
		if c.ID == externalID {
			return c, nil
		}
	}
	return Creator{}, fmt.Errorf("registry: creator id %q: %w", externalID, engine.ErrNotFound)
}

// ResolveDirectory returns the creator's data directory.
func (r *Registry) ResolveDirectory(name string) (string, error) {
	c, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return r.Dir(c), nil
}

// ResolveDirectoryByID returns the data directory of the creator with the given external id.
func (r *Registry) ResolveDirectoryByID(externalID string) (string, error) {
	c, err := r.GetByID(externalID)
	if err != nil {
		return "", err
	}
	return r.Dir(c), nil
}

// Dir maps a creator record to its directory. Legacy records without a
// directory field fall back to the creator name.
func (r *Registry) Dir(c Creator) string {
	dir := c.Directory
	if dir == "" {
		dir = c.Name
	}
	return filepath.Join(r.dataDir, dir)
}

// indexOf returns the position of name or -1. Caller holds mu.
func (r *Registry) indexOf(name string) int {
	for i, c := range r.creators {
		if c.Name == name {
			return i
		}
	}
	return -1
}
