// Package store keeps one creator's ingested videos on local disk.
//
// Each video owns up to three files sharing a stem, either
// "{YYYY-MM-DD}_{video_id}" or the bare video id:
//
//	{stem}.mp4   video payload
//	{stem}.txt   transcript (optional)
//	{stem}.json  metadata record, written last
//
// There is no index. A video exists when any file in the directory has a
// stem that resolves to its id.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/engine"
)

// Artifact extensions.
const (
	ExtVideo      = ".mp4"
	ExtTranscript = ".txt"
	ExtMetadata   = ".json"
)

const datePrefixLayout = "2006-01-02"

// ErrInvalidID marks a video id that cannot name a file inside the creator
// directory.
var ErrInvalidID = errors.New("invalid video id")

// ValidID reports whether videoID is safe to use as a file stem: non-empty,
// no path separators or "..", and not dot-prefixed.
func ValidID(videoID string) bool {
	if videoID == "" || strings.HasPrefix(videoID, ".") {
		return false
	}
	return !strings.ContainsAny(videoID, `/\`) && !strings.Contains(videoID, "..")
}

// Store is rooted at a single creator directory.
type Store struct {
	dir string
}

// Open returns a store for dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w: %w", dir, engine.ErrStorageIO, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the creator directory.
func (s *Store) Dir() string { return s.dir }

// Stem derives the filename base for a video. The date prefix comes from the
// creation time; an absent or unparseable time yields the bare id.
func Stem(videoID, createTime string) string {
	if d, ok := datePart(createTime); ok {
		return d + "_" + videoID
	}
	return videoID
}

// datePart extracts YYYY-MM-DD from an ISO-8601 timestamp.
func datePart(createTime string) (string, bool) {
	createTime = strings.TrimSpace(createTime)
	if createTime == "" {
		return "", false
	}
	date := createTime
	if i := strings.IndexAny(createTime, "T "); i >= 0 {
		date = createTime[:i]
	}
	if _, err := time.Parse(datePrefixLayout, date); err != nil {
		return "", false
	}
	return date, true
}

// idFromStem recovers the video id a stem belongs to.
func idFromStem(stem string) string {
	if len(stem) > len(datePrefixLayout)+1 && stem[len(datePrefixLayout)] == '_' {
		if _, err := time.Parse(datePrefixLayout, stem[:len(datePrefixLayout)]); err == nil {
			return stem[len(datePrefixLayout)+1:]
		}
	}
	return stem
}

// artifact is one file in the creator directory.
type artifact struct {
	name string
	stem string
	ext  string
	id   string
}

// scan lists artifact files, skipping directories and in-progress temp files.
func (s *Store) scan() ([]artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read dir %s: %w: %w", s.dir, engine.ErrStorageIO, err)
	}
	out := make([]artifact, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		if stem == "" {
			continue
		}
		out = append(out, artifact{name: name, stem: stem, ext: ext, id: idFromStem(stem)})
	}
	return out, nil
}

// find returns artifacts for videoID, optionally restricted to one extension.
func (s *Store) find(videoID, ext string) ([]artifact, error) {
	all, err := s.scan()
	if err != nil {
		return nil, err
	}
	var out []artifact
	for _, a := range all {
		if a.id != videoID {
			continue
		}
		if ext != "" && a.ext != ext {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Exists reports whether any artifact of videoID is on disk.
func (s *Store) Exists(videoID string) (bool, error) {
	found, err := s.find(videoID, "")
	return len(found) > 0, err
}

// HasTranscript reports whether videoID has a transcript file.
func (s *Store) HasTranscript(videoID string) (bool, error) {
	found, err := s.find(videoID, ExtTranscript)
	return len(found) > 0, err
}

// resolveStem is the single stem function for every write. An already
// persisted artifact pins the stem, so a later write that omits or changes
// the creation time cannot split one video across two stems.
func (s *Store) resolveStem(videoID, createTime string) (string, error) {
	if !ValidID(videoID) {
		return "", fmt.Errorf("store: %w %q", ErrInvalidID, videoID)
	}
	found, err := s.find(videoID, "")
	if err != nil {
		return "", err
	}
	if len(found) > 0 {
		return found[0].stem, nil
	}
	return Stem(videoID, createTime), nil
}

func (s *Store) path(stem, ext string) string {
	return filepath.Join(s.dir, stem+ext)
}

// SaveVideo copies srcPath into the store. An existing payload is overwritten.
func (s *Store) SaveVideo(videoID, srcPath, createTime string) (string, error) {
	stem, err := s.resolveStem(videoID, createTime)
	if err != nil {
		return "", err
	}
	dest := s.path(stem, ExtVideo)
	if err := engine.CopyFileAtomic(srcPath, dest, 0o644); err != nil {
		return "", fmt.Errorf("store: save video %s: %w: %w", videoID, engine.ErrStorageIO, err)
	}
	return dest, nil
}

// SaveTranscript writes the transcript as UTF-8 text.
func (s *Store) SaveTranscript(videoID, text, createTime string) (string, error) {
	stem, err := s.resolveStem(videoID, createTime)
	if err != nil {
		return "", err
	}
	dest := s.path(stem, ExtTranscript)
	if err := engine.WriteFileAtomic(dest, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("store: save transcript %s: %w: %w", videoID, engine.ErrStorageIO, err)
	}
	return dest, nil
}

// SaveMetadata writes the metadata record. The stem derives from meta.CreateTime
// unless another artifact already pinned it.
func (s *Store) SaveMetadata(videoID string, meta engine.VideoMetadata) (string, error) {
	stem, err := s.resolveStem(videoID, meta.CreateTime)
	if err != nil {
		return "", err
	}
	data, err := encodeMetadata(meta)
	if err != nil {
		return "", fmt.Errorf("store: encode metadata %s: %w", videoID, err)
	}
	dest := s.path(stem, ExtMetadata)
	if err := engine.WriteFileAtomic(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("store: save metadata %s: %w: %w", videoID, engine.ErrStorageIO, err)
	}
	return dest, nil
}

// encodeMetadata renders indented JSON without HTML escaping so CJK and
// punctuation stay readable.
func encodeMetadata(meta engine.VideoMetadata) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Transcript returns the stored transcript; ok is false when absent.
func (s *Store) Transcript(videoID string) (text string, ok bool, err error) {
	found, err := s.find(videoID, ExtTranscript)
	if err != nil || len(found) == 0 {
		return "", false, err
	}
	data, err := os.ReadFile(s.path(found[0].stem, ExtTranscript))
	if err != nil {
		return "", false, fmt.Errorf("store: read transcript %s: %w: %w", videoID, engine.ErrStorageIO, err)
	}
	return string(data), true, nil
}

// Metadata returns the stored metadata record; ok is false when absent.
func (s *Store) Metadata(videoID string) (meta engine.VideoMetadata, ok bool, err error) {
	found, err := s.find(videoID, ExtMetadata)
	if err != nil || len(found) == 0 {
		return meta, false, err
	}
	data, err := os.ReadFile(s.path(found[0].stem, ExtMetadata))
	if err != nil {
		return meta, false, fmt.Errorf("store: read metadata %s: %w: %w", videoID, engine.ErrStorageIO, err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, false, fmt.Errorf("store: parse metadata %s: %w", videoID, err)
	}
	return meta, true, nil
}

// VideoPath returns the stored payload path; ok is false when absent.
func (s *Store) VideoPath(videoID string) (string, bool, error) {
	found, err := s.find(videoID, ExtVideo)
	if err != nil || len(found) == 0 {
		return "", false, err
	}
	return s.path(found[0].stem, ExtVideo), true, nil
}

// ListVideos returns every readable metadata record, newest creation time first.
// Corrupt records are skipped.
func (s *Store) ListVideos() ([]engine.VideoMetadata, error) {
	all, err := s.scan()
	if err != nil {
		return nil, err
	}
	var out []engine.VideoMetadata
	for _, a := range all {
		if a.ext != ExtMetadata {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, a.name))
		if err != nil {
			continue
		}
		var meta engine.VideoMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		out = append(out, meta)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreateTime > out[j].CreateTime
	})
	return out, nil
}

// Pending is a stored video that has no transcript yet.
type Pending struct {
	VideoID    string
	Path       string
	CreateTime string // from the stem's date prefix, "" for bare-id stems
}

// PendingTranscripts lists stored video payloads lacking a transcript, in
// directory order.
func (s *Store) PendingTranscripts() ([]Pending, error) {
	all, err := s.scan()
	if err != nil {
		return nil, err
	}
	transcribed := make(map[string]bool)
	for _, a := range all {
		if a.ext == ExtTranscript {
			transcribed[a.id] = true
		}
	}
	var out []Pending
	for _, a := range all {
		if a.ext != ExtVideo || transcribed[a.id] {
			continue
		}
		p := Pending{VideoID: a.id, Path: filepath.Join(s.dir, a.name)}
		if a.stem != a.id {
			p.CreateTime = a.stem[:len(datePrefixLayout)]
		}
		out = append(out, p)
	}
	return out, nil
}
