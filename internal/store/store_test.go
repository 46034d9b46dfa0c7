package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "extid123_Name"))
	require.NoError(t, err)
	return s
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "download.mp4")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestStem(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		createTime string
		want       string
	}{
		{"iso datetime", "abc123", "2025-12-22T17:41:07", "2025-12-22_abc123"},
		{"space separated", "abc123", "2025-12-22 17:41:07", "2025-12-22_abc123"},
		{"date only", "abc123", "2025-12-22", "2025-12-22_abc123"},
		{"empty", "abc123", "", "abc123"},
		{"garbage", "abc123", "yesterday", "abc123"},
		{"invalid date", "abc123", "2025-13-45T00:00:00", "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Stem(tt.id, tt.createTime); got != tt.want {
				t.Errorf("Stem(%q, %q) = %q, want %q", tt.id, tt.createTime, got, tt.want)
			}
		})
	}
}

func TestIDFromStem(t *testing.T) {
	tests := map[string]string{
		"2025-12-22_abc123": "abc123",
		"abc123":            "abc123",
		"2025-12-22_a_b":    "a_b",
		"notadate_abc":      "notadate_abc",
	}
	for stem, want := range tests {
		if got := idFromStem(stem); got != want {
			t.Errorf("idFromStem(%q) = %q, want %q", stem, got, want)
		}
	}
}

func TestExists_MetadataOnly(t *testing.T) {
	s := newStore(t)
	_, err := s.SaveMetadata("xyz", engine.VideoMetadata{VideoID: "xyz", CreateTime: "2025-01-01T08:00:00"})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(s.Dir(), "2025-01-01_xyz.json"))
	require.NoError(t, err)

	ok, err := s.Exists("xyz")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists("xy")
	require.NoError(t, err)
	assert.False(t, ok, "prefix of an id must not match")

	ok, err = s.Exists("yz")
	require.NoError(t, err)
	assert.False(t, ok, "suffix of an id must not match")
}

func TestExists_BareStem(t *testing.T) {
	s := newStore(t)
	_, err := s.SaveTranscript("abc", "hello", "")
	require.NoError(t, err)
	ok, err := s.Exists("abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExists_IgnoresTempFiles(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), engine.TempPrefix+"2025-01-01_abc.mp4-123"), []byte("x"), 0o644))
	ok, err := s.Exists("abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveVideo_OverwritesAndKeepsStem(t *testing.T) {
	s := newStore(t)
	p1, err := s.SaveVideo("abc123", writeSource(t, "v1"), "2025-12-22T17:41:07")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "2025-12-22_abc123.mp4"), p1)

	p2, err := s.SaveVideo("abc123", writeSource(t, "v2"), "2025-12-22T17:41:07")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	data, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestSaveTranscript_NoStemDrift(t *testing.T) {
	s := newStore(t)
	_, err := s.SaveVideo("abc123", writeSource(t, "v"), "2025-12-22T17:41:07")
	require.NoError(t, err)

	// creation time omitted: must land next to the video, not under the bare id
	p, err := s.SaveTranscript("abc123", "你好", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "2025-12-22_abc123.txt"), p)

	_, err = os.Stat(filepath.Join(s.Dir(), "abc123.txt"))
	assert.True(t, os.IsNotExist(err))

	text, ok, err := s.Transcript("abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "你好", text)

	has, err := s.HasTranscript("abc123")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestMetadataRoundTrip(t *testing.T) {
	s := newStore(t)
	meta := engine.VideoMetadata{
		VideoID:      "v1",
		Title:        "标题 <b>&</b>",
		Author:       "作者",
		CreateTime:   "2025-03-04T05:06:07",
		Platform:     "douyin",
		ShareURL:     "https://www.douyin.com/video/v1",
		Statistics:   engine.Statistics{DiggCount: 1, CommentCount: 2, ShareCount: 3, PlayCount: 4},
		DownloadedAt: "2025-03-05T00:00:00",
		FileSize:     1024,
		Transcribed:  true,
	}
	p, err := s.SaveMetadata("v1", meta)
	require.NoError(t, err)

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "标题 <b>&</b>", "metadata must not be ascii- or html-escaped")

	got, ok, err := s.Metadata("v1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, meta, got)

	_, ok, err = s.Metadata("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListVideos_SortedAndSkipsCorrupt(t *testing.T) {
	s := newStore(t)
	for _, m := range []engine.VideoMetadata{
		{VideoID: "old", CreateTime: "2024-01-01T00:00:00"},
		{VideoID: "new", CreateTime: "2025-06-01T00:00:00"},
		{VideoID: "mid", CreateTime: "2025-01-01T00:00:00"},
	} {
		_, err := s.SaveMetadata(m.VideoID, m)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "2025-02-02_bad.json"), []byte("{not json"), 0o644))

	list, err := s.ListVideos()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].VideoID)
	assert.Equal(t, "mid", list[1].VideoID)
	assert.Equal(t, "old", list[2].VideoID)
}

func TestPendingTranscripts(t *testing.T) {
	s := newStore(t)
	_, err := s.SaveVideo("a", writeSource(t, "a"), "2025-01-01T00:00:00")
	require.NoError(t, err)
	_, err = s.SaveVideo("b", writeSource(t, "b"), "2025-01-02T00:00:00")
	require.NoError(t, err)
	_, err = s.SaveTranscript("b", "done", "")
	require.NoError(t, err)
	_, err = s.SaveVideo("c", writeSource(t, "c"), "")
	require.NoError(t, err)

	pending, err := s.PendingTranscripts()
	require.NoError(t, err)
	require.Len(t, pending, 2)

	byID := map[string]Pending{}
	for _, p := range pending {
		byID[p.VideoID] = p
	}
	assert.Equal(t, "2025-01-01", byID["a"].CreateTime)
	assert.Equal(t, filepath.Join(s.Dir(), "2025-01-01_a.mp4"), byID["a"].Path)
	assert.Equal(t, "", byID["c"].CreateTime)
}

func TestVideoPath(t *testing.T) {
	s := newStore(t)
	_, ok, err := s.VideoPath("a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.SaveVideo("a", writeSource(t, "a"), "2025-01-01T00:00:00")
	require.NoError(t, err)
	p, ok, err := s.VideoPath("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(s.Dir(), "2025-01-01_a.mp4"), p)
}

func TestSave_RejectsUnsafeIDs(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"parent traversal", "../../escaped"},
		{"slash", "a/b"},
		{"backslash", `a\b`},
		{"dot dot inside", "a..b"},
		{"dot prefixed", ".hidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			s, err := Open(filepath.Join(root, "creator"))
			require.NoError(t, err)

			if ValidID(tt.id) {
				t.Errorf("ValidID(%q) = true, want false", tt.id)
			}
			if _, err := s.SaveVideo(tt.id, writeSource(t, "x"), "2025-01-01T00:00:00"); !errors.Is(err, ErrInvalidID) {
				t.Errorf("SaveVideo(%q) err = %v, want ErrInvalidID", tt.id, err)
			}
			if _, err := s.SaveTranscript(tt.id, "text", "2025-01-01T00:00:00"); !errors.Is(err, ErrInvalidID) {
				t.Errorf("SaveTranscript(%q) err = %v, want ErrInvalidID", tt.id, err)
			}
			meta := engine.VideoMetadata{VideoID: tt.id, CreateTime: "2025-01-01T00:00:00"}
			if _, err := s.SaveMetadata(tt.id, meta); !errors.Is(err, ErrInvalidID) {
				t.Errorf("SaveMetadata(%q) err = %v, want ErrInvalidID", tt.id, err)
			}

			var written []string
			_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
				if err == nil && !d.IsDir() {
					written = append(written, path)
				}
				return nil
			})
			assert.Empty(t, written, "no file may be written for an unsafe id")
		})
	}
}

func TestValidID(t *testing.T) {
	for _, id := range []string{"7451234567890", "abc_123", "a.b", "视频1"} {
		if !ValidID(id) {
			t.Errorf("ValidID(%q) = false, want true", id)
		}
	}
}
