package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/anatolykoptev/go_cortex/internal/history"
	"github.com/anatolykoptev/go_cortex/internal/platform"
	"github.com/anatolykoptev/go_cortex/internal/registry"
	"github.com/anatolykoptev/go_cortex/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeAdapter struct {
	videos    []engine.Video
	fetchErr  error
	failIDs   map[string]bool
	mu        sync.Mutex
	downloads []string
}

func (f *fakeAdapter) FetchVideos(_ context.Context, _ string, count int) ([]engine.Video, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if count < len(f.videos) {
		return f.videos[:count], nil
	}
	return f.videos, nil
}

func (f *fakeAdapter) DownloadVideo(_ context.Context, v engine.Video, dest string) error {
	f.mu.Lock()
	f.downloads = append(f.downloads, v.VideoID)
	f.mu.Unlock()
	if f.failIDs[v.VideoID] {
		return errors.New("helper exited 1")
	}
	return os.WriteFile(dest, []byte("video-"+v.VideoID), 0o644)
}

type fakeTranscriber struct {
	err   error
	calls []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	f.calls = append(f.calls, path)
	if f.err != nil {
		return "", f.err
	}
	return "转录 " + filepath.Base(path), nil
}

type memRecorder struct {
	mu   sync.Mutex
	runs []history.Run
}

func (m *memRecorder) Record(_ context.Context, r history.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

func (m *memRecorder) Recent(context.Context, string, int) ([]history.Run, error) { return m.runs, nil }
func (m *memRecorder) Close() error                                               { return nil }

// --- helpers ---

type fixture struct {
	eng     *Engine
	reg     *registry.Registry
	adapter *fakeAdapter
	tr      *fakeTranscriber
	rec     *memRecorder
	creator registry.Creator
}

func newFixture(t *testing.T, videos []engine.Video) *fixture {
	t.Helper()
	dir := t.TempDir()
	reg, err := registry.Open(filepath.Join(dir, "creators.json"), filepath.Join(dir, "data"))
	require.NoError(t, err)
	c, err := reg.Add("Name", "douyin", "extid123", 24)
	require.NoError(t, err)

	f := &fixture{
		reg:     reg,
		adapter: &fakeAdapter{videos: videos, failIDs: map[string]bool{}},
		tr:      &fakeTranscriber{},
		rec:     &memRecorder{},
		creator: c,
	}
	scratch := filepath.Join(dir, "scratch")
	require.NoError(t, os.MkdirAll(scratch, 0o755))
	cfg := &engine.Config{BatchSize: 50, ScratchDir: scratch}
	f.eng = New(cfg, reg, f.tr, f.rec)
	f.eng.NewAdapter = func(string, *engine.Config) (platform.Adapter, error) { return f.adapter, nil }
	f.eng.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.Local) }
	return f
}

func (f *fixture) store(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(f.reg.Dir(f.creator))
	require.NoError(t, err)
	return st
}

func videos(ids ...string) []engine.Video {
	out := make([]engine.Video, len(ids))
	for i, id := range ids {
		out[i] = engine.Video{
			VideoID:    id,
			Title:      "title " + id,
			Author:     "author",
			CreateTime: "2025-12-2" + string(rune('0'+i)) + "T17:41:07",
			VideoURL:   "https://cdn.example/" + id,
			ShareURL:   "https://www.douyin.com/video/" + id,
			Platform:   "douyin",
		}
	}
	return out
}

func artifactNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// --- tests ---

func TestProcessCreator_IngestsNewVideos(t *testing.T) {
	f := newFixture(t, videos("v1", "v2"))
	var seen []Outcome
	report, err := f.eng.ProcessCreator(context.Background(), f.creator, Options{OnOutcome: func(o Outcome) { seen = append(seen, o) }})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, 2, report.Ingested)
	assert.Equal(t, 2, report.Transcribed)
	assert.Zero(t, report.Failed)
	require.Len(t, seen, 2)
	assert.Equal(t, "v1", seen[0].VideoID, "fetch order preserved")

	st := f.store(t)
	meta, ok, err := st.Metadata("v1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, meta.Transcribed)
	assert.Equal(t, int64(len("video-v1")), meta.FileSize)
	assert.Equal(t, "2026-02-03T04:05:06", meta.DownloadedAt)
	assert.Equal(t, "title v1", meta.Title)

	text, ok, err := st.Transcript("v1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, text, "转录")

	assert.Equal(t, []string{
		"2025-12-20_v1.json", "2025-12-20_v1.mp4", "2025-12-20_v1.txt",
		"2025-12-21_v2.json", "2025-12-21_v2.mp4", "2025-12-21_v2.txt",
	}, artifactNames(t, st.Dir()))

	c, err := f.reg.Get("Name")
	require.NoError(t, err)
	assert.NotEmpty(t, c.LastCheck)

	require.Len(t, f.rec.runs, 1)
	assert.Equal(t, history.ModeIngest, f.rec.runs[0].Mode)
	assert.Equal(t, 2, f.rec.runs[0].Ingested)
}

func TestProcessCreator_Idempotent(t *testing.T) {
	f := newFixture(t, videos("v1", "v2", "v3"))
	_, err := f.eng.ProcessCreator(context.Background(), f.creator, Options{})
	require.NoError(t, err)
	before := artifactNames(t, f.store(t).Dir())
	downloads := len(f.adapter.downloads)

	report, err := f.eng.ProcessCreator(context.Background(), f.creator, Options{})
	require.NoError(t, err)
	assert.Zero(t, report.New)
	assert.Equal(t, before, artifactNames(t, f.store(t).Dir()))
	assert.Equal(t, downloads, len(f.adapter.downloads), "no re-download")
}

func TestProcessCreator_PartialFailureIsolation(t *testing.T) {
	f := newFixture(t, videos("v1", "v2", "v3", "v4", "v5"))
	f.adapter.failIDs["v3"] = true

	report, err := f.eng.ProcessCreator(context.Background(), f.creator, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Ingested)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, StatusDownloadFailed, report.Outcomes[2].Status)
	assert.Error(t, report.Outcomes[2].Err)

	st := f.store(t)
	for _, id := range []string{"v1", "v2", "v4", "v5"} {
		ok, err := st.Exists(id)
		require.NoError(t, err)
		assert.True(t, ok, id)
	}
	ok, err := st.Exists("v3")
	require.NoError(t, err)
	assert.False(t, ok)

	c, err := f.reg.Get("Name")
	require.NoError(t, err)
	assert.NotEmpty(t, c.LastCheck)

	// the failed video is retried on the next cycle
	delete(f.adapter.failIDs, "v3")
	report, err = f.eng.ProcessCreator(context.Background(), f.creator, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, 1, report.Ingested)
}

func TestProcessCreator_TranscriptionFailureKeepsVideo(t *testing.T) {
	f := newFixture(t, videos("v1"))
	f.tr.err = engine.ErrTranscription

	report, err := f.eng.ProcessCreator(context.Background(), f.creator, Options{})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	o := report.Outcomes[0]
	assert.Equal(t, StatusTranscribeFailed, o.Status)
	assert.True(t, o.Stored)
	assert.Equal(t, 1, report.Ingested)

	st := f.store(t)
	_, ok, err := st.VideoPath("v1")
	require.NoError(t, err)
	assert.True(t, ok)
	meta, ok, err := st.Metadata("v1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, meta.Transcribed)
	has, err := st.HasTranscript("v1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestProcessCreator_SkipTranscribe(t *testing.T) {
	f := newFixture(t, videos("v1"))
	report, err := f.eng.ProcessCreator(context.Background(), f.creator, Options{SkipTranscribe: true})
	require.NoError(t, err)
	assert.Empty(t, f.tr.calls)
	assert.Equal(t, StatusIngested, report.Outcomes[0].Status)
	assert.Zero(t, report.Transcribed)
}

func TestProcessCreator_FetchFailureKeepsLastCheck(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.fetchErr = engine.ErrPlatformAPI

	_, err := f.eng.ProcessCreator(context.Background(), f.creator, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrPlatformAPI))

	c, err := f.reg.Get("Name")
	require.NoError(t, err)
	assert.Empty(t, c.LastCheck)

	require.Len(t, f.rec.runs, 1)
	assert.NotEmpty(t, f.rec.runs[0].Error)
}

func TestProcessCreator_NoNewVideosStillTouches(t *testing.T) {
	f := newFixture(t, nil)
	report, err := f.eng.ProcessCreator(context.Background(), f.creator, Options{})
	require.NoError(t, err)
	assert.Zero(t, report.New)
	c, err := f.reg.Get("Name")
	require.NoError(t, err)
	assert.NotEmpty(t, c.LastCheck)
}

func TestProcessCreator_ScratchCleanedUp(t *testing.T) {
	f := newFixture(t, videos("v1", "v2"))
	f.adapter.failIDs["v2"] = true
	_, err := f.eng.ProcessCreator(context.Background(), f.creator, Options{})
	require.NoError(t, err)
	assert.Empty(t, artifactNames(t, f.eng.Cfg.ScratchDir))
}

func TestProcessCreator_SkipsUnsafeIDs(t *testing.T) {
	vs := videos("v1", "../../escaped", "a/b")
	f := newFixture(t, vs)

	report, err := f.eng.ProcessCreator(context.Background(), f.creator, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, []string{"v1"}, f.adapter.downloads)
	assert.Equal(t, []string{"2025-12-20_v1.json", "2025-12-20_v1.mp4", "2025-12-20_v1.txt"},
		artifactNames(t, f.store(t).Dir()))

	report, err = f.eng.ProcessCreator(context.Background(), f.creator, Options{})
	require.NoError(t, err)
	assert.Zero(t, report.New)
	assert.Equal(t, []string{"v1"}, f.adapter.downloads, "unsafe ids are never downloaded")
}

func TestProcessCreator_CancelledBatchKeepsLastCheck(t *testing.T) {
	f := newFixture(t, videos("v1", "v2", "v3"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	report, err := f.eng.ProcessCreator(ctx, f.creator, Options{OnOutcome: func(Outcome) { cancel() }})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.True(t, errors.Is(report.Err, context.Canceled))

	c, err := f.reg.Get("Name")
	require.NoError(t, err)
	assert.Empty(t, c.LastCheck)

	require.Len(t, f.rec.runs, 1)
	assert.NotEmpty(t, f.rec.runs[0].Error)
}

func TestProcessCreator_UnsupportedPlatform(t *testing.T) {
	f := newFixture(t, nil)
	f.eng.NewAdapter = platform.New
	c := f.creator
	c.Platform = "myspace"
	_, err := f.eng.ProcessCreator(context.Background(), c, Options{})
	assert.True(t, errors.Is(err, engine.ErrUnsupportedPlatform))
}

func TestBackfill(t *testing.T) {
	f := newFixture(t, videos("v1", "v2"))
	_, err := f.eng.ProcessCreator(context.Background(), f.creator, Options{SkipTranscribe: true})
	require.NoError(t, err)

	// a payload with no metadata record at all
	st := f.store(t)
	src := filepath.Join(t.TempDir(), "x.mp4")
	require.NoError(t, os.WriteFile(src, []byte("orphan"), 0o644))
	_, err = st.SaveVideo("orphan", src, "2025-11-11T00:00:00")
	require.NoError(t, err)

	var seen []Outcome
	report, err := f.eng.Backfill(context.Background(), f.creator, Options{OnOutcome: func(o Outcome) { seen = append(seen, o) }})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Transcribed)
	assert.Zero(t, report.Failed)
	assert.Len(t, seen, 3)

	meta, ok, err := st.Metadata("v1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, meta.Transcribed)
	assert.Equal(t, "title v1", meta.Title, "existing metadata is preserved")

	orphan, ok, err := st.Metadata("orphan")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, orphan.Transcribed)
	assert.Equal(t, "2025-11-11", orphan.CreateTime)
	assert.Equal(t, int64(len("orphan")), orphan.FileSize)

	// transcripts land next to their videos, not under a new stem
	assert.Contains(t, artifactNames(t, st.Dir()), "2025-11-11_orphan.txt")

	pending, err := st.PendingTranscripts()
	require.NoError(t, err)
	assert.Empty(t, pending)

	last := f.rec.runs[len(f.rec.runs)-1]
	assert.Equal(t, history.ModeBackfill, last.Mode)
}

func TestBackfill_FailureIsolation(t *testing.T) {
	f := newFixture(t, videos("v1", "v2"))
	_, err := f.eng.ProcessCreator(context.Background(), f.creator, Options{SkipTranscribe: true})
	require.NoError(t, err)
	f.tr.err = engine.ErrTranscription

	report, err := f.eng.Backfill(context.Background(), f.creator, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	assert.Len(t, f.tr.calls, 2, "every pending video is attempted")
}

func TestBackfill_NoTranscriber(t *testing.T) {
	f := newFixture(t, nil)
	f.eng.Transcriber = nil
	_, err := f.eng.Backfill(context.Background(), f.creator, Options{})
	assert.True(t, errors.Is(err, engine.ErrConfiguration))
}

func TestRunAll_ContinuesPastFailures(t *testing.T) {
	f := newFixture(t, videos("v1"))
	_, err := f.reg.Add("Broken", "myspace", "id-b", 24)
	require.NoError(t, err)
	_, err = f.reg.Add("Off", "douyin", "id-off", 24)
	require.NoError(t, err)
	require.NoError(t, f.reg.SetEnabled("Off", false))
	_, err = f.reg.Add("Last", "douyin", "id-last", 24)
	require.NoError(t, err)

	f.eng.NewAdapter = func(name string, cfg *engine.Config) (platform.Adapter, error) {
		if name == "douyin" {
			return f.adapter, nil
		}
		return platform.New(name, cfg)
	}

	reports := f.eng.RunAll(context.Background(), Options{SkipTranscribe: true})
	require.Len(t, reports, 3, "disabled creators are skipped")
	assert.Equal(t, "Name", reports[0].Creator)
	assert.NoError(t, reports[0].Err)
	assert.Equal(t, "Broken", reports[1].Creator)
	assert.True(t, errors.Is(reports[1].Err, engine.ErrUnsupportedPlatform))
	assert.Equal(t, "Last", reports[2].Creator)
	assert.Equal(t, 1, reports[2].Ingested)
}

func TestRunCreator_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.eng.RunCreator(context.Background(), "nobody", Options{})
	assert.True(t, errors.Is(err, engine.ErrNotFound))
}
