package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister []registry.Creator

func (l staticLister) ListEnabled() []registry.Creator { return l }

// fakeTickers hands out one unbuffered channel per interval so a test send
// returns only after the job loop has taken the tick.
type fakeTickers struct {
	mu      sync.Mutex
	chans   map[time.Duration]chan time.Time
	stopped atomic.Int32
}

func newFakeTickers() *fakeTickers {
	return &fakeTickers{chans: map[time.Duration]chan time.Time{}}
}

func (f *fakeTickers) new(d time.Duration) (<-chan time.Time, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan time.Time)
	f.chans[d] = ch
	return ch, func() { f.stopped.Add(1) }
}

func (f *fakeTickers) tick(t *testing.T, d time.Duration) {
	t.Helper()
	f.mu.Lock()
	ch, ok := f.chans[d]
	f.mu.Unlock()
	require.True(t, ok, "no ticker for %s", d)
	select {
	case ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatalf("tick %s not consumed", d)
	}
}

func (f *fakeTickers) intervals() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []time.Duration
	for d := range f.chans {
		out = append(out, d)
	}
	return out
}

func creator(name string, hours int) registry.Creator {
	return registry.Creator{Name: name, Platform: "douyin", ID: "id-" + name, IntervalHours: hours}
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestIntervalIndependence(t *testing.T) {
	ticks := newFakeTickers()
	var mu sync.Mutex
	var ran []string
	s := New(staticLister{creator("daily", 24), creator("bidaily", 48)},
		func(_ context.Context, c registry.Creator) error {
			mu.Lock()
			ran = append(ran, c.Name)
			mu.Unlock()
			return nil
		},
		WithTicker(ticks.new),
		WithClock(func() time.Time { return epoch }),
	)
	s.Start(context.Background())
	defer s.Stop()

	assert.ElementsMatch(t, []time.Duration{24 * time.Hour, 48 * time.Hour}, ticks.intervals())

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "bidaily", jobs[0].Creator)
	assert.Equal(t, epoch.Add(48*time.Hour), jobs[0].NextRun)
	assert.Equal(t, "daily", jobs[1].Creator)
	assert.Equal(t, epoch.Add(24*time.Hour), jobs[1].NextRun)

	assert.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ran) > 0
	}, 50*time.Millisecond, 5*time.Millisecond, "no run before the first tick")

	ticks.tick(t, 24*time.Hour)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ran) == 1
	}, time.Second, 5*time.Millisecond)
	s.Wait()
	mu.Lock()
	assert.Equal(t, []string{"daily"}, ran)
	mu.Unlock()
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	ticks := newFakeTickers()
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var calls atomic.Int32
	s := New(staticLister{creator("slow", 1)},
		func(context.Context, registry.Creator) error {
			calls.Add(1)
			started <- struct{}{}
			<-release
			return nil
		},
		WithTicker(ticks.new),
	)
	s.Start(context.Background())

	ticks.tick(t, time.Hour)
	<-started
	require.True(t, s.Jobs()[0].Running)

	ticks.tick(t, time.Hour)
	assert.Never(t, func() bool { return calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	s.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, s.Jobs()[0].Running)
	assert.False(t, s.Jobs()[0].LastRun.IsZero())
	s.Stop()
}

func TestStopDoesNotCancelInFlight(t *testing.T) {
	ticks := newFakeTickers()
	release := make(chan struct{})
	started := make(chan struct{})
	var ctxErr atomic.Value
	s := New(staticLister{creator("a", 1)},
		func(ctx context.Context, _ registry.Creator) error {
			close(started)
			<-release
			if ctx.Err() != nil {
				ctxErr.Store(ctx.Err())
			}
			return nil
		},
		WithTicker(ticks.new),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	ticks.tick(t, time.Hour)
	<-started

	cancel()
	s.Stop()
	assert.False(t, s.Running())
	assert.Empty(t, s.Jobs())
	assert.Equal(t, int32(1), ticks.stopped.Load())

	close(release)
	s.Wait()
	assert.Nil(t, ctxErr.Load(), "run context must survive stop")
}

func TestStartStopIdempotent(t *testing.T) {
	ticks := newFakeTickers()
	s := New(staticLister{creator("a", 1)}, func(context.Context, registry.Creator) error { return nil },
		WithTicker(ticks.new))

	s.Stop() // stopped: no-op
	s.Start(context.Background())
	s.Start(context.Background())
	assert.Len(t, s.Jobs(), 1)
	s.Stop()
	s.Stop()
	assert.Equal(t, int32(1), ticks.stopped.Load())
}

func TestRunErrorDoesNotStopJob(t *testing.T) {
	ticks := newFakeTickers()
	var calls atomic.Int32
	s := New(staticLister{creator("flaky", 2)},
		func(context.Context, registry.Creator) error {
			calls.Add(1)
			return errors.New("platform down")
		},
		WithTicker(ticks.new))
	s.Start(context.Background())
	defer s.Stop()

	idleAfter := func(n int32) func() bool {
		return func() bool { return calls.Load() == n && !s.Jobs()[0].Running }
	}
	ticks.tick(t, 2*time.Hour)
	require.Eventually(t, idleAfter(1), time.Second, 5*time.Millisecond)
	ticks.tick(t, 2*time.Hour)
	require.Eventually(t, idleAfter(2), time.Second, 5*time.Millisecond)
}

func TestDefaultIntervalForLegacyRecord(t *testing.T) {
	ticks := newFakeTickers()
	s := New(staticLister{creator("legacy", 0)}, func(context.Context, registry.Creator) error { return nil },
		WithTicker(ticks.new))
	s.Start(context.Background())
	defer s.Stop()
	assert.Equal(t, []time.Duration{registry.DefaultIntervalHours * time.Hour}, ticks.intervals())
}
