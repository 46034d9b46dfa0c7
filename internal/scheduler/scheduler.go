// Package scheduler fires one ingestion cycle per creator at that creator's
// own interval. Each creator gets its own goroutine and ticker; the job set
// is owned by the Scheduler value and torn down by Stop.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/registry"
)

// RunFunc runs one cycle for a creator. Its context is detached from the
// scheduler's, so stopping never cancels a run in flight.
type RunFunc func(ctx context.Context, c registry.Creator) error

// TickerFunc returns a channel firing every d and a func releasing it.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

// Lister supplies the creators to schedule.
type Lister interface {
	ListEnabled() []registry.Creator
}

// JobInfo describes one scheduled creator.
type JobInfo struct {
	Creator  string        `json:"creator"`
	Interval time.Duration `json:"interval"`
	NextRun  time.Time     `json:"next_run"`
	LastRun  time.Time     `json:"last_run,omitzero"`
	Running  bool          `json:"running"`
}

type job struct {
	creator  registry.Creator
	interval time.Duration
	stopTick func()
	done     chan struct{}

	nextRun time.Time
	lastRun time.Time
	running bool
}

// Scheduler is safe for concurrent use.
type Scheduler struct {
	source    Lister
	run       RunFunc
	newTicker TickerFunc
	now       func() time.Time

	mu      sync.Mutex
	jobs    map[string]*job
	started bool

	loops    sync.WaitGroup
	inflight sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTicker replaces time.NewTicker.
func WithTicker(f TickerFunc) Option { return func(s *Scheduler) { s.newTicker = f } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// New returns a stopped scheduler.
func New(source Lister, run RunFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:    source,
		run:       run,
		newTicker: stdTicker,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func stdTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Start reads the enabled creators once and schedules each. The first run
// happens one interval after start. Starting twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		slog.Warn("scheduler: already running")
		return
	}
	s.started = true
	s.jobs = make(map[string]*job)

	runCtx := context.WithoutCancel(ctx)
	start := s.now()
	for _, c := range s.source.ListEnabled() {
		if _, dup := s.jobs[c.Name]; dup {
			continue
		}
		interval := c.Interval()
		ch, stop := s.newTicker(interval)
		j := &job{
			creator:  c,
			interval: interval,
			stopTick: stop,
			done:     make(chan struct{}),
			nextRun:  start.Add(interval),
		}
		s.jobs[c.Name] = j
		s.loops.Add(1)
		go s.loop(ctx, runCtx, j, ch)
		slog.Info("scheduler: job added",
			slog.String("creator", c.Name),
			slog.Duration("interval", interval),
			slog.Time("next_run", j.nextRun),
		)
	}
	slog.Info("scheduler: started", slog.Int("jobs", len(s.jobs)))
}

func (s *Scheduler) loop(ctx, runCtx context.Context, j *job, ticks <-chan time.Time) {
	defer s.loops.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.done:
			return
		case <-ticks:
			s.fire(runCtx, j)
		}
	}
}

// fire starts a run unless the previous one for the same creator is still going.
func (s *Scheduler) fire(ctx context.Context, j *job) {
	s.mu.Lock()
	now := s.now()
	j.nextRun = now.Add(j.interval)
	if j.running {
		s.mu.Unlock()
		slog.Warn("scheduler: previous run still in progress, skipping tick",
			slog.String("creator", j.creator.Name))
		return
	}
	j.running = true
	j.lastRun = now
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		defer func() {
			s.mu.Lock()
			j.running = false
			s.mu.Unlock()
		}()
		if err := s.run(ctx, j.creator); err != nil {
			slog.Error("scheduler: run failed",
				slog.String("creator", j.creator.Name),
				slog.Any("error", err),
			)
		}
	}()
}

// Stop releases every ticker and drops the job set. Runs in flight keep
// going; use Wait to drain them. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	for _, j := range s.jobs {
		close(j.done)
		j.stopTick()
	}
	s.jobs = nil
	s.started = false
	s.mu.Unlock()

	s.loops.Wait()
	slog.Info("scheduler: stopped")
}

// Wait blocks until every in-flight run has returned.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Jobs lists scheduled creators by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for name, j := range s.jobs {
		out = append(out, JobInfo{
			Creator:  name,
			Interval: j.interval,
			NextRun:  j.nextRun,
			LastRun:  j.lastRun,
			Running:  j.running,
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Creator < out[k].Creator })
	return out
}
