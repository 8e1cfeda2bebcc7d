// Package scheduler runs the agent's periodic jobs: ranged intervals
// with jitter, fixed-hour daily jobs, and a weekly planning slot. Every
// job is supervised, singleton (max one running instance), and stops
// cleanly on context cancellation.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tribune/internal/config"
	"tribune/internal/logging"
)

// JobFunc is one job body. Errors are logged, never fatal.
type JobFunc func(ctx context.Context) error

type jobKind int

const (
	kindInterval jobKind = iota
	kindDaily
	kindWeekly
)

type job struct {
	name   string
	kind   jobKind
	run    JobFunc
	onTick func(next time.Duration)

	// interval jobs
	minInterval time.Duration
	maxInterval time.Duration
	jitter      time.Duration

	// daily and weekly jobs
	hour    int
	weekday time.Weekday

	running atomic.Bool
}

// Scheduler supervises the registered jobs.
type Scheduler struct {
	mu   sync.Mutex
	jobs []*job
	rng  *rand.Rand
	now  func() time.Time

	// tracks manually triggered runs so shutdown waits for them
	triggered sync.WaitGroup
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		rng: rand.New(rand.NewSource(rand.Int63())),
		now: time.Now,
	}
}

// AddInterval registers a job that reschedules itself within the range,
// plus or minus the jitter.
func (s *Scheduler) AddInterval(name string, r config.JobRange, fn JobFunc) {
	minInterval := time.Duration(r.MinMinutes) * time.Minute
	maxInterval := time.Duration(r.MaxMinutes) * time.Minute
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	s.add(&job{
		name:        name,
		kind:        kindInterval,
		run:         fn,
		minInterval: minInterval,
		maxInterval: maxInterval,
		jitter:      time.Duration(r.JitterMinutes) * time.Minute,
	})
}

// AddDaily registers a job that fires once per day at the local hour.
func (s *Scheduler) AddDaily(name string, hour int, fn JobFunc) {
	s.add(&job{name: name, kind: kindDaily, run: fn, hour: hour})
}

// AddWeekly registers a job that fires once per week on the given
// weekday and local hour.
func (s *Scheduler) AddWeekly(name string, weekday time.Weekday, hour int, fn JobFunc) {
	s.add(&job{name: name, kind: kindWeekly, run: fn, hour: hour, weekday: weekday})
}

func (s *Scheduler) add(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.name)
	}
	return names
}

// Trigger runs a job by name immediately, refusing when an instance is
// already running. Reports whether the job was started.
func (s *Scheduler) Trigger(ctx context.Context, name string) bool {
	s.mu.Lock()
	var target *job
	for _, j := range s.jobs {
		if j.name == name {
			target = j
			break
		}
	}
	s.mu.Unlock()
	if target == nil {
		return false
	}
	s.triggered.Add(1)
	go func() {
		defer s.triggered.Done()
		s.runOnce(ctx, target)
	}()
	return true
}

// Run supervises every registered job until the context is canceled.
// Running jobs complete their current tick before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	jobs := append([]*job(nil), s.jobs...)
	s.mu.Unlock()

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			s.loop(ctx, j)
			return nil
		})
	}
	logging.Scheduler("Supervising %d jobs", len(jobs))
	err := g.Wait()
	s.triggered.Wait()
	return err
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	for {
		wait := s.nextWait(j)
		logging.SchedulerDebug("Job %s next run in %s", j.name, wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logging.Scheduler("Job %s stopped", j.name)
			return
		case <-timer.C:
		}
		s.runOnce(ctx, j)
	}
}

// runOnce executes one tick with the singleton guard held.
func (s *Scheduler) runOnce(ctx context.Context, j *job) {
	if !j.running.CompareAndSwap(false, true) {
		logging.Scheduler("Job %s already running, skipping tick", j.name)
		return
	}
	defer j.running.Store(false)

	timer := logging.StartTimer(logging.CategoryScheduler, j.name)
	defer timer.Stop()

	defer func() {
		if r := recover(); r != nil {
			logging.Scheduler("Job %s panicked: %v", j.name, r)
		}
	}()

	if err := j.run(ctx); err != nil {
		logging.Scheduler("Job %s failed: %v", j.name, err)
	}
}

// nextWait computes the sleep before the next tick.
func (s *Scheduler) nextWait(j *job) time.Duration {
	now := s.now()

	switch j.kind {
	case kindDaily:
		next := time.Date(now.Year(), now.Month(), now.Day(), j.hour, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		return next.Sub(now)

	case kindWeekly:
		next := time.Date(now.Year(), now.Month(), now.Day(), j.hour, 0, 0, 0, now.Location())
		for next.Weekday() != j.weekday || !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		return next.Sub(now)

	default:
		s.mu.Lock()
		defer s.mu.Unlock()
		wait := j.minInterval
		if span := j.maxInterval - j.minInterval; span > 0 {
			wait += time.Duration(s.rng.Int63n(int64(span)))
		}
		if j.jitter > 0 {
			wait += time.Duration(s.rng.Int63n(int64(2*j.jitter))) - j.jitter
		}
		if wait < time.Second {
			wait = time.Second
		}
		return wait
	}
}
