// Package scheduler runs one self-rescheduling poll loop per group.
//
// A Scheduler moves between Idle, Scheduled and Syncing. A timer fire first
// emits a staleness notice (once per expiration window) and then starts a
// single fetch. Success re-arms from the cache age, failure re-arms after a
// fixed retry interval, as does a success that left a member uncached.
// Exponential backoff is the provider layer's concern.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Source is what a Scheduler polls.
type Source interface {
	// LastSyncTime returns the age anchor of the group's cached data;
	// false means at least one member is missing.
	LastSyncTime(ctx context.Context) (time.Time, bool)
	Sync(ctx context.Context) error
	// NotifyExpired re-emits whatever is cached, tagged as stale.
	NotifyExpired(ctx context.Context)
}

type Config struct {
	ExpirationInterval time.Duration
	BufferInterval     time.Duration
	RetryInterval      time.Duration
	// SyncTimeout bounds one Sync call. Zero means no bound.
	SyncTimeout time.Duration
}

type Scheduler struct {
	name   string
	src    Source
	cfg    Config
	clock  clockwork.Clock
	logger *slog.Logger

	mu                 sync.Mutex
	timer              clockwork.Timer
	gen                uint64
	syncing            bool
	expirationNotified bool
	forcePending       bool
	stopped            bool
}

func New(name string, src Source, cfg Config, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		name:   name,
		src:    src,
		cfg:    cfg,
		clock:  clock,
		logger: logger.With("scheduler", name),
	}
}

func (s *Scheduler) Start() { s.AutoSchedule() }

// AutoSchedule re-arms the timer from the age of the cached data. It is a
// no-op while a fetch is in flight; the fetch re-arms on completion.
func (s *Scheduler) AutoSchedule() {
	last, ok := s.src.LastSyncTime(context.Background())
	s.schedule(s.Delay(last, ok))
}

// ForceSchedule fires as soon as possible. While a fetch is in flight the
// request is absorbed and the next fire happens right after it succeeds.
func (s *Scheduler) ForceSchedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.syncing {
		s.forcePending = true
		return
	}
	s.armLocked(0)
}

// Stop disarms the timer and forbids any further scheduling. An in-flight
// fetch is left to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Syncing reports whether a fetch is in flight.
func (s *Scheduler) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// Delay computes the auto-schedule delay for data last synced at last.
func (s *Scheduler) Delay(last time.Time, known bool) time.Duration {
	if !known {
		return 0
	}
	d := s.cfg.ExpirationInterval - s.cfg.BufferInterval - s.clock.Since(last)
	return max(d, 0)
}

// afterSuccess re-arms from the age of the fresh data. A member still missing
// right after a successful fetch waits RetryInterval instead of refetching
// at once.
func (s *Scheduler) afterSuccess() {
	last, ok := s.src.LastSyncTime(context.Background())
	if !ok {
		s.schedule(s.cfg.RetryInterval)
		return
	}
	s.schedule(s.Delay(last, true))
}

func (s *Scheduler) schedule(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.syncing {
		return
	}
	s.armLocked(delay)
}

func (s *Scheduler) armLocked(delay time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.logger.Debug("scheduled", "delay", delay)
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen || s.syncing {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.syncing = true
	s.mu.Unlock()

	ctx := context.Background()
	last, known := s.src.LastSyncTime(ctx)

	s.mu.Lock()
	notify := !s.expirationNotified && (!known || s.clock.Since(last) >= s.cfg.ExpirationInterval)
	if notify {
		s.expirationNotified = true
	}
	s.mu.Unlock()

	if notify {
		s.src.NotifyExpired(ctx)
	}

	syncCtx := ctx
	if s.cfg.SyncTimeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, s.cfg.SyncTimeout)
		defer cancel()
	}
	err := s.src.Sync(syncCtx)

	s.mu.Lock()
	s.syncing = false
	force := s.forcePending
	s.forcePending = false
	stopped := s.stopped
	if err == nil {
		s.expirationNotified = false
	}
	s.mu.Unlock()

	if stopped {
		return
	}
	switch {
	case err != nil:
		s.logger.Warn("sync failed", "err", err, "retry_in", s.cfg.RetryInterval)
		s.schedule(s.cfg.RetryInterval)
	case force:
		s.schedule(0)
	default:
		s.afterSuccess()
	}
}
