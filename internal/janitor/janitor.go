// Package janitor periodically purges cached records nobody refreshed.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
)

// Purger deletes records last written before cutoff.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Task purges one store of records older than MaxAge.
type Task struct {
	Name   string
	Store  Purger
	MaxAge time.Duration
}

type Janitor struct {
	cron     *gocron.Scheduler
	interval time.Duration
	tasks    []Task
	clock    clockwork.Clock
	logger   *slog.Logger
}

func New(interval time.Duration, clock clockwork.Clock, logger *slog.Logger, tasks ...Task) *Janitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		cron:     gocron.NewScheduler(time.UTC),
		interval: interval,
		tasks:    tasks,
		clock:    clock,
		logger:   logger.With("component", "janitor"),
	}
}

// Start schedules the purge every interval, running once right away.
func (j *Janitor) Start() error {
	j.cron.SingletonModeAll()
	if _, err := j.cron.Every(j.interval).Do(j.run); err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	j.cron.StartAsync()
	j.logger.Info("janitor started", "interval", j.interval, "tasks", len(j.tasks))
	return nil
}

func (j *Janitor) Stop() {
	j.cron.Stop()
}

func (j *Janitor) run() {
	j.RunOnce(context.Background())
}

// RunOnce runs every task and returns the number of purged records.
// A failing task is logged and does not stop the others.
func (j *Janitor) RunOnce(ctx context.Context) int {
	total := 0
	now := j.clock.Now()
	for _, t := range j.tasks {
		n, err := t.Store.PurgeOlderThan(ctx, now.Add(-t.MaxAge))
		if err != nil {
			j.logger.Warn("purge failed", "task", t.Name, "err", err)
			continue
		}
		if n > 0 {
			j.logger.Info("purged", "task", t.Name, "records", n)
		}
		total += n
	}
	return total
}
