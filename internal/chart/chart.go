// Package chart keeps chart series fresh and streams them to observers.
// Every series is its own scheduling group.
package chart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"marketkit/internal/aggregate"
	"marketkit/internal/cache"
	"marketkit/internal/coordinator"
	"marketkit/internal/key"
	"marketkit/internal/model"
	"marketkit/internal/provider"
	"marketkit/internal/scheduler"
	"marketkit/internal/store"
)

type (
	Value        = model.CachedValue[model.ChartInfo]
	Update       = coordinator.Update[Value]
	Subscription = coordinator.Subscription[Value]
)

type Config struct {
	// Buffer is capped at half of each chart type's expiration interval.
	Buffer           time.Duration
	Retry            time.Duration
	SyncTimeout      time.Duration
	FailureRetention time.Duration
	ObserverBuffer   int
}

type Service struct {
	provider provider.ChartProvider
	cfg      Config
	clock    clockwork.Clock
	logger   *slog.Logger

	coord *coordinator.Coordinator[key.ChartKey, key.ChartKey, Value]
	cache *cache.Manager[key.ChartKey, key.ChartKey, model.ChartInfo]
}

func New(p provider.ChartProvider, st store.Store[key.ChartKey, model.ChartInfo], cfg Config, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{provider: p, cfg: cfg, clock: clock, logger: logger.With("domain", "chart")}
	s.coord = coordinator.New[key.ChartKey, key.ChartKey, Value](s.newScheduler, coordinator.Config{
		Buffer:           cfg.ObserverBuffer,
		FailureRetention: cfg.FailureRetention,
		Clock:            clock,
		Logger:           s.logger,
	})
	s.cache = cache.New[key.ChartKey, key.ChartKey, model.ChartInfo](
		st, s.coord,
		func(k key.ChartKey) key.ChartKey { return k },
		func(k key.ChartKey) time.Duration { return k.Type.ExpirationInterval() },
		cache.WithClock(clock), cache.WithLogger(s.logger),
	)
	return s
}

func (s *Service) newScheduler(k key.ChartKey) coordinator.Scheduler {
	exp := k.Type.ExpirationInterval()
	return scheduler.New("chart/"+k.String(), &source{svc: s, key: k}, scheduler.Config{
		ExpirationInterval: exp,
		BufferInterval:     min(s.cfg.Buffer, exp/2),
		RetryInterval:      s.cfg.Retry,
		SyncTimeout:        s.cfg.SyncTimeout,
	}, s.clock, s.logger)
}

func normalize(k key.ChartKey) key.ChartKey {
	k.Currency = aggregate.NormalizeCurrency(k.Currency)
	return k
}

// Get reads the cached series without touching the network.
func (s *Service) Get(ctx context.Context, k key.ChartKey) (Value, bool, error) {
	return s.cache.Read(ctx, normalize(k))
}

func (s *Service) Observe(k key.ChartKey) (*Subscription, error) {
	if k.CoinID == "" {
		return nil, errors.New("chart: empty coin id")
	}
	return s.coord.Subscribe(normalize(k))
}

// Refresh forces every observed series to fetch now.
func (s *Service) Refresh() { s.coord.RefreshAll() }

// ForceRefresh forces one series and reports whether it is observed.
func (s *Service) ForceRefresh(k key.ChartKey) bool {
	return s.coord.ForceRefresh(normalize(k))
}

func (s *Service) OnReachable() { s.coord.AutoScheduleAll() }

func (s *Service) Stats() coordinator.Stats { return s.coord.Stats() }

func (s *Service) Close() { s.coord.Close() }

type source struct {
	svc *Service
	key key.ChartKey
}

func (src *source) LastSyncTime(ctx context.Context) (time.Time, bool) {
	return src.svc.cache.LastSyncTimestamp(ctx, []key.ChartKey{src.key})
}

func (src *source) NotifyExpired(ctx context.Context) {
	src.svc.cache.NotifyExpired(ctx, []key.ChartKey{src.key})
}

func (src *source) Sync(ctx context.Context) error {
	points, err := src.svc.provider.ChartPoints(ctx, src.key)
	if err != nil {
		if provider.IsPermanent(err) {
			src.svc.coord.Fail(src.key, err)
		}
		return fmt.Errorf("chart %s: %w", src.key, err)
	}
	info := model.ChartInfo{Key: src.key, Points: points, Timestamp: src.svc.clock.Now()}
	return src.svc.cache.HandleUpdated(ctx, []model.ChartInfo{info})
}
