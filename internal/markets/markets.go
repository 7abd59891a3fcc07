// Package markets keeps the top-markets listing of each observed currency
// fresh.
package markets

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
	Value        = model.CachedValue[model.TopMarkets]
	Update       = coordinator.Update[Value]
	Subscription = coordinator.Subscription[Value]
)

type Config struct {
	Expiration       time.Duration
	Buffer           time.Duration
	Retry            time.Duration
	SyncTimeout      time.Duration
	FailureRetention time.Duration
	ObserverBuffer   int
	// Limit is the listing size requested from the provider.
	Limit int
}

type Service struct {
	provider provider.MarketProvider
	cfg      Config
	clock    clockwork.Clock
	logger   *slog.Logger

	coord *coordinator.Coordinator[key.MarketsKey, string, Value]
	cache *cache.Manager[key.MarketsKey, string, model.TopMarkets]
}

func New(p provider.MarketProvider, st store.Store[key.MarketsKey, model.TopMarkets], cfg Config, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	s := &Service{provider: p, cfg: cfg, clock: clock, logger: logger.With("domain", "markets")}
	s.coord = coordinator.New[key.MarketsKey, string, Value](s.newScheduler, coordinator.Config{
		Buffer:           cfg.ObserverBuffer,
		FailureRetention: cfg.FailureRetention,
		Clock:            clock,
		Logger:           s.logger,
	})
	s.cache = cache.New[key.MarketsKey, string, model.TopMarkets](
		st, s.coord,
		func(k key.MarketsKey) string { return k.Currency },
		func(key.MarketsKey) time.Duration { return cfg.Expiration },
		cache.WithClock(clock), cache.WithLogger(s.logger),
	)
	return s
}

func (s *Service) newScheduler(currency string) coordinator.Scheduler {
	return scheduler.New("markets/"+currency, &source{svc: s, key: key.MarketsKey{Currency: currency}}, scheduler.Config{
		ExpirationInterval: s.cfg.Expiration,
		BufferInterval:     s.cfg.Buffer,
		RetryInterval:      s.cfg.Retry,
		SyncTimeout:        s.cfg.SyncTimeout,
	}, s.clock, s.logger)
}

func normalize(k key.MarketsKey) key.MarketsKey {
	return key.MarketsKey{Currency: aggregate.NormalizeCurrency(k.Currency)}
}

func (s *Service) Get(ctx context.Context, k key.MarketsKey) (Value, bool, error) {
	return s.cache.Read(ctx, normalize(k))
}

// Observe streams the whole listing of a currency. A listing key names no
// coins, so a new observer never forces a fetch.
func (s *Service) Observe(k key.MarketsKey) (*Subscription, error) {
	k = normalize(k)
	if k.Currency == "" {
		return nil, errors.New("markets: empty currency")
	}
	return s.coord.Subscribe(k)
}

func (s *Service) Refresh() { s.coord.RefreshAll() }

func (s *Service) ForceRefresh(currency string) bool {
	return s.coord.ForceRefresh(aggregate.NormalizeCurrency(currency))
}

func (s *Service) OnReachable() { s.coord.AutoScheduleAll() }

func (s *Service) Stats() coordinator.Stats { return s.coord.Stats() }

func (s *Service) Close() { s.coord.Close() }

type source struct {
	svc *Service
	key key.MarketsKey
}

func (src *source) LastSyncTime(ctx context.Context) (time.Time, bool) {
	return src.svc.cache.LastSyncTimestamp(ctx, []key.MarketsKey{src.key})
}

func (src *source) NotifyExpired(ctx context.Context) {
	src.svc.cache.NotifyExpired(ctx, []key.MarketsKey{src.key})
}

func (src *source) Sync(ctx context.Context) error {
	currency := src.key.Currency
	list, err := src.svc.provider.TopMarkets(ctx, currency, src.svc.cfg.Limit)
	if err == nil && len(list) == 0 {
		err = provider.ErrNoData
	}
	if err != nil {
		if provider.IsPermanent(err) {
			src.svc.coord.Fail(currency, err)
		}
		return fmt.Errorf("top markets %s: %w", currency, err)
	}
	top := model.TopMarkets{Currency: currency, Markets: list, Timestamp: src.svc.clock.Now()}
	return src.svc.cache.HandleUpdated(ctx, []model.TopMarkets{top})
}
