// Package rates keeps latest coin rates fresh and streams them to observers.
//
// Rates are polled per currency: one scheduler per currency fetches the
// union of every coin observed in that currency.
package rates

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
	Value        = model.CachedValue[model.Rate]
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
	// MissLimit is how many successful fetches in a row may leave a coin out
	// before the keys naming it fail with provider.ErrNoData. Defaults to 2.
	MissLimit int
}

type Service struct {
	provider provider.RateProvider
	cfg      Config
	clock    clockwork.Clock
	logger   *slog.Logger

	coord *coordinator.Coordinator[key.GroupKey, string, Value]
	cache *cache.Manager[key.PairKey, string, model.Rate]
}

func New(p provider.RateProvider, st store.Store[key.PairKey, model.Rate], cfg Config, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MissLimit < 1 {
		cfg.MissLimit = 2
	}
	s := &Service{provider: p, cfg: cfg, clock: clock, logger: logger.With("domain", "rates")}
	s.coord = coordinator.New[key.GroupKey, string, Value](s.newScheduler, coordinator.Config{
		Buffer:           cfg.ObserverBuffer,
		FailureRetention: cfg.FailureRetention,
		Clock:            clock,
		Logger:           s.logger,
	})
	s.cache = cache.New[key.PairKey, string, model.Rate](
		st, s.coord,
		func(k key.PairKey) string { return k.Currency },
		func(key.PairKey) time.Duration { return cfg.Expiration },
		cache.WithClock(clock), cache.WithLogger(s.logger),
	)
	return s
}

func (s *Service) newScheduler(currency string) coordinator.Scheduler {
	return scheduler.New("rates/"+currency, &source{svc: s, currency: currency, misses: make(map[string]int)}, scheduler.Config{
		ExpirationInterval: s.cfg.Expiration,
		BufferInterval:     s.cfg.Buffer,
		RetryInterval:      s.cfg.Retry,
		SyncTimeout:        s.cfg.SyncTimeout,
	}, s.clock, s.logger)
}

func normalize(k key.PairKey) key.PairKey {
	k.Currency = aggregate.NormalizeCurrency(k.Currency)
	return k
}

// Get reads the cached rate without touching the network.
func (s *Service) Get(ctx context.Context, k key.PairKey) (Value, bool, error) {
	return s.cache.Read(ctx, normalize(k))
}

// GetGroup reads the cached rates of a group; missing coins are skipped.
func (s *Service) GetGroup(ctx context.Context, k key.GroupKey) ([]Value, error) {
	k = key.NewGroupKey(k.EntityIDs(), aggregate.NormalizeCurrency(k.Currency))
	return s.cache.ReadAll(ctx, k.Pairs())
}

func (s *Service) Observe(k key.PairKey) (*Subscription, error) {
	return s.ObserveGroup(key.NewGroupKey([]string{k.CoinID}, k.Currency))
}

// ObserveGroup streams updates for a set of coins in one currency. Each
// update carries only coins of the group.
func (s *Service) ObserveGroup(k key.GroupKey) (*Subscription, error) {
	k = key.NewGroupKey(k.EntityIDs(), aggregate.NormalizeCurrency(k.Currency))
	if len(k.EntityIDs()) == 0 {
		return nil, errors.New("rates: empty coin set")
	}
	return s.coord.Subscribe(k)
}

// Refresh forces every active currency to fetch now.
func (s *Service) Refresh() { s.coord.RefreshAll() }

// ForceRefresh forces one currency and reports whether it is observed.
func (s *Service) ForceRefresh(currency string) bool {
	return s.coord.ForceRefresh(aggregate.NormalizeCurrency(currency))
}

func (s *Service) OnReachable() { s.coord.AutoScheduleAll() }

func (s *Service) Stats() coordinator.Stats { return s.coord.Stats() }

func (s *Service) Close() { s.coord.Close() }

// source is driven by a single scheduler, so Sync calls never overlap.
type source struct {
	svc      *Service
	currency string
	// misses counts consecutive successful fetches that left a coin out.
	misses map[string]int
}

func (src *source) keys() []key.PairKey {
	ids := src.svc.coord.EntityIDs(src.currency)
	keys := make([]key.PairKey, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, key.PairKey{CoinID: id, Currency: src.currency})
	}
	return keys
}

func (src *source) LastSyncTime(ctx context.Context) (time.Time, bool) {
	return src.svc.cache.LastSyncTimestamp(ctx, src.keys())
}

func (src *source) NotifyExpired(ctx context.Context) {
	src.svc.cache.NotifyExpired(ctx, src.keys())
}

func (src *source) Sync(ctx context.Context) error {
	ids := src.svc.coord.EntityIDs(src.currency)
	if len(ids) == 0 {
		return nil
	}
	rates, err := src.svc.provider.LatestRates(ctx, ids, src.currency)
	if err != nil {
		if provider.IsPermanent(err) {
			// None of the requested coins resolved. Keys that joined during
			// the fetch are left to the next one.
			src.svc.coord.FailEntities(src.currency, ids, fmt.Errorf("latest rates %s: %w", src.currency, err))
			clear(src.misses)
			return nil
		}
		return fmt.Errorf("latest rates %s: %w", src.currency, err)
	}

	now := src.svc.clock.Now()
	got := make(map[string]struct{}, len(rates))
	for i := range rates {
		rates[i].Currency = src.currency
		rates[i].Timestamp = now
		got[rates[i].CoinID] = struct{}{}
	}
	if err := src.svc.cache.HandleUpdated(ctx, rates); err != nil {
		return err
	}
	src.failMissing(ids, got)
	return nil
}

// failMissing fails the keys naming coins that were absent from MissLimit
// successful fetches in a row.
func (src *source) failMissing(requested []string, got map[string]struct{}) {
	var gone []string
	counted := make(map[string]int, len(src.misses))
	for _, id := range requested {
		if _, ok := got[id]; ok {
			continue
		}
		n := src.misses[id] + 1
		if n >= src.svc.cfg.MissLimit {
			gone = append(gone, id)
			continue
		}
		counted[id] = n
	}
	src.misses = counted
	if len(gone) == 0 {
		return
	}
	src.svc.logger.Warn("coins not served by any provider", "currency", src.currency, "coins", gone)
	src.svc.coord.FailEntities(src.currency, gone,
		fmt.Errorf("latest rates %s %v: %w", src.currency, gone, provider.ErrNoData))
}
