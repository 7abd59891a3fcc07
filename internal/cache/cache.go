// Package cache reads and writes cached records and publishes what changed.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"marketkit/internal/model"
	"marketkit/internal/store"
)

// Publisher receives cached values grouped by the group that owns them.
type Publisher[G comparable, R model.Entry] interface {
	Publish(group G, values []model.CachedValue[R])
}

type Option func(*options)

type options struct {
	clock  clockwork.Clock
	logger *slog.Logger
}

func WithClock(c clockwork.Clock) Option { return func(o *options) { o.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// Manager sits between a store and the coordinator of one domain.
type Manager[K comparable, G comparable, R model.Record[K]] struct {
	store      store.Store[K, R]
	pub        Publisher[G, R]
	groupOf    func(K) G
	expiration func(K) time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger
}

func New[K comparable, G comparable, R model.Record[K]](
	st store.Store[K, R],
	pub Publisher[G, R],
	groupOf func(K) G,
	expiration func(K) time.Duration,
	opts ...Option,
) *Manager[K, G, R] {
	o := options{clock: clockwork.NewRealClock(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager[K, G, R]{
		store:      st,
		pub:        pub,
		groupOf:    groupOf,
		expiration: expiration,
		clock:      o.clock,
		logger:     o.logger,
	}
}

func (m *Manager[K, G, R]) value(r R) model.CachedValue[R] {
	return model.NewCachedValue(r, m.expiration(r.StoreKey()), m.clock.Now())
}

// Read returns the cached value for k, with Expired evaluated now.
func (m *Manager[K, G, R]) Read(ctx context.Context, k K) (model.CachedValue[R], bool, error) {
	r, ok, err := m.store.Read(ctx, k)
	if err != nil || !ok {
		return model.CachedValue[R]{}, false, err
	}
	return m.value(r), true, nil
}

// ReadAll returns the cached values for keys, skipping missing ones.
func (m *Manager[K, G, R]) ReadAll(ctx context.Context, keys []K) ([]model.CachedValue[R], error) {
	records, err := m.store.ReadAll(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]model.CachedValue[R], 0, len(records))
	for _, r := range records {
		out = append(out, m.value(r))
	}
	return out, nil
}

// LastSyncTimestamp returns the oldest write time among keys. It reports
// false when any key has no stored record, so a group with a missing member
// is resynced as a whole.
func (m *Manager[K, G, R]) LastSyncTimestamp(ctx context.Context, keys []K) (time.Time, bool) {
	if len(keys) == 0 {
		return time.Time{}, false
	}
	records, err := m.store.ReadAll(ctx, keys)
	if err != nil {
		m.logger.Warn("read last sync timestamp", "err", err)
		return time.Time{}, false
	}
	if len(records) < len(keys) {
		return time.Time{}, false
	}
	oldest := records[0].SyncedAt()
	for _, r := range records[1:] {
		if ts := r.SyncedAt(); ts.Before(oldest) {
			oldest = ts
		}
	}
	return oldest, true
}

// HandleUpdated writes records and then publishes them per group.
func (m *Manager[K, G, R]) HandleUpdated(ctx context.Context, records []R) error {
	if len(records) == 0 {
		return nil
	}
	if err := m.store.Write(ctx, records); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	m.publish(records)
	return nil
}

// NotifyExpired re-publishes whatever is cached for keys with Expired
// evaluated now. Nothing is published for keys without a record.
func (m *Manager[K, G, R]) NotifyExpired(ctx context.Context, keys []K) {
	records, err := m.store.ReadAll(ctx, keys)
	if err != nil {
		m.logger.Warn("read expired records", "err", err)
		return
	}
	m.publish(records)
}

func (m *Manager[K, G, R]) publish(records []R) {
	if m.pub == nil || len(records) == 0 {
		return
	}
	var order []G
	grouped := make(map[G][]model.CachedValue[R])
	for _, r := range records {
		g := m.groupOf(r.StoreKey())
		if _, ok := grouped[g]; !ok {
			order = append(order, g)
		}
		grouped[g] = append(grouped[g], m.value(r))
	}
	for _, g := range order {
		m.pub.Publish(g, grouped[g])
	}
}
