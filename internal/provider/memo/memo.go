// Package memo wraps a rate provider with a short per-coin memo, so a batch
// only asks upstream for coins it has not seen within the TTL.
package memo

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"marketkit/internal/key"
	"marketkit/internal/model"
	"marketkit/internal/provider"
)

var realClock = clockwork.NewRealClock()

type entry struct {
	expiresAt time.Time
	rate      model.Rate
}

// Rates memoizes results per (coin, currency) for TTL. A nil Clock means the
// real clock.
type Rates struct {
	P        provider.RateProvider
	TTL      time.Duration
	MaxItems int
	Clock    clockwork.Clock

	mu    sync.RWMutex
	items map[key.PairKey]entry
}

func (m *Rates) Name() string { return m.P.Name() }

func (m *Rates) now() time.Time {
	if m.Clock == nil {
		return realClock.Now()
	}
	return m.Clock.Now()
}

// LatestRates serves memoized coins and fetches the rest. When the upstream
// fails and some coins were memoized, those are returned without the error.
func (m *Rates) LatestRates(ctx context.Context, coinIDs []string, currency string) ([]model.Rate, error) {
	if m.TTL <= 0 {
		return m.P.LatestRates(ctx, coinIDs, currency)
	}
	now := m.now()

	cached := make(map[string]model.Rate, len(coinIDs))
	var missing []string
	seen := make(map[string]struct{}, len(coinIDs))
	m.mu.RLock()
	for _, id := range coinIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if e, ok := m.items[key.PairKey{CoinID: id, Currency: currency}]; ok && now.Before(e.expiresAt) {
			cached[id] = e.rate
			continue
		}
		missing = append(missing, id)
	}
	m.mu.RUnlock()

	fresh := make(map[string]model.Rate, len(missing))
	if len(missing) > 0 {
		rates, err := m.P.LatestRates(ctx, missing, currency)
		if err != nil {
			if len(cached) > 0 {
				return collect(coinIDs, cached, nil), nil
			}
			return nil, err
		}
		for _, r := range rates {
			fresh[r.CoinID] = r
		}
		m.store(fresh, currency, now.Add(m.TTL))
	}
	return collect(coinIDs, cached, fresh), nil
}

func (m *Rates) store(fresh map[string]model.Rate, currency string, expiry time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[key.PairKey]entry, len(fresh))
	}
	for id, r := range fresh {
		m.items[key.PairKey{CoinID: id, Currency: currency}] = entry{expiresAt: expiry, rate: r}
	}
	if m.MaxItems <= 0 || len(m.items) <= m.MaxItems {
		return
	}
	now := m.now()
	for k, e := range m.items {
		if !now.Before(e.expiresAt) {
			delete(m.items, k)
		}
	}
	for k := range m.items {
		if len(m.items) <= m.MaxItems {
			break
		}
		delete(m.items, k)
	}
}

// collect returns rates in request order, each coin once.
func collect(coinIDs []string, cached, fresh map[string]model.Rate) []model.Rate {
	out := make([]model.Rate, 0, len(cached)+len(fresh))
	seen := make(map[string]struct{}, len(coinIDs))
	for _, id := range coinIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if r, ok := fresh[id]; ok {
			out = append(out, r)
		} else if r, ok := cached[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
