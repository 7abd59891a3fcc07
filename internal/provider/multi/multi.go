// Package multi fans a rate request out to several providers.
package multi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"marketkit/internal/aggregate"
	"marketkit/internal/model"
	"marketkit/internal/provider"
)

// Rates queries every provider concurrently and keeps the newest rate per
// (coin, currency). It fails only when every provider fails, and the failure
// is permanent only when every provider failed permanently.
type Rates struct {
	providers []provider.RateProvider
	clock     clockwork.Clock
	logger    *slog.Logger
}

func NewRates(clock clockwork.Clock, logger *slog.Logger, providers ...provider.RateProvider) *Rates {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rates{providers: providers, clock: clock, logger: logger}
}

func (m *Rates) Name() string {
	names := make([]string, 0, len(m.providers))
	for _, p := range m.providers {
		names = append(names, p.Name())
	}
	return strings.Join(names, ",")
}

func (m *Rates) LatestRates(ctx context.Context, coinIDs []string, currency string) ([]model.Rate, error) {
	if len(m.providers) == 0 {
		return nil, fmt.Errorf("no rate providers: %w", provider.ErrNoData)
	}

	type result struct {
		name  string
		rates []model.Rate
		err   error
	}
	ch := make(chan result, len(m.providers))
	for _, p := range m.providers {
		go func() {
			rs, err := p.LatestRates(ctx, coinIDs, currency)
			ch <- result{name: p.Name(), rates: rs, err: err}
		}()
	}

	var all []model.Rate
	var errs []error
	permanent := true
	for range m.providers {
		r := <-ch
		if r.err != nil {
			m.logger.Warn("rate provider failed", "provider", r.name, "err", r.err)
			errs = append(errs, fmt.Errorf("%s: %w", r.name, r.err))
			permanent = permanent && provider.IsPermanent(r.err)
			continue
		}
		all = append(all, r.rates...)
	}
	if len(errs) == len(m.providers) {
		if permanent {
			return nil, errors.Join(errs...)
		}
		// %v keeps a no-data branch from classifying the whole failure.
		return nil, fmt.Errorf("%w: %v", provider.ErrNetwork, errors.Join(errs...))
	}

	out := aggregate.LatestRates(all, m.clock.Now().UTC())
	for i := range out {
		out[i].Currency = currency
	}
	return out, nil
}
