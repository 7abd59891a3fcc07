package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"marketkit/internal/config"
	"marketkit/internal/httpx"
	"marketkit/internal/provider"
	"marketkit/internal/provider/coingecko"
	"marketkit/internal/provider/cryptocompare"
	"marketkit/internal/provider/fallback"
	"marketkit/internal/provider/memo"
	"marketkit/internal/provider/multi"
	"marketkit/internal/provider/ratelimit"
)

type providers struct {
	rates   provider.RateProvider
	charts  provider.ChartProvider
	markets provider.MarketProvider
}

func newHTTPClient(timeout time.Duration, rpm, burst, minIntervalSec, retries int, logger *slog.Logger) *httpx.Client {
	hc := httpx.New(timeout)
	hc.Limiter = ratelimit.New(rpm, burst, time.Duration(minIntervalSec)*time.Second)
	hc.MaxRetries = retries
	hc.Logger = logger
	return hc
}

// withMemo wraps p with a per-coin memo if a TTL is configured.
func withMemo(p provider.RateProvider, ttlSec, maxItems int, clock clockwork.Clock) provider.RateProvider {
	if ttlSec <= 0 {
		return p
	}
	return &memo.Rates{P: p, TTL: time.Duration(ttlSec) * time.Second, MaxItems: maxItems, Clock: clock}
}

// buildProviders wires the enabled upstreams. CoinGecko is always built
// because it is the only source of market listings; Enabled only governs
// whether it also serves rates and charts.
func buildProviders(cfg config.Config, clock clockwork.Clock, logger *slog.Logger) (providers, error) {
	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second

	cgOpts := []coingecko.Option{coingecko.WithHTTPClient(newHTTPClient(timeout,
		cfg.CoinGecko.MaxRequestsPerMinute, cfg.CoinGecko.Burst,
		cfg.CoinGecko.MinRequestIntervalSec, cfg.CoinGecko.MaxRetries,
		logger.With("provider", "coingecko")))}
	if cfg.CoinGecko.BaseURL != "" {
		cgOpts = append(cgOpts, coingecko.WithBaseURL(cfg.CoinGecko.BaseURL))
	}
	cg, err := coingecko.New(cfg.CoinGecko.APIKey, cgOpts...)
	if err != nil {
		return providers{}, fmt.Errorf("coingecko: %w", err)
	}

	var (
		rateProviders  []provider.RateProvider
		chartProviders []provider.ChartProvider
	)
	if cfg.CoinGecko.Enabled {
		rateProviders = append(rateProviders, withMemo(cg, cfg.CoinGecko.CacheTTLSec, cfg.CoinGecko.CacheMaxItems, clock))
		chartProviders = append(chartProviders, cg)
	}
	if cfg.CryptoCompare.Enabled {
		ccOpts := []cryptocompare.Option{cryptocompare.WithHTTPClient(newHTTPClient(timeout,
			cfg.CryptoCompare.MaxRequestsPerMinute, cfg.CryptoCompare.Burst,
			cfg.CryptoCompare.MinRequestIntervalSec, cfg.CryptoCompare.MaxRetries,
			logger.With("provider", "cryptocompare")))}
		if cfg.CryptoCompare.BaseURL != "" {
			ccOpts = append(ccOpts, cryptocompare.WithBaseURL(cfg.CryptoCompare.BaseURL))
		}
		cc, err := cryptocompare.New(cfg.CryptoCompare.APIKey, cfg.CryptoCompare.Symbols, ccOpts...)
		if err != nil {
			return providers{}, fmt.Errorf("cryptocompare: %w", err)
		}
		rateProviders = append(rateProviders, withMemo(cc, cfg.CryptoCompare.CacheTTLSec, cfg.CryptoCompare.CacheMaxItems, clock))
		chartProviders = append(chartProviders, cc)
	}
	if len(rateProviders) == 0 {
		return providers{}, errors.New("no rate provider enabled")
	}

	p := providers{markets: cg}
	if len(rateProviders) == 1 {
		p.rates = rateProviders[0]
	} else {
		p.rates = multi.NewRates(clock, logger, rateProviders...)
	}
	if len(chartProviders) == 1 {
		p.charts = chartProviders[0]
	} else {
		p.charts = fallback.NewChart(chartProviders[0], chartProviders[1], clock, logger)
	}
	return p, nil
}
