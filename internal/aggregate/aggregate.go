// Package aggregate merges rates reported by several providers.
package aggregate

import (
	"slices"
	"strings"
	"time"

	"marketkit/internal/key"
	"marketkit/internal/model"
)

// currencyAliases maps quote currency spellings onto one code.
var currencyAliases = map[string]string{
	"usd":  "USD",
	"us$":  "USD",
	"eur":  "EUR",
	"euro": "EUR",
	"gbp":  "GBP",
	"jpy":  "JPY",
	"rub":  "RUB",
	"usdt": "USDT",
}

// NormalizeCurrency trims and upper-cases a currency code and resolves
// known aliases.
func NormalizeCurrency(c string) string {
	s := strings.TrimSpace(c)
	if norm, ok := currencyAliases[strings.ToLower(s)]; ok {
		return norm
	}
	return strings.ToUpper(s)
}

// LatestRates collapses rates by (coin, currency) keeping the newest.
// For equal timestamps, later input wins. Zero timestamps are replaced with
// now. The result is sorted by coin, then currency.
func LatestRates(rates []model.Rate, now time.Time) []model.Rate {
	latest := make(map[key.PairKey]model.Rate, len(rates))
	for _, r := range rates {
		r.Currency = NormalizeCurrency(r.Currency)
		if r.Timestamp.IsZero() {
			r.Timestamp = now
		}
		k := r.StoreKey()
		if cur, ok := latest[k]; ok && r.Timestamp.Before(cur.Timestamp) {
			continue
		}
		latest[k] = r
	}

	out := make([]model.Rate, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.Rate) int {
		if c := strings.Compare(a.CoinID, b.CoinID); c != 0 {
			return c
		}
		return strings.Compare(a.Currency, b.Currency)
	})
	return out
}
