// Package model holds the cached market-data records.
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"marketkit/internal/key"
)

// Entry is anything that belongs to one entity and carries its last write time.
type Entry interface {
	EntityID() string
	SyncedAt() time.Time
}

// Record is an Entry that is stored under a key of type K.
type Record[K comparable] interface {
	Entry
	StoreKey() K
}

// Rate is the latest rate of a coin in a currency.
type Rate struct {
	CoinID    string          `json:"coin_id"`
	Currency  string          `json:"currency"`
	Value     decimal.Decimal `json:"value"`
	Diff24h   decimal.Decimal `json:"diff_24h"`
	Volume24h decimal.Decimal `json:"volume_24h"`
	MarketCap decimal.Decimal `json:"market_cap"`
	Supply    decimal.Decimal `json:"supply"`
	Timestamp time.Time       `json:"timestamp"`
}

func (r Rate) EntityID() string { return r.CoinID }
func (r Rate) SyncedAt() time.Time { return r.Timestamp }
func (r Rate) StoreKey() key.PairKey { return key.PairKey{CoinID: r.CoinID, Currency: r.Currency} }

// ChartPoint is one point of a series.
type ChartPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
	Volume    decimal.Decimal `json:"volume"`
}

// ChartInfo is a whole series, replaced as one record.
type ChartInfo struct {
	Key       key.ChartKey `json:"key"`
	Points    []ChartPoint `json:"points"`
	Timestamp time.Time    `json:"timestamp"`
}

func (c ChartInfo) EntityID() string { return c.Key.CoinID }
func (c ChartInfo) SyncedAt() time.Time { return c.Timestamp }
func (c ChartInfo) StoreKey() key.ChartKey { return c.Key }

// MarketInfo is one row of a top-markets listing.
type MarketInfo struct {
	CoinID    string          `json:"coin_id"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Rank      int             `json:"rank"`
	Rate      decimal.Decimal `json:"rate"`
	Diff24h   decimal.Decimal `json:"diff_24h"`
	Volume24h decimal.Decimal `json:"volume_24h"`
	MarketCap decimal.Decimal `json:"market_cap"`
	Supply    decimal.Decimal `json:"supply"`
}

// TopMarkets is the listing for one currency, ordered by rank.
type TopMarkets struct {
	Currency  string       `json:"currency"`
	Markets   []MarketInfo `json:"markets"`
	Timestamp time.Time    `json:"timestamp"`
}

// EntityID of a listing is its currency; listing keys do not filter by coin.
func (t TopMarkets) EntityID() string { return t.Currency }
func (t TopMarkets) SyncedAt() time.Time { return t.Timestamp }
func (t TopMarkets) StoreKey() key.MarketsKey { return key.MarketsKey{Currency: t.Currency} }

// CachedValue wraps a record with the expiration interval it is judged by.
// Expired is evaluated when the value is read from the cache.
type CachedValue[R Entry] struct {
	Record             R             `json:"record"`
	ExpirationInterval time.Duration `json:"-"`
	Expired            bool          `json:"expired"`
}

// NewCachedValue builds a CachedValue evaluated at now.
func NewCachedValue[R Entry](r R, expiration time.Duration, now time.Time) CachedValue[R] {
	v := CachedValue[R]{Record: r, ExpirationInterval: expiration}
	v.Expired = v.ExpiredAt(now)
	return v
}

// ExpiredAt reports whether the record is older than the expiration interval.
// A record exactly at the boundary is not expired.
func (v CachedValue[R]) ExpiredAt(now time.Time) bool {
	return now.Sub(v.Record.SyncedAt()) > v.ExpirationInterval
}

func (v CachedValue[R]) EntityID() string { return v.Record.EntityID() }
