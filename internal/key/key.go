// Package key defines the identifiers used to address cached market data.
//
// Every key type is comparable so it can be used directly as a map key by
// the coordinator and the stores.
package key

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// idSeparator joins canonical id lists. Coin ids never contain it.
const idSeparator = "\x1f"

// PairKey identifies one cached scalar record, e.g. the latest rate of a coin.
type PairKey struct {
	CoinID   string
	Currency string
}

func (k PairKey) String() string { return k.CoinID + "/" + k.Currency }

// GroupKey identifies a batch of coins sharing a currency.
// The id set is sorted and deduplicated at construction, so two keys built
// from the same ids in a different order are equal.
type GroupKey struct {
	ids      string
	Currency string
}

// NewGroupKey builds a GroupKey from an unordered id list. Empty ids are dropped.
func NewGroupKey(coinIDs []string, currency string) GroupKey {
	ids := make([]string, 0, len(coinIDs))
	for _, id := range coinIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	return GroupKey{ids: strings.Join(ids, idSeparator), Currency: currency}
}

// Group returns the scheduling group of the key, which is its currency.
func (k GroupKey) Group() string { return k.Currency }

// EntityIDs returns the sorted, deduplicated coin ids.
func (k GroupKey) EntityIDs() []string {
	if k.ids == "" {
		return nil
	}
	return strings.Split(k.ids, idSeparator)
}

// Pairs expands the key into one PairKey per coin.
func (k GroupKey) Pairs() []PairKey {
	ids := k.EntityIDs()
	out := make([]PairKey, 0, len(ids))
	for _, id := range ids {
		out = append(out, PairKey{CoinID: id, Currency: k.Currency})
	}
	return out
}

func (k GroupKey) String() string {
	return "{" + strings.ReplaceAll(k.ids, idSeparator, ",") + "}/" + k.Currency
}

// ChartType is a named time-series resolution.
type ChartType struct {
	Name            string
	PointInterval   time.Duration
	AggregateFactor int
	PointCount      int
}

// ExpirationInterval is the age after which the series must be refreshed.
func (t ChartType) ExpirationInterval() time.Duration {
	return t.PointInterval * time.Duration(t.AggregateFactor)
}

// RangeInterval is the time window covered by the whole series.
func (t ChartType) RangeInterval() time.Duration {
	return t.ExpirationInterval() * time.Duration(t.PointCount)
}

var (
	ChartToday    = ChartType{Name: "today", PointInterval: time.Minute, AggregateFactor: 30, PointCount: 48}
	ChartDay      = ChartType{Name: "day", PointInterval: time.Minute, AggregateFactor: 30, PointCount: 48}
	ChartWeek     = ChartType{Name: "week", PointInterval: time.Hour, AggregateFactor: 4, PointCount: 42}
	ChartWeek2    = ChartType{Name: "week2", PointInterval: time.Hour, AggregateFactor: 8, PointCount: 42}
	ChartMonth    = ChartType{Name: "month", PointInterval: time.Hour, AggregateFactor: 12, PointCount: 60}
	ChartMonth3   = ChartType{Name: "month3", PointInterval: 24 * time.Hour, AggregateFactor: 1, PointCount: 90}
	ChartHalfYear = ChartType{Name: "halfyear", PointInterval: 24 * time.Hour, AggregateFactor: 3, PointCount: 60}
	ChartYear     = ChartType{Name: "year", PointInterval: 24 * time.Hour, AggregateFactor: 7, PointCount: 52}
	ChartYear2    = ChartType{Name: "year2", PointInterval: 24 * time.Hour, AggregateFactor: 14, PointCount: 52}
)

var chartTypes = []ChartType{
	ChartToday, ChartDay, ChartWeek, ChartWeek2, ChartMonth,
	ChartMonth3, ChartHalfYear, ChartYear, ChartYear2,
}

// ChartTypes returns all predefined chart types.
func ChartTypes() []ChartType { return slices.Clone(chartTypes) }

// ChartTypeByName resolves a predefined chart type.
func ChartTypeByName(name string) (ChartType, error) {
	for _, t := range chartTypes {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return ChartType{}, fmt.Errorf("unknown chart type %q", name)
}

// ChartKey identifies one cached time series.
type ChartKey struct {
	CoinID   string
	Currency string
	Type     ChartType
}

// Group returns the key itself: every chart series is polled on its own.
func (k ChartKey) Group() ChartKey { return k }

func (k ChartKey) EntityIDs() []string { return []string{k.CoinID} }

func (k ChartKey) String() string { return k.CoinID + "/" + k.Currency + ":" + k.Type.Name }

// MarketsKey identifies the top-markets listing of a currency.
// It names no coins: subscribers receive the whole listing.
type MarketsKey struct {
	Currency string
}

func (k MarketsKey) Group() string { return k.Currency }

func (k MarketsKey) EntityIDs() []string { return nil }

func (k MarketsKey) String() string { return "top/" + k.Currency }
