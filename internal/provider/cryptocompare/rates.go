package cryptocompare

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketkit/internal/model"
)

type rawQuote struct {
	Price           decimal.Decimal `json:"PRICE"`
	ChangePct24Hour decimal.Decimal `json:"CHANGEPCT24HOUR"`
	Volume24HourTo  decimal.Decimal `json:"VOLUME24HOURTO"`
	MktCap          decimal.Decimal `json:"MKTCAP"`
	Supply          decimal.Decimal `json:"SUPPLY"`
	LastUpdate      int64           `json:"LASTUPDATE"`
}

// LatestRates calls /data/pricemultifull. Coins without a symbol mapping or
// missing from the answer are omitted.
func (c *Client) LatestRates(ctx context.Context, coinIDs []string, currency string) ([]model.Rate, error) {
	bySymbol := make(map[string]string, len(coinIDs))
	var syms []string
	for _, id := range coinIDs {
		sym, ok := c.symbols[id]
		if !ok {
			continue
		}
		if _, dup := bySymbol[sym]; !dup {
			syms = append(syms, sym)
		}
		bySymbol[sym] = id
	}
	if len(syms) == 0 {
		return nil, nil
	}

	tsym := strings.ToUpper(currency)
	query := url.Values{}
	query.Set("fsyms", strings.Join(syms, ","))
	query.Set("tsyms", tsym)

	// {"RAW": {"BTC": {"USD": {"PRICE": 64000.1, "LASTUPDATE": 1700000000, ...}}}}
	var body struct {
		Raw map[string]map[string]rawQuote `json:"RAW"`
	}
	if err := c.get(ctx, "/data/pricemultifull", query, &body); err != nil {
		return nil, err
	}

	out := make([]model.Rate, 0, len(syms))
	for _, sym := range syms {
		q, ok := body.Raw[sym][tsym]
		if !ok {
			continue
		}
		ts := time.Now().UTC()
		if q.LastUpdate > 0 {
			ts = time.Unix(q.LastUpdate, 0).UTC()
		}
		out = append(out, model.Rate{
			CoinID:    bySymbol[sym],
			Currency:  currency,
			Value:     q.Price,
			Diff24h:   q.ChangePct24Hour,
			Volume24h: q.Volume24HourTo,
			MarketCap: q.MktCap,
			Supply:    q.Supply,
			Timestamp: ts,
		})
	}
	return out, nil
}
