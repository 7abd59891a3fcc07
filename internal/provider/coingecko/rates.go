package coingecko

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketkit/internal/model"
)

// LatestRates calls /simple/price. Ids the API does not know are omitted.
func (c *Client) LatestRates(ctx context.Context, coinIDs []string, currency string) ([]model.Rate, error) {
	if len(coinIDs) == 0 {
		return nil, nil
	}
	vs := strings.ToLower(currency)
	params := url.Values{}
	params.Set("ids", strings.Join(coinIDs, ","))
	params.Set("vs_currencies", vs)
	params.Set("include_market_cap", "true")
	params.Set("include_24hr_vol", "true")
	params.Set("include_24hr_change", "true")
	params.Set("include_last_updated_at", "true")
	params.Set("precision", "full")

	// {
	//   "bitcoin": {
	//     "usd": 64000.1,
	//     "usd_market_cap": 1.26e12,
	//     "usd_24h_vol": 3.1e10,
	//     "usd_24h_change": -1.2,
	//     "last_updated_at": 1700000000
	//   }
	// }
	var body map[string]map[string]decimal.Decimal
	if err := c.get(ctx, "/simple/price", params, &body); err != nil {
		return nil, err
	}

	out := make([]model.Rate, 0, len(body))
	for _, id := range coinIDs {
		fields, ok := body[id]
		if !ok {
			continue
		}
		value, ok := fields[vs]
		if !ok {
			continue
		}
		ts := time.Now().UTC()
		if updated, ok := fields["last_updated_at"]; ok && !updated.IsZero() {
			ts = time.Unix(updated.IntPart(), 0).UTC()
		}
		out = append(out, model.Rate{
			CoinID:    id,
			Currency:  currency,
			Value:     value,
			Diff24h:   fields[vs+"_24h_change"],
			Volume24h: fields[vs+"_24h_vol"],
			MarketCap: fields[vs+"_market_cap"],
			Timestamp: ts,
		})
	}
	return out, nil
}
