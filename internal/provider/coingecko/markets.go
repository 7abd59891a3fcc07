package coingecko

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"marketkit/internal/model"
	"marketkit/internal/provider"
)

// maxPerPage is the largest page /coins/markets serves.
const maxPerPage = 250

type marketEntry struct {
	ID                       string          `json:"id"`
	Symbol                   string          `json:"symbol"`
	Name                     string          `json:"name"`
	CurrentPrice             decimal.Decimal `json:"current_price"`
	MarketCap                decimal.Decimal `json:"market_cap"`
	MarketCapRank            *int            `json:"market_cap_rank"`
	TotalVolume              decimal.Decimal `json:"total_volume"`
	PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h"`
	CirculatingSupply        decimal.Decimal `json:"circulating_supply"`
}

// TopMarkets calls /coins/markets ordered by market cap.
func (c *Client) TopMarkets(ctx context.Context, currency string, limit int) ([]model.MarketInfo, error) {
	if limit <= 0 || limit > maxPerPage {
		limit = maxPerPage
	}
	params := url.Values{}
	params.Set("vs_currency", strings.ToLower(currency))
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("page", "1")

	var body []marketEntry
	if err := c.get(ctx, "/coins/markets", params, &body); err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("coingecko: markets %s: %w", currency, provider.ErrNoData)
	}

	out := make([]model.MarketInfo, 0, len(body))
	for i, m := range body {
		rank := i + 1
		if m.MarketCapRank != nil {
			rank = *m.MarketCapRank
		}
		out = append(out, model.MarketInfo{
			CoinID:    m.ID,
			Symbol:    strings.ToUpper(m.Symbol),
			Name:      m.Name,
			Rank:      rank,
			Rate:      m.CurrentPrice,
			Diff24h:   m.PriceChangePercentage24h,
			Volume24h: m.TotalVolume,
			MarketCap: m.MarketCap,
			Supply:    m.CirculatingSupply,
		})
	}
	return out, nil
}
