package cryptocompare

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketkit/internal/key"
	"marketkit/internal/model"
	"marketkit/internal/provider"
)

type histoPoint struct {
	Time     int64           `json:"time"`
	Close    decimal.Decimal `json:"close"`
	VolumeTo decimal.Decimal `json:"volumeto"`
}

// histoPath picks the history endpoint matching the point interval.
func histoPath(ct key.ChartType) (string, error) {
	switch ct.PointInterval {
	case time.Minute:
		return "/data/v2/histominute", nil
	case time.Hour:
		return "/data/v2/histohour", nil
	case 24 * time.Hour:
		return "/data/v2/histoday", nil
	default:
		return "", fmt.Errorf("cryptocompare: unsupported point interval %s", ct.PointInterval)
	}
}

// ChartPoints calls the history endpoint for the chart type, aggregated to
// its resolution. A coin without a symbol mapping is ErrNoMatchingID.
func (c *Client) ChartPoints(ctx context.Context, k key.ChartKey) ([]model.ChartPoint, error) {
	sym, ok := c.symbols[k.CoinID]
	if !ok {
		return nil, fmt.Errorf("cryptocompare: %s: %w", k.CoinID, provider.ErrNoMatchingID)
	}
	path, err := histoPath(k.Type)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("fsym", sym)
	query.Set("tsym", strings.ToUpper(k.Currency))
	query.Set("limit", strconv.Itoa(k.Type.PointCount))
	query.Set("aggregate", strconv.Itoa(k.Type.AggregateFactor))

	var body struct {
		Data struct {
			Data []histoPoint `json:"Data"`
		} `json:"Data"`
	}
	if err := c.get(ctx, path, query, &body); err != nil {
		return nil, err
	}
	if len(body.Data.Data) == 0 {
		return nil, fmt.Errorf("cryptocompare: chart %s: %w", k, provider.ErrNoData)
	}

	points := make([]model.ChartPoint, 0, len(body.Data.Data))
	for _, p := range body.Data.Data {
		points = append(points, model.ChartPoint{
			Timestamp: time.Unix(p.Time, 0).UTC(),
			Value:     p.Close,
			Volume:    p.VolumeTo,
		})
	}
	return points, nil
}
