package coingecko

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketkit/internal/key"
	"marketkit/internal/model"
	"marketkit/internal/provider"
)

type marketChart struct {
	Prices       [][2]decimal.Decimal `json:"prices"`
	TotalVolumes [][2]decimal.Decimal `json:"total_volumes"`
}

// ChartPoints calls /coins/{id}/market_chart and resamples the series to the
// chart type's resolution.
func (c *Client) ChartPoints(ctx context.Context, k key.ChartKey) ([]model.ChartPoint, error) {
	days := int(math.Ceil(k.Type.RangeInterval().Hours() / 24))
	params := url.Values{}
	params.Set("vs_currency", strings.ToLower(k.Currency))
	params.Set("days", strconv.Itoa(max(days, 1)))

	var body marketChart
	if err := c.get(ctx, "/coins/"+url.PathEscape(k.CoinID)+"/market_chart", params, &body); err != nil {
		return nil, err
	}
	if len(body.Prices) == 0 {
		return nil, fmt.Errorf("coingecko: chart %s: %w", k, provider.ErrNoData)
	}

	volumes := make(map[int64]decimal.Decimal, len(body.TotalVolumes))
	for _, v := range body.TotalVolumes {
		volumes[v[0].IntPart()] = v[1]
	}
	points := make([]model.ChartPoint, 0, len(body.Prices))
	for _, p := range body.Prices {
		ms := p[0].IntPart()
		points = append(points, model.ChartPoint{
			Timestamp: time.UnixMilli(ms).UTC(),
			Value:     p[1],
			Volume:    volumes[ms],
		})
	}
	return Resample(points, k.Type), nil
}

// Resample keeps the last point of every ExpirationInterval bucket within
// RangeInterval of the newest point. points must be oldest first.
func Resample(points []model.ChartPoint, ct key.ChartType) []model.ChartPoint {
	if len(points) == 0 {
		return nil
	}
	step := ct.ExpirationInterval()
	if step <= 0 {
		return points
	}
	newest := points[len(points)-1].Timestamp
	from := newest.Add(-ct.RangeInterval())

	var out []model.ChartPoint
	var bucket time.Time
	for _, p := range points {
		if p.Timestamp.Before(from) {
			continue
		}
		b := p.Timestamp.Truncate(step)
		if len(out) > 0 && b.Equal(bucket) {
			out[len(out)-1] = p
			continue
		}
		bucket = b
		out = append(out, p)
	}
	return out
}
