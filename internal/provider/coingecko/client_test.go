package coingecko_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketkit/internal/key"
	"marketkit/internal/model"
	"marketkit/internal/provider"
	"marketkit/internal/provider/coingecko"
)

func jsonResponse(t *testing.T, status int, body any) *http.Response {
	t.Helper()
	buffer := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buffer).Encode(body))
	return &http.Response{StatusCode: status, Body: io.NopCloser(buffer)}
}

func TestNew(t *testing.T) {
	t.Parallel()

	client, err := coingecko.New("")
	require.NoError(t, err)
	require.NotNil(t, client)
	require.Equal(t, "coingecko", client.Name())
}

func TestWithBaseURLAndHeader(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock http client
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	baseURL := "http://localhost:8080/api"

	// Assert: the request goes to the base url with the key and extra header
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "unexpected url: %s", req.URL.String())
			require.Equal(t, "demo-key", req.Header.Get("x-cg-demo-api-key"))
			require.Equal(t, "marketkit", req.Header.Get("X-Client"))
			return jsonResponse(t, http.StatusOK, map[string]any{}), nil
		}).
		Times(1)

	client, err := coingecko.New("demo-key",
		coingecko.WithHTTPClient(httpClient),
		coingecko.WithBaseURL(baseURL),
		coingecko.WithHeader(http.Header{"X-Client": []string{"marketkit"}}),
	)
	require.NoError(t, err)

	// Act
	_, err = client.LatestRates(t.Context(), []string{"bitcoin"}, "USD")
	require.NoError(t, err)
}

func TestLatestRates(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock http client
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "/api/v3/simple/price", req.URL.Path)
			require.Equal(t, "bitcoin,ethereum,nosuchcoin", req.URL.Query().Get("ids"))
			require.Equal(t, "usd", req.URL.Query().Get("vs_currencies"))
			return jsonResponse(t, http.StatusOK, map[string]any{
				"bitcoin": map[string]any{
					"usd":             64000.5,
					"usd_market_cap":  1260000000000,
					"usd_24h_vol":     31000000000,
					"usd_24h_change":  -1.25,
					"last_updated_at": 1700000000,
				},
				"ethereum": map[string]any{"usd": 3100},
			}), nil
		}).
		Times(1)

	client, err := coingecko.New("", coingecko.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	rates, err := client.LatestRates(t.Context(), []string{"bitcoin", "ethereum", "nosuchcoin"}, "USD")

	// Assert
	require.NoError(t, err)
	require.Len(t, rates, 2)
	require.Equal(t, "bitcoin", rates[0].CoinID)
	require.Equal(t, "USD", rates[0].Currency)
	require.True(t, rates[0].Value.Equal(decimal.RequireFromString("64000.5")))
	require.True(t, rates[0].Diff24h.Equal(decimal.RequireFromString("-1.25")))
	require.Equal(t, time.Unix(1700000000, 0).UTC(), rates[0].Timestamp)
	require.Equal(t, "ethereum", rates[1].CoinID)
}

func TestLatestRates_NoIDsSkipsRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	client, err := coingecko.New("", coingecko.WithHTTPClient(httpClient))
	require.NoError(t, err)

	rates, err := client.LatestRates(t.Context(), nil, "USD")
	require.NoError(t, err)
	require.Empty(t, rates)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  func(t *testing.T) (*http.Response, error)
		want error
	}{
		{
			name: "rate limited",
			res: func(t *testing.T) (*http.Response, error) {
				return jsonResponse(t, http.StatusTooManyRequests, map[string]any{}), nil
			},
			want: provider.ErrRateLimited,
		},
		{
			name: "unknown coin",
			res: func(t *testing.T) (*http.Response, error) {
				return jsonResponse(t, http.StatusNotFound, map[string]any{"error": "coin not found"}), nil
			},
			want: provider.ErrNoData,
		},
		{
			name: "transport",
			res: func(*testing.T) (*http.Response, error) {
				return nil, errors.New("connection reset")
			},
			want: provider.ErrNetwork,
		},
		{
			name: "malformed",
			res: func(*testing.T) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{not json"))}, nil
			},
			want: provider.ErrDecode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().
				Do(gomock.Any()).
				DoAndReturn(func(*http.Request) (*http.Response, error) { return tt.res(t) }).
				Times(1)
			client, err := coingecko.New("", coingecko.WithHTTPClient(httpClient))
			require.NoError(t, err)

			_, err = client.ChartPoints(t.Context(), key.ChartKey{CoinID: "bitcoin", Currency: "USD", Type: key.ChartDay})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestChartPoints(t *testing.T) {
	t.Parallel()

	// Arrange: hourly points over two days, newest at end
	end := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	var prices, volumes [][2]float64
	for i := 47; i >= 0; i-- {
		ms := float64(end.Add(-time.Duration(i) * time.Hour).UnixMilli())
		prices = append(prices, [2]float64{ms, float64(100 + i)})
		volumes = append(volumes, [2]float64{ms, 5})
	}

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/v3/coins/bitcoin/market_chart", req.URL.Path)
			require.Equal(t, "7", req.URL.Query().Get("days"))
			return jsonResponse(t, http.StatusOK, map[string]any{
				"prices":        prices,
				"total_volumes": volumes,
			}), nil
		}).
		Times(1)
	client, err := coingecko.New("", coingecko.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	points, err := client.ChartPoints(t.Context(), key.ChartKey{CoinID: "bitcoin", Currency: "USD", Type: key.ChartWeek})

	// Assert: one point per 4h bucket
	require.NoError(t, err)
	require.Len(t, points, 13)
	require.Equal(t, end, points[len(points)-1].Timestamp)
	require.True(t, points[len(points)-1].Volume.Equal(decimal.NewFromInt(5)))
}

func TestChartPoints_EmptyIsNoData(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(t, http.StatusOK, map[string]any{"prices": []any{}}), nil).
		Times(1)
	client, err := coingecko.New("", coingecko.WithHTTPClient(httpClient))
	require.NoError(t, err)

	_, err = client.ChartPoints(t.Context(), key.ChartKey{CoinID: "bitcoin", Currency: "USD", Type: key.ChartDay})
	require.ErrorIs(t, err, provider.ErrNoData)
	require.True(t, provider.IsPermanent(err))
}

func TestResample(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ct := key.ChartType{Name: "test", PointInterval: time.Minute, AggregateFactor: 10, PointCount: 3}
	var in []model.ChartPoint
	for i := range 60 {
		in = append(in, model.ChartPoint{Timestamp: t0.Add(time.Duration(i) * time.Minute), Value: decimal.NewFromInt(int64(i))})
	}

	out := coingecko.Resample(in, ct)

	// The range is 30 minutes back from 00:59: buckets 00:20 (partial), 00:30, 00:40, 00:50.
	require.Len(t, out, 4)
	require.True(t, out[0].Value.Equal(decimal.NewFromInt(29)))
	require.True(t, out[3].Value.Equal(decimal.NewFromInt(59)))
	require.Nil(t, coingecko.Resample(nil, ct))
}

func TestTopMarkets(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/v3/coins/markets", req.URL.Path)
			require.Equal(t, "2", req.URL.Query().Get("per_page"))
			require.Equal(t, "eur", req.URL.Query().Get("vs_currency"))
			return jsonResponse(t, http.StatusOK, []map[string]any{
				{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin", "current_price": 59000, "market_cap_rank": 1},
				{"id": "ethereum", "symbol": "eth", "name": "Ethereum", "current_price": 2900, "market_cap_rank": nil},
			}), nil
		}).
		Times(1)
	client, err := coingecko.New("", coingecko.WithHTTPClient(httpClient))
	require.NoError(t, err)

	markets, err := client.TopMarkets(t.Context(), "EUR", 2)

	require.NoError(t, err)
	require.Len(t, markets, 2)
	require.Equal(t, "BTC", markets[0].Symbol)
	require.Equal(t, 1, markets[0].Rank)
	require.Equal(t, 2, markets[1].Rank)
	require.True(t, markets[1].Rate.Equal(decimal.NewFromInt(2900)))
}
