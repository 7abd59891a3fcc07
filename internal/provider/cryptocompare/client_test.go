package cryptocompare_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketkit/internal/key"
	"marketkit/internal/provider"
	"marketkit/internal/provider/cryptocompare"
)

var symbols = map[string]string{"bitcoin": "btc", "ethereum": "ETH"}

func jsonResponse(t *testing.T, body any) *http.Response {
	t.Helper()
	buffer := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buffer).Encode(body))
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(buffer)}
}

func TestNew(t *testing.T) {
	t.Parallel()

	client, err := cryptocompare.New("k", symbols)
	require.NoError(t, err)
	require.Equal(t, "cryptocompare", client.Name())

	sym, ok := client.Symbol("bitcoin")
	require.True(t, ok)
	require.Equal(t, "BTC", sym)
	_, ok = client.Symbol("dogecoin")
	require.False(t, ok)
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
			require.Equal(t, "/data/pricemultifull", req.URL.Path)
			require.Equal(t, "BTC,ETH", req.URL.Query().Get("fsyms"))
			require.Equal(t, "USD", req.URL.Query().Get("tsyms"))
			require.Equal(t, "Apikey secret", req.Header.Get("Authorization"))
			return jsonResponse(t, map[string]any{
				"RAW": map[string]any{
					"BTC": map[string]any{"USD": map[string]any{"PRICE": 64000.5, "SUPPLY": 19700000, "LASTUPDATE": 1700000000}},
				},
			}), nil
		}).
		Times(1)

	client, err := cryptocompare.New("secret", symbols, cryptocompare.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	rates, err := client.LatestRates(t.Context(), []string{"bitcoin", "ethereum", "dogecoin"}, "usd")

	// Assert
	require.NoError(t, err)
	require.Len(t, rates, 1)
	require.Equal(t, "bitcoin", rates[0].CoinID)
	require.Equal(t, "usd", rates[0].Currency)
	require.True(t, rates[0].Supply.Equal(decimal.NewFromInt(19700000)))
	require.Equal(t, time.Unix(1700000000, 0).UTC(), rates[0].Timestamp)
}

func TestLatestRates_NoMappedCoins(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client, err := cryptocompare.New("", symbols, cryptocompare.WithHTTPClient(NewMockHTTPClient(ctrl)))
	require.NoError(t, err)

	rates, err := client.LatestRates(t.Context(), []string{"dogecoin"}, "USD")
	require.NoError(t, err)
	require.Empty(t, rates)
}

func TestChartPoints(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/data/v2/histohour", req.URL.Path)
			require.Equal(t, "BTC", req.URL.Query().Get("fsym"))
			require.Equal(t, "4", req.URL.Query().Get("aggregate"))
			require.Equal(t, "42", req.URL.Query().Get("limit"))
			return jsonResponse(t, map[string]any{
				"Response": "Success",
				"Data": map[string]any{"Data": []map[string]any{
					{"time": 1700000000, "close": 10, "volumeto": 1},
					{"time": 1700014400, "close": 11, "volumeto": 2},
				}},
			}), nil
		}).
		Times(1)
	client, err := cryptocompare.New("", symbols, cryptocompare.WithHTTPClient(httpClient))
	require.NoError(t, err)

	points, err := client.ChartPoints(t.Context(), key.ChartKey{CoinID: "bitcoin", Currency: "USD", Type: key.ChartWeek})

	require.NoError(t, err)
	require.Len(t, points, 2)
	require.True(t, points[1].Value.Equal(decimal.NewFromInt(11)))
	require.Equal(t, time.Unix(1700014400, 0).UTC(), points[1].Timestamp)
}

func TestChartPoints_UnmappedCoin(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client, err := cryptocompare.New("", symbols, cryptocompare.WithHTTPClient(NewMockHTTPClient(ctrl)))
	require.NoError(t, err)

	_, err = client.ChartPoints(t.Context(), key.ChartKey{CoinID: "dogecoin", Currency: "USD", Type: key.ChartDay})
	require.ErrorIs(t, err, provider.ErrNoMatchingID)
}

func TestChartPoints_ErrorEnvelope(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(t, map[string]any{"Response": "Error", "Message": "market does not exist"}), nil).
		Times(1)
	client, err := cryptocompare.New("", symbols, cryptocompare.WithHTTPClient(httpClient))
	require.NoError(t, err)

	_, err = client.ChartPoints(t.Context(), key.ChartKey{CoinID: "ethereum", Currency: "XYZ", Type: key.ChartYear})
	require.ErrorIs(t, err, provider.ErrNoData)
}
