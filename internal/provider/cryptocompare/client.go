// Package cryptocompare is a client for a CryptoCompare-style API. Coins are
// addressed by ticker symbol, so every coin id needs a configured mapping.
package cryptocompare

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://min-api.cryptocompare.com"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=cryptocompare_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client serves rates and charts.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	header     http.Header
	// symbols maps coin ids to ticker symbols.
	symbols map[string]string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// New creates a client. symbols maps coin ids ("bitcoin") to tickers ("BTC").
func New(key string, symbols map[string]string, options ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		symbols:    make(map[string]string, len(symbols)),
	}
	for id, sym := range symbols {
		c.symbols[id] = strings.ToUpper(sym)
	}
	if key != "" {
		c.header.Set("Authorization", "Apikey "+key)
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "cryptocompare" }

// Symbol returns the ticker configured for coinID.
func (c *Client) Symbol(coinID string) (string, bool) {
	s, ok := c.symbols[coinID]
	return s, ok
}

func (c *Client) endpoint(path string, query url.Values) string {
	return c.baseURL + path + "?" + query.Encode()
}
