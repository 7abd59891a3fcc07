// Package coingecko is a client for a CoinGecko-style public market API.
package coingecko

import (
	"net/http"
	"net/url"

	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=coingecko_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the CoinGecko API. It serves rates, charts and top markets.
type Client struct {
	// baseURL is the API root, without a trailing slash.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header is sent with each request.
	header http.Header
	// query is merged into each request's query.
	query url.Values

	// inflight coalesces identical concurrent GETs.
	inflight singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader adds headers to every request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// New creates a client. An empty key uses the anonymous tier.
func New(key string, options ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
	}
	if key != "" {
		c.header.Set("x-cg-demo-api-key", key)
	}
	c.header.Set("Accept", "application/json")
	for _, option := range options {
		option(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "coingecko" }
