package coingecko

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"

	"marketkit/internal/provider"
)

// get fetches path and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	query := maps.Clone(c.query)
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	v, err, _ := c.inflight.Do(u, func() (any, error) {
		return c.fetch(ctx, u)
	})
	if err != nil {
		return err
	}
	if err := json.NewDecoder(bytes.NewReader(v.([]byte))).Decode(out); err != nil {
		return fmt.Errorf("coingecko: decoding %s: %w: %v", path, provider.ErrDecode, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko: performing request: %w: %v", provider.ErrNetwork, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko: status %d: %w", res.StatusCode, provider.StatusErr(res.StatusCode))
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("coingecko: reading body: %w: %v", provider.ErrNetwork, err)
	}
	return b, nil
}
