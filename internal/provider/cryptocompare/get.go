package cryptocompare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"marketkit/internal/provider"
)

// envelope is the error shape the API returns with status 200.
type envelope struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cryptocompare: performing request: %w: %v", provider.ErrNetwork, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("cryptocompare: status %d: %w", res.StatusCode, provider.StatusErr(res.StatusCode))
	}

	var raw json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return fmt.Errorf("cryptocompare: decoding %s: %w: %v", path, provider.ErrDecode, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Response == "Error" {
		return fmt.Errorf("cryptocompare: %s: %w", env.Message, provider.ErrNoData)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("cryptocompare: decoding %s: %w: %v", path, provider.ErrDecode, err)
	}
	return nil
}
