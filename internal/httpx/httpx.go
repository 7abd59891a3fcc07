package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"marketkit/internal/provider/ratelimit"
)

// Client is a small wrapper around http.Client with sane defaults.
// It gates calls on an optional rate limiter and retries throttled,
// 5xx and transport failures with capped exponential backoff.
type Client struct {
	HTTP       *http.Client
	UserAgent  string
	Headers    map[string]string
	Limiter    *rate.Limiter
	MaxRetries int
	Backoff    Backoff
	Logger     *slog.Logger
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout, Transport: transport},
		UserAgent: "marketkit/1.0",
		Backoff:   DefaultBackoff(),
		Logger:    slog.Default(),
	}
}

// Do sends req, waiting for the limiter first. The request context bounds
// both the waits and the retries.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	ctx := req.Context()
	retryable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
	for attempt := 0; ; attempt++ {
		if err := ratelimit.Wait(ctx, c.Limiter); err != nil {
			return nil, err
		}
		resp, err := c.HTTP.Do(req)
		if attempt >= c.MaxRetries || !retryable || !shouldRetry(resp, err) {
			return resp, err
		}
		if resp != nil {
			resp.Body.Close()
		}

		delay := c.Backoff.Delay(attempt)
		if c.Logger != nil {
			c.Logger.Debug("retrying request", "url", req.URL.Redacted(), "attempt", attempt+1, "delay", delay, "err", err)
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
		if req, err = rewind(req); err != nil {
			return nil, err
		}
	}
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

func rewind(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		next.Body = body
	}
	return next, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
