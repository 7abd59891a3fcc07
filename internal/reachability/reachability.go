// Package reachability probes an upstream URL and reports when the network
// comes back.
package reachability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// Monitor starts out reachable. Listeners run on every transition from
// unreachable to reachable, outside the monitor lock.
type Monitor struct {
	cfg    Config
	client HTTPClient
	clock  clockwork.Clock
	logger *slog.Logger

	mu        sync.Mutex
	reachable bool
	listeners []func()
}

func New(cfg Config, client HTTPClient, clock clockwork.Clock, logger *slog.Logger) *Monitor {
	if client == nil {
		client = &http.Client{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Monitor{cfg: cfg, client: client, clock: clock, logger: logger.With("component", "reachability"), reachable: true}
}

// OnReachable registers fn for unreachable -> reachable transitions.
func (m *Monitor) OnReachable(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Monitor) Reachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reachable
}

// Run probes every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Check(ctx)
		}
	}
}

// Check probes once, records the result and fires listeners on recovery.
func (m *Monitor) Check(ctx context.Context) bool {
	ok := m.probe(ctx)

	m.mu.Lock()
	was := m.reachable
	m.reachable = ok
	var fire []func()
	if ok && !was {
		fire = append(fire, m.listeners...)
	}
	m.mu.Unlock()

	switch {
	case ok && !was:
		m.logger.Info("network reachable")
	case !ok && was:
		m.logger.Warn("network unreachable", "url", m.cfg.URL)
	}
	for _, fn := range fire {
		fn()
	}
	return ok
}

func (m *Monitor) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.cfg.URL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug("probe failed", "err", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < http.StatusInternalServerError
}
