// Package app assembles the engine from configuration: providers, cache
// backend, the three domain services, reachability, janitor and HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"marketkit/internal/api"
	"marketkit/internal/chart"
	"marketkit/internal/config"
	"marketkit/internal/janitor"
	"marketkit/internal/markets"
	"marketkit/internal/rates"
	"marketkit/internal/reachability"
)

type App struct {
	Rates   *rates.Service
	Charts  *chart.Service
	Markets *markets.Service

	cfg     config.Config
	logger  *slog.Logger
	monitor *reachability.Monitor
	janitor *janitor.Janitor
	server  *http.Server
	stores  stores
}

// Build wires every component. Nothing runs until Run.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	clock := clockwork.NewRealClock()

	ps, err := buildProviders(cfg, clock, logger)
	if err != nil {
		return nil, err
	}
	st, err := buildStores(ctx, cfg.Storage, cfg.Log.Level, logger)
	if err != nil {
		return nil, err
	}

	sc := cfg.Sync
	a := &App{cfg: cfg, logger: logger, stores: st}
	a.Rates = rates.New(ps.rates, st.rates, rates.Config{
		Expiration:       sc.RatesExpiration(),
		Buffer:           sc.BufferInterval(),
		Retry:            sc.RetryInterval(),
		SyncTimeout:      sc.SyncTimeout(),
		FailureRetention: sc.FailureRetention(),
		ObserverBuffer:   sc.ObserverBuffer,
	}, clock, logger)
	a.Charts = chart.New(ps.charts, st.charts, chart.Config{
		Buffer:           sc.BufferInterval(),
		Retry:            sc.RetryInterval(),
		SyncTimeout:      sc.SyncTimeout(),
		FailureRetention: sc.FailureRetention(),
		ObserverBuffer:   sc.ObserverBuffer,
	}, clock, logger)
	a.Markets = markets.New(ps.markets, st.markets, markets.Config{
		Expiration:       sc.MarketsExpiration(),
		Buffer:           sc.BufferInterval(),
		Retry:            sc.RetryInterval(),
		SyncTimeout:      sc.SyncTimeout(),
		FailureRetention: sc.FailureRetention(),
		ObserverBuffer:   sc.ObserverBuffer,
		Limit:            sc.MarketsLimit,
	}, clock, logger)

	if rc := cfg.Reachability; rc.Enabled {
		a.monitor = reachability.New(reachability.Config{
			URL:      rc.URL,
			Interval: time.Duration(rc.IntervalSec) * time.Second,
			Timeout:  time.Duration(rc.TimeoutSec) * time.Second,
		}, nil, clock, logger)
		a.monitor.OnReachable(a.Rates.OnReachable)
		a.monitor.OnReachable(a.Charts.OnReachable)
		a.monitor.OnReachable(a.Markets.OnReachable)
	}

	if jc := cfg.Janitor; jc.Enabled {
		maxAge := time.Duration(jc.ChartMaxAgeHours) * time.Hour
		var tasks []janitor.Task
		if p, ok := st.charts.(janitor.Purger); ok {
			tasks = append(tasks, janitor.Task{Name: "charts", Store: p, MaxAge: maxAge})
		}
		if p, ok := st.rates.(janitor.Purger); ok {
			tasks = append(tasks, janitor.Task{Name: "rates", Store: p, MaxAge: maxAge})
		}
		if len(tasks) > 0 {
			a.janitor = janitor.New(time.Duration(jc.IntervalMin)*time.Minute, clock, logger, tasks...)
		}
	}

	apiCfg := api.Config{
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
		Clock:          clock,
	}
	if a.monitor != nil {
		apiCfg.Reachable = a.monitor.Reachable
	}
	a.server = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.New(a.Rates, a.Charts, a.Markets, apiCfg, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// Handler returns the HTTP handler of the API.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Run serves HTTP and runs the background jobs until ctx is done, then
// shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if a.monitor != nil {
		go a.monitor.Run(ctx)
	}
	if a.janitor != nil {
		if err := a.janitor.Start(); err != nil {
			return err
		}
		defer a.janitor.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	a.logger.Info("shutting down")
	return a.server.Shutdown(shutdownCtx)
}

// Close ends all subscriptions and releases the cache backend.
func (a *App) Close() error {
	a.Rates.Close()
	a.Charts.Close()
	a.Markets.Close()
	return a.stores.closer.Close()
}
