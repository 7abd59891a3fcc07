// Command fetch observes a set of coins and prints every update as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketkit/internal/app"
	"marketkit/internal/config"
	"marketkit/internal/key"
	"marketkit/internal/logging"
)

func main() {
	var (
		coinsCSV   string
		currency   string
		chartType  string
		updates    int
		timeout    time.Duration
		configPath string
	)
	flag.StringVar(&coinsCSV, "coins", getenv("COINS", "bitcoin,ethereum"), "comma-separated coin ids")
	flag.StringVar(&currency, "currency", getenv("CURRENCY", "USD"), "quote currency")
	flag.StringVar(&chartType, "chart", "", "chart type to observe for the first coin instead of rates (e.g. day, week)")
	flag.IntVar(&updates, "n", 1, "number of updates to print before exiting")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fatal("config: %v", err)
	}
	cfg.Reachability.Enabled = false
	cfg.Janitor.Enabled = false

	coins := splitCSV(coinsCSV)
	if len(coins) == 0 {
		fatal("no coins provided")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		fatal("build: %v", err)
	}
	defer a.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if chartType != "" {
		ct, err := key.ChartTypeByName(chartType)
		if err != nil {
			fatal("%v", err)
		}
		sub, err := a.Charts.Observe(key.ChartKey{CoinID: coins[0], Currency: currency, Type: ct})
		if err != nil {
			fatal("observe: %v", err)
		}
		defer sub.Close()
		for i := 0; i < updates; i++ {
			select {
			case <-ctx.Done():
				fatal("%v", ctx.Err())
			case u, ok := <-sub.Updates():
				if !ok {
					return
				}
				if u.Err != nil {
					fatal("%v", u.Err)
				}
				_ = enc.Encode(u.Values)
			}
		}
		return
	}

	sub, err := a.Rates.ObserveGroup(key.NewGroupKey(coins, currency))
	if err != nil {
		fatal("observe: %v", err)
	}
	defer sub.Close()
	for i := 0; i < updates; i++ {
		select {
		case <-ctx.Done():
			fatal("%v", ctx.Err())
		case u, ok := <-sub.Updates():
			if !ok {
				return
			}
			if u.Err != nil {
				fatal("%v", u.Err)
			}
			_ = enc.Encode(u.Values)
		}
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fetch: "+format+"\n", args...)
	os.Exit(1)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
