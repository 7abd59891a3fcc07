package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm/logger"

	"marketkit/internal/config"
	"marketkit/internal/key"
	"marketkit/internal/model"
	"marketkit/internal/store"
	"marketkit/internal/store/gormstore"
	"marketkit/internal/store/redisstore"
)

type stores struct {
	rates   store.Store[key.PairKey, model.Rate]
	charts  store.Store[key.ChartKey, model.ChartInfo]
	markets store.Store[key.MarketsKey, model.TopMarkets]
	closer  io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func buildStores(ctx context.Context, cfg config.Storage, logLevel string, log *slog.Logger) (stores, error) {
	switch cfg.Driver {
	case "memory":
		return stores{
			rates:   store.NewMemory[key.PairKey, model.Rate](),
			charts:  store.NewMemory[key.ChartKey, model.ChartInfo](),
			markets: store.NewMemory[key.MarketsKey, model.TopMarkets](),
			closer:  closerFunc(func() error { return nil }),
		}, nil

	case "sqlite", "postgres":
		level := logger.Warn
		if logLevel == "debug" {
			level = logger.Info
		}
		db, err := gormstore.Open(cfg.Driver, cfg.DSN, level)
		if err != nil {
			return stores{}, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return stores{}, fmt.Errorf("sql handle: %w", err)
		}
		log.Info("sql cache opened", "driver", cfg.Driver)
		return stores{
			rates:   gormstore.NewRateStore(db),
			charts:  gormstore.NewChartStore(db),
			markets: gormstore.NewMarketStore(db),
			closer:  sqlDB,
		}, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return stores{}, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		ttl := time.Duration(cfg.Redis.TTLSec) * time.Second
		log.Info("redis cache opened", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
		return stores{
			rates:   redisstore.New[key.PairKey, model.Rate](rdb, cfg.Redis.Prefix+":rates", ttl),
			charts:  redisstore.New[key.ChartKey, model.ChartInfo](rdb, cfg.Redis.Prefix+":charts", ttl),
			markets: redisstore.New[key.MarketsKey, model.TopMarkets](rdb, cfg.Redis.Prefix+":markets", ttl),
			closer:  rdb,
		}, nil

	default:
		return stores{}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
