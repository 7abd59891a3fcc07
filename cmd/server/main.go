package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"marketkit/internal/app"
	"marketkit/internal/config"
	"marketkit/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close", "err", err)
		}
	}()

	if err := a.Run(ctx); err != nil {
		logger.Error("run", "err", err)
		stop()
		os.Exit(1)
	}
}
