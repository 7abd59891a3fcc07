// Package api exposes the market-data services over HTTP and WebSocket.
package api

import (
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"marketkit/internal/chart"
	"marketkit/internal/coordinator"
	"marketkit/internal/key"
	"marketkit/internal/markets"
	"marketkit/internal/rates"
)

type RateService interface {
	GetGroup(ctx context.Context, k key.GroupKey) ([]rates.Value, error)
	ObserveGroup(k key.GroupKey) (*rates.Subscription, error)
	Refresh()
	Stats() coordinator.Stats
}

type ChartService interface {
	Get(ctx context.Context, k key.ChartKey) (chart.Value, bool, error)
	Observe(k key.ChartKey) (*chart.Subscription, error)
	Refresh()
	Stats() coordinator.Stats
}

type MarketService interface {
	Get(ctx context.Context, k key.MarketsKey) (markets.Value, bool, error)
	Observe(k key.MarketsKey) (*markets.Subscription, error)
	Refresh()
	Stats() coordinator.Stats
}

type Config struct {
	// RequestTimeout bounds how long a REST call waits for a fetch.
	RequestTimeout time.Duration
	PingInterval   time.Duration
	// Reachable reports the network state for /healthz. Optional.
	Reachable func() bool
	// Clock must be the clock the services stamp records with.
	Clock clockwork.Clock
}

type Server struct {
	rates    RateService
	charts   ChartService
	markets  MarketService
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func New(r RateService, c ChartService, m MarketService, cfg Config, logger *slog.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		rates:   r,
		charts:  c,
		markets: m,
		cfg:     cfg,
		logger:  logger.With("component", "api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router builds the gin engine with all routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), cors(), s.requestLogger())

	router.GET("/healthz", s.health)

	api := router.Group("/api", withGzip(), limitBody())
	{
		api.GET("/rates", s.getRates)
		api.GET("/charts/:coin", s.getChart)
		api.GET("/markets", s.getMarkets)
		api.POST("/refresh", s.refresh)
	}

	ws := router.Group("/ws")
	{
		ws.GET("/rates", s.streamRates)
		ws.GET("/charts/:coin", s.streamChart)
		ws.GET("/markets", s.streamMarkets)
	}
	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/healthz" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		if c.Writer.Status() >= http.StatusBadRequest || duration > time.Second {
			s.logger.Info("request", "method", c.Request.Method, "path", path, "status", c.Writer.Status(), "duration", duration)
		}
	}
}

// withGzip compresses responses when the client accepts gzip.
func withGzip() gin.HandlerFunc {
	gzPool := sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(c.Writer)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		c.Header("Content-Encoding", "gzip")
		c.Writer.Header().Add("Vary", "Accept-Encoding")
		c.Writer = &gzipResponseWriter{ResponseWriter: c.Writer, writer: gz}
		c.Next()
	}
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	writer io.Writer
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	return g.writer.Write(b)
}

func (g *gzipResponseWriter) WriteString(s string) (int, error) {
	return io.WriteString(g.writer, s)
}

// limitBody caps request body size.
func limitBody() gin.HandlerFunc {
	const maxBody = 1 << 20 // 1MB
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
		}
		c.Next()
	}
}
