package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"marketkit/internal/coordinator"
	"marketkit/internal/key"
	"marketkit/internal/model"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 512
)

// message is one frame sent to a WebSocket client.
type message struct {
	Type   string `json:"type"`
	Values any    `json:"values,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) streamRates(c *gin.Context) {
	gk, ok := groupKeyFromQuery(c)
	if !ok {
		return
	}
	sub, err := s.rates.ObserveGroup(gk)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	snapshot, _ := s.rates.GetGroup(c.Request.Context(), gk)
	stream(s, c, snapshot, sub)
}

func (s *Server) streamChart(c *gin.Context) {
	ck, ok := chartKeyFromRequest(c)
	if !ok {
		return
	}
	sub, err := s.charts.Observe(ck)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var snapshot []model.CachedValue[model.ChartInfo]
	if v, ok, _ := s.charts.Get(c.Request.Context(), ck); ok {
		snapshot = append(snapshot, v)
	}
	stream(s, c, snapshot, sub)
}

func (s *Server) streamMarkets(c *gin.Context) {
	mk := key.MarketsKey{Currency: c.DefaultQuery("currency", "USD")}
	sub, err := s.markets.Observe(mk)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var snapshot []model.CachedValue[model.TopMarkets]
	if v, ok, _ := s.markets.Get(c.Request.Context(), mk); ok {
		snapshot = append(snapshot, v)
	}
	stream(s, c, snapshot, sub)
}

// stream upgrades the request and forwards sub until the client goes away or
// a terminal error arrives. The cached snapshot, if any, is sent first.
func stream[R model.Entry](s *Server, c *gin.Context, snapshot []model.CachedValue[R], sub *coordinator.Subscription[model.CachedValue[R]]) {
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(wsReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket read", "err", err)
				}
				return
			}
		}
	}()

	write := func(m message) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(m)
	}
	closeWith := func(code int, text string) {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
	}

	if len(snapshot) > 0 {
		if err := write(message{Type: "snapshot", Values: snapshot}); err != nil {
			return
		}
	}

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case u, ok := <-sub.Updates():
			if !ok {
				closeWith(websocket.CloseGoingAway, "shutting down")
				return
			}
			if u.Err != nil {
				_ = write(message{Type: "error", Error: u.Err.Error()})
				closeWith(websocket.CloseNormalClosure, "terminal error")
				return
			}
			if err := write(message{Type: "update", Values: u.Values}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
