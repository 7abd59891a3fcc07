package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"marketkit/internal/coordinator"
	"marketkit/internal/key"
	"marketkit/internal/model"
	"marketkit/internal/provider"
)

const maxCoins = 1000

func (s *Server) health(c *gin.Context) {
	reachable := true
	if s.cfg.Reachable != nil {
		reachable = s.cfg.Reachable()
	}
	status := "ok"
	if !reachable {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"reachable": reachable,
		"rates":     s.rates.Stats(),
		"charts":    s.charts.Stats(),
		"markets":   s.markets.Stats(),
	})
}

func (s *Server) getRates(c *gin.Context) {
	gk, ok := groupKeyFromQuery(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	values, err := s.rates.GetGroup(ctx, gk)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(values) < len(gk.EntityIDs()) || !allFresh(values) {
		since := s.cfg.Clock.Now().Truncate(time.Millisecond)
		sub, err := s.rates.ObserveGroup(gk)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		fetched, err := awaitSync(ctx, sub, since)
		sub.Close()
		switch {
		case err == nil:
			values = fetched
		case len(values) == 0:
			writeFetchError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"currency": gk.Currency, "rates": values})
}

func (s *Server) getChart(c *gin.Context) {
	ck, ok := chartKeyFromRequest(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	v, cached, err := s.charts.Get(ctx, ck)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !cached || v.Expired {
		since := s.cfg.Clock.Now().Truncate(time.Millisecond)
		sub, err := s.charts.Observe(ck)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		fetched, err := awaitSync(ctx, sub, since)
		sub.Close()
		switch {
		case err == nil:
			v, cached = fetched[0], true
		case !cached:
			writeFetchError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) getMarkets(c *gin.Context) {
	mk := key.MarketsKey{Currency: c.DefaultQuery("currency", "USD")}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	v, cached, err := s.markets.Get(ctx, mk)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !cached || v.Expired {
		since := s.cfg.Clock.Now().Truncate(time.Millisecond)
		sub, err := s.markets.Observe(mk)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fetched, err := awaitSync(ctx, sub, since)
		sub.Close()
		switch {
		case err == nil:
			v, cached = fetched[0], true
		case !cached:
			writeFetchError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, v)
}

type refreshBody struct {
	Domains []string `json:"domains"`
}

// refresh forces the named domains, or all of them, to fetch now.
func (s *Server) refresh(c *gin.Context) {
	var b refreshBody
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if len(b.Domains) == 0 {
		b.Domains = []string{"rates", "charts", "markets"}
	}
	for _, d := range b.Domains {
		switch strings.ToLower(d) {
		case "rates":
			s.rates.Refresh()
		case "charts":
			s.charts.Refresh()
		case "markets":
			s.markets.Refresh()
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown domain " + d})
			return
		}
	}
	c.JSON(http.StatusAccepted, gin.H{"refreshed": b.Domains})
}

func groupKeyFromQuery(c *gin.Context) (key.GroupKey, bool) {
	q := c.Query("coins")
	if strings.TrimSpace(q) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing coins query param"})
		return key.GroupKey{}, false
	}
	coins := splitCSV(q)
	if len(coins) > maxCoins {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many coins (max 1000)"})
		return key.GroupKey{}, false
	}
	return key.NewGroupKey(coins, c.DefaultQuery("currency", "USD")), true
}

func chartKeyFromRequest(c *gin.Context) (key.ChartKey, bool) {
	ct, err := key.ChartTypeByName(c.DefaultQuery("type", key.ChartDay.Name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return key.ChartKey{}, false
	}
	return key.ChartKey{
		CoinID:   strings.TrimSpace(c.Param("coin")),
		Currency: c.DefaultQuery("currency", "USD"),
		Type:     ct,
	}, true
}

func writeFetchError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	switch {
	case provider.IsPermanent(err):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func allFresh[R model.Entry](values []model.CachedValue[R]) bool {
	for _, v := range values {
		if v.Expired {
			return false
		}
	}
	return true
}

// awaitSync waits for the first update that carries a record written at or
// after since, skipping re-published cache content.
func awaitSync[R model.Entry](ctx context.Context, sub *coordinator.Subscription[model.CachedValue[R]], since time.Time) ([]model.CachedValue[R], error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case u, ok := <-sub.Updates():
			if !ok {
				return nil, coordinator.ErrClosed
			}
			if u.Err != nil {
				return nil, u.Err
			}
			for _, v := range u.Values {
				if !v.Record.SyncedAt().Before(since) {
					return u.Values, nil
				}
			}
		}
	}
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
