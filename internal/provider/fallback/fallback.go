// Package fallback chains a primary and a secondary chart provider.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"marketkit/internal/key"
	"marketkit/internal/model"
	"marketkit/internal/provider"
)

// errInvalid marks a primary result that failed validation.
var errInvalid = errors.New("invalid chart")

// Chart asks the primary first and falls back to the secondary when the
// primary has no identifier for the coin, has no data, or returns a series
// that is empty, outdated or all zero. Other primary errors are returned
// as is.
type Chart struct {
	primary   provider.ChartProvider
	secondary provider.ChartProvider
	clock     clockwork.Clock
	logger    *slog.Logger
}

func NewChart(primary, secondary provider.ChartProvider, clock clockwork.Clock, logger *slog.Logger) *Chart {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chart{primary: primary, secondary: secondary, clock: clock, logger: logger}
}

func (c *Chart) Name() string {
	if c.secondary == nil {
		return c.primary.Name()
	}
	return c.primary.Name() + "+" + c.secondary.Name()
}

func (c *Chart) ChartPoints(ctx context.Context, k key.ChartKey) ([]model.ChartPoint, error) {
	points, err := c.primary.ChartPoints(ctx, k)
	if err == nil {
		err = c.validate(k, points)
	}
	if err == nil {
		return points, nil
	}
	if !fallsBack(err) || c.secondary == nil {
		return nil, err
	}

	c.logger.Info("chart fallback", "key", k.String(), "primary", c.primary.Name(), "reason", err)
	points, err = c.secondary.ChartPoints(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.secondary.Name(), err)
	}
	return points, nil
}

func fallsBack(err error) bool {
	return errors.Is(err, errInvalid) ||
		errors.Is(err, provider.ErrNoMatchingID) ||
		errors.Is(err, provider.ErrNoData) ||
		errors.Is(err, provider.ErrDecode)
}

func (c *Chart) validate(k key.ChartKey, points []model.ChartPoint) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: no points", errInvalid)
	}
	last := points[len(points)-1].Timestamp
	if c.clock.Since(last) > k.Type.RangeInterval() {
		return fmt.Errorf("%w: last point %s is outdated", errInvalid, last)
	}
	for _, p := range points {
		if !p.Value.IsZero() {
			return nil
		}
	}
	return fmt.Errorf("%w: all values are zero", errInvalid)
}
