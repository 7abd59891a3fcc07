package janitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"marketkit/internal/key"
	"marketkit/internal/model"
	"marketkit/internal/store"
)

type failingPurger struct{}

func (failingPurger) PurgeOlderThan(context.Context, time.Time) (int, error) {
	return 0, errors.New("disk on fire")
}

type countingPurger struct {
	calls atomic.Int32
}

func (p *countingPurger) PurgeOlderThan(context.Context, time.Time) (int, error) {
	p.calls.Add(1)
	return 0, nil
}

func TestRunOnce_PurgesOlderThanMaxAge(t *testing.T) {
	t.Parallel()

	// Arrange
	clock := clockwork.NewFakeClockAt(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	charts := store.NewMemory[key.ChartKey, model.ChartInfo]()
	stale := key.ChartKey{CoinID: "bitcoin", Currency: "USD", Type: key.ChartDay}
	fresh := key.ChartKey{CoinID: "ethereum", Currency: "USD", Type: key.ChartDay}
	require.NoError(t, charts.Write(t.Context(), []model.ChartInfo{
		{Key: stale, Timestamp: clock.Now().Add(-72 * time.Hour)},
		{Key: fresh, Timestamp: clock.Now().Add(-time.Hour)},
	}))
	j := New(time.Hour, clock, nil,
		Task{Name: "broken", Store: failingPurger{}, MaxAge: time.Hour},
		Task{Name: "charts", Store: charts, MaxAge: 48 * time.Hour},
	)

	// Act
	n := j.RunOnce(t.Context())

	// Assert
	require.Equal(t, 1, n)
	_, ok, _ := charts.Read(t.Context(), stale)
	require.False(t, ok)
	_, ok, _ = charts.Read(t.Context(), fresh)
	require.True(t, ok)
}

func TestStart_RunsImmediately(t *testing.T) {
	t.Parallel()

	p := &countingPurger{}
	j := New(time.Hour, nil, nil, Task{Name: "count", Store: p, MaxAge: time.Hour})
	require.NoError(t, j.Start())
	t.Cleanup(j.Stop)

	require.Eventually(t, func() bool { return p.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
