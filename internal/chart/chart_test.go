package chart_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketkit/internal/chart"
	"marketkit/internal/key"
	"marketkit/internal/model"
	"marketkit/internal/provider"
	"marketkit/internal/provider/providermock"
	"marketkit/internal/store"
)

type fixture struct {
	clock    *clockwork.FakeClock
	provider *providermock.MockChartProvider
	store    *store.Memory[key.ChartKey, model.ChartInfo]
	svc      *chart.Service
}

func newFixture(t *testing.T, cfg chart.Config) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		clock:    clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		provider: providermock.NewMockChartProvider(ctrl),
		store:    store.NewMemory[key.ChartKey, model.ChartInfo](),
	}
	f.svc = chart.New(f.provider, f.store, cfg, f.clock, nil)
	t.Cleanup(f.svc.Close)
	return f
}

func (f *fixture) waitForTimers(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, n))
}

func receive(t *testing.T, sub *chart.Subscription) chart.Update {
	t.Helper()
	select {
	case u, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
		return chart.Update{}
	}
}

func series(now time.Time, n int) []model.ChartPoint {
	points := make([]model.ChartPoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		points = append(points, model.ChartPoint{
			Timestamp: now.Add(-time.Duration(i) * 4 * time.Hour),
			Value:     decimal.NewFromInt(int64(100 + i)),
		})
	}
	return points
}

var weekBTC = key.ChartKey{CoinID: "bitcoin", Currency: "USD", Type: key.ChartWeek}

func TestObserve_FetchesAndCaches(t *testing.T) {
	t.Parallel()

	// Arrange
	f := newFixture(t, chart.Config{Buffer: 5 * time.Minute, Retry: 30 * time.Second, ObserverBuffer: 4})
	points := series(f.clock.Now(), 3)
	f.provider.EXPECT().ChartPoints(gomock.Any(), weekBTC).Return(points, nil).Times(1)

	// Act
	sub, err := f.svc.Observe(key.ChartKey{CoinID: "bitcoin", Currency: "usd", Type: key.ChartWeek})
	require.NoError(t, err)

	// Assert
	u := receive(t, sub)
	require.NoError(t, u.Err)
	require.Len(t, u.Values, 1)
	require.Equal(t, weekBTC, u.Values[0].Record.Key)
	require.Equal(t, points, u.Values[0].Record.Points)
	require.Equal(t, 4*time.Hour, u.Values[0].ExpirationInterval)

	v, ok, err := f.svc.Get(t.Context(), weekBTC)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, v.Expired)
}

func TestObserve_BufferIsCappedAtHalfExpiration(t *testing.T) {
	t.Parallel()

	// Arrange: a fresh series is cached; buffer 3h exceeds half of 4h.
	f := newFixture(t, chart.Config{Buffer: 3 * time.Hour, Retry: 30 * time.Second, ObserverBuffer: 4})
	require.NoError(t, f.store.Write(t.Context(), []model.ChartInfo{
		{Key: weekBTC, Points: series(f.clock.Now(), 2), Timestamp: f.clock.Now()},
	}))
	f.provider.EXPECT().ChartPoints(gomock.Any(), weekBTC).Return(series(f.clock.Now(), 2), nil).Times(1)

	// Act
	sub, err := f.svc.Observe(weekBTC)
	require.NoError(t, err)
	f.waitForTimers(t, 1)
	f.clock.Advance(2*time.Hour - time.Minute)
	f.clock.Advance(time.Minute)

	// Assert
	u := receive(t, sub)
	require.NoError(t, u.Err)
	require.Equal(t, f.clock.Now(), u.Values[0].Record.Timestamp)
}

func TestObserve_NoMatchingIDTerminates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, chart.Config{Retry: time.Minute, FailureRetention: time.Hour})
	unknown := key.ChartKey{CoinID: "unlisted", Currency: "USD", Type: key.ChartDay}
	f.provider.EXPECT().ChartPoints(gomock.Any(), unknown).Return(nil, provider.ErrNoMatchingID).Times(1)

	sub, err := f.svc.Observe(unknown)
	require.NoError(t, err)

	require.ErrorIs(t, receive(t, sub).Err, provider.ErrNoMatchingID)
	require.False(t, f.svc.ForceRefresh(unknown))
	require.Zero(t, f.svc.Stats().Groups)
}

func TestObserve_RejectsEmptyCoin(t *testing.T) {
	t.Parallel()

	f := newFixture(t, chart.Config{})
	_, err := f.svc.Observe(key.ChartKey{Currency: "USD", Type: key.ChartDay})
	require.Error(t, err)
}
