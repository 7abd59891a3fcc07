package reachability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestCheck_FiresOnRecoveryOnly(t *testing.T) {
	t.Parallel()

	// Arrange
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	m := New(Config{URL: srv.URL, Timeout: time.Second}, srv.Client(), nil, nil)
	var fired atomic.Int32
	m.OnReachable(func() { fired.Add(1) })

	// Act / Assert
	require.False(t, m.Check(t.Context()))
	require.False(t, m.Reachable())
	require.False(t, m.Check(t.Context()))
	require.Zero(t, fired.Load())

	healthy.Store(true)
	require.True(t, m.Check(t.Context()))
	require.True(t, m.Check(t.Context()))
	require.Equal(t, int32(1), fired.Load())
}

func TestCheck_TransportErrorIsUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := New(Config{URL: url, Timeout: time.Second}, nil, nil, nil)
	require.False(t, m.Check(t.Context()))
}

func TestCheck_ClientErrorStatusCountsAsReachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	m := New(Config{URL: srv.URL}, srv.Client(), nil, nil)
	require.True(t, m.Check(t.Context()))
}

func TestRun_ProbesOnInterval(t *testing.T) {
	t.Parallel()

	// Arrange
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	clock := clockwork.NewFakeClock()
	m := New(Config{URL: srv.URL, Interval: 10 * time.Second}, srv.Client(), clock, nil)

	ctx, cancel := context.WithCancel(t.Context())
	t.Cleanup(cancel)
	go m.Run(ctx)

	// Act
	waitCtx, waitCancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	clock.Advance(10 * time.Second)

	// Assert
	require.Eventually(t, func() bool { return !m.Reachable() }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, int32(1), hits.Load())
}
