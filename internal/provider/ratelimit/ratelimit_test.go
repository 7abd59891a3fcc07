package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNew_RequestsPerMinute(t *testing.T) {
	t.Parallel()

	l := New(120, 3, time.Second)
	require.NotNil(t, l)
	require.InEpsilon(t, 2.0, float64(l.Limit()), 0.0001)
	require.Equal(t, 3, l.Burst())
}

func TestNew_MinInterval(t *testing.T) {
	t.Parallel()

	l := New(0, 5, 2*time.Second)
	require.NotNil(t, l)
	require.Equal(t, rate.Every(2*time.Second), l.Limit())
	require.Equal(t, 1, l.Burst())
}

func TestNew_Unlimited(t *testing.T) {
	t.Parallel()

	require.Nil(t, New(0, 0, 0))
	require.NoError(t, Wait(t.Context(), nil))
}

func TestWait_HonorsContext(t *testing.T) {
	t.Parallel()

	l := New(0, 1, time.Hour)
	require.NoError(t, Wait(t.Context(), l))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, Wait(ctx, l))
}
