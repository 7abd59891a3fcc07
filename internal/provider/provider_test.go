package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsPermanent(t *testing.T) {
	t.Parallel()

	require.True(t, IsPermanent(fmt.Errorf("coingecko: %w: bitcoin", ErrNoData)))
	require.True(t, IsPermanent(fmt.Errorf("cryptocompare: %w", ErrNoMatchingID)))
	require.True(t, IsPermanent(errors.Join(errors.New("a"), ErrNoData)))

	require.False(t, IsPermanent(fmt.Errorf("x: %w", ErrNetwork)))
	require.False(t, IsPermanent(fmt.Errorf("x: %w", ErrRateLimited)))
	require.False(t, IsPermanent(fmt.Errorf("x: %w", ErrDecode)))
	require.False(t, IsPermanent(nil))
}

func TestStatusErr(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, StatusErr(429), ErrRateLimited)
	require.ErrorIs(t, StatusErr(404), ErrNoData)
	require.ErrorIs(t, StatusErr(502), ErrNetwork)
	require.ErrorIs(t, StatusErr(403), ErrNetwork)
}
