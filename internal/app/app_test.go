package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"marketkit/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Reachability.Enabled = false
	cfg.Janitor.Enabled = false
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuild_Backends(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		storage config.Storage
	}{
		{"memory", config.Storage{Driver: "memory"}},
		{"sqlite", config.Storage{Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared"}},
		{"redis", config.Storage{Driver: "redis", Redis: config.Redis{Addr: mr.Addr(), Prefix: "test"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			cfg := testConfig()
			cfg.Storage = tt.storage

			// Act
			a, err := Build(t.Context(), cfg, quietLogger())
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, a.Close()) })

			// Assert
			w := httptest.NewRecorder()
			a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestBuild_UnreachableRedisFails(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.Storage = config.Storage{Driver: "redis", Redis: config.Redis{Addr: addr}}

	_, err := Build(t.Context(), cfg, quietLogger())
	require.Error(t, err)
}

func TestBuild_WiresBackgroundJobs(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Reachability.Enabled = true
	cfg.Janitor.Enabled = true

	a, err := Build(t.Context(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	require.NotNil(t, a.monitor)
	require.NotNil(t, a.janitor)
	require.True(t, a.monitor.Reachable())
}

func TestBuildProviders_SingleProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.CryptoCompare.Enabled = false

	ps, err := buildProviders(cfg, nil, quietLogger())
	require.NoError(t, err)
	require.Equal(t, "coingecko", ps.rates.Name())
	require.Equal(t, "coingecko", ps.charts.Name())
	require.Equal(t, "coingecko", ps.markets.Name())

	cfg.CryptoCompare.Enabled = true
	ps, err = buildProviders(cfg, nil, quietLogger())
	require.NoError(t, err)
	require.Equal(t, "coingecko,cryptocompare", ps.rates.Name())
	require.Equal(t, "coingecko+cryptocompare", ps.charts.Name())
}
