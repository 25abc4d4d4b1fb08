package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/price-tracker/pkg/errs"
)

func TestLoadFrom_Defaults(t *testing.T) {
	t.Setenv("SCRAPER_API_KEY", "secret")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, TransportProxy, cfg.FetchTransport)
	assert.Equal(t, "sa", cfg.CountryCode)
	assert.Equal(t, "SAR", cfg.Currency)
	assert.Equal(t, 3, cfg.FetchMaxAttempts)
	assert.Equal(t, 70*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.InterRequestDelay)
	assert.Equal(t, 2*time.Hour, cfg.RunTimeout)
	assert.InDelta(t, 0.10, cfg.MaxInvalidFraction, 1e-9)

	delays, err := cfg.RetryDelays()
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, delays)
}

func TestLoadFrom_EnvFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FETCH_TRANSPORT=direct\nCOUNTRY_CODE=ae\nFETCH_RETRY_DELAYS=1s, 2s\n"), 0o600))
	t.Setenv("COUNTRY_CODE", "eg")

	cfg, err := LoadFrom(envFile)
	require.NoError(t, err)

	assert.Equal(t, TransportDirect, cfg.FetchTransport)
	assert.Equal(t, "eg", cfg.CountryCode)

	delays, err := cfg.RetryDelays()
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestValidate(t *testing.T) {
	t.Setenv("FETCH_TRANSPORT", "proxy")
	t.Setenv("SCRAPER_API_KEY", "")
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "SCRAPER_API_KEY")
	assert.True(t, errs.Is(err, errs.ErrInvalidInput))

	t.Setenv("FETCH_TRANSPORT", "carrier-pigeon")
	_, err = LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "unknown FETCH_TRANSPORT")

	t.Setenv("FETCH_TRANSPORT", "direct")
	t.Setenv("FETCH_RETRY_DELAYS", "soon")
	_, err = LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "FETCH_RETRY_DELAYS")
	assert.True(t, errs.Is(err, errs.ErrInvalidInput))
}

func TestProductIDs(t *testing.T) {
	cfg := &Config{ProductIDList: " N1, N2 ,,N3"}
	ids, err := cfg.ProductIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"N1", "N2", "N3"}, ids)

	file := filepath.Join(t.TempDir(), "products.txt")
	require.NoError(t, os.WriteFile(file, []byte("# tracked\nNA1\n\n  NB2  \n"), 0o600))
	cfg = &Config{ProductFile: file}
	ids, err = cfg.ProductIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"NA1", "NB2"}, ids)

	ids, err = (&Config{}).ProductIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
