package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/etnz/stocker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.True(t, cfg.AllowShort)
	assert.Equal(t, "yahoo", cfg.Prices.Provider)
	assert.Equal(t, "0 0 0 * * *", cfg.Snapshot.Schedule)
	assert.False(t, cfg.Snapshot.Refresh)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stocker.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_currency = "HKD"
allow_short = false

[prices]
provider = "static"
timeout = "250ms"

[prices.static]
AAPL = "150.25 USD"
"0700.HK" = "380 HKD"

[rates]
provider = "static"

[rates.static]
USDHKD = "7.8"
`), 0o600))
	t.Setenv("STOCKER_LOG_LEVEL", "debug")
	t.Setenv("STOCKER_DB_PATH", "/tmp/other.db")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "HKD", cfg.BaseCurrency)
	assert.False(t, cfg.AllowShort)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/other.db", cfg.Storage.Path)
	assert.Equal(t, "250ms", cfg.Prices.GetTimeout().String())

	prices, err := cfg.Prices.StaticPrices()
	require.NoError(t, err)
	assert.True(t, prices["AAPL"].Equal(stocker.M(150.25, "USD")))
	assert.True(t, prices["0700.HK"].Equal(stocker.M(380, "HKD")))

	rates, err := cfg.Rates.StaticRates()
	require.NoError(t, err)
	assert.Equal(t, "7.8", rates["USDHKD"].String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, content string
	}{
		{"base currency", `base_currency = "usd"`},
		{"timezone", `timezone = "Mars/Olympus"`},
		{"price provider", "[prices]\nprovider = \"bloomberg\""},
		{"eodhd without key", "[prices]\nprovider = \"eodhd\""},
		{"rate provider", "[rates]\nprovider = \"ecb\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "stocker.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			assert.ErrorIs(t, err, stocker.ErrInvalidInput)
		})
	}
}

func TestStatic_Invalid(t *testing.T) {
	p := PriceConfig{Static: map[string]string{"AAPL": "150"}}
	_, err := p.StaticPrices()
	assert.ErrorIs(t, err, stocker.ErrInvalidInput)

	r := RateConfig{Static: map[string]string{"USD": "7.8"}}
	_, err = r.StaticRates()
	assert.ErrorIs(t, err, stocker.ErrInvalidInput)
}
