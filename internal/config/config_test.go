package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadForTestsDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"REDIS_URL":     "redis://localhost:6379/0",
		"CURRENCY_CODE": "",
		"PORT":          "",
		"SESSION_TTL":   "",
	})
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "IDR", cfg.CurrencyCode)
	require.Equal(t, "2h0m0s", cfg.SessionTTL.String())
	require.Equal(t, 120, cfg.RateLimitPerMinute)
}

func TestLoadRequiresRedisURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"REDIS_URL": "",
	})
	require.Error(t, err)
}

func TestLoadParsesOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"REDIS_URL":             "redis://localhost:6379/0",
		"CURRENCY_CODE":         "usd",
		"SESSION_TTL":           "30m",
		"BREAKER_FAILURE_RATIO": "0.25",
		"HTTP_RETRY_MAX":        "5",
		"CORS_ALLOWED_ORIGINS":  "https://a.example, https://b.example",
	})
	require.NoError(t, err)
	require.Equal(t, "USD", cfg.CurrencyCode)
	require.Equal(t, "30m0s", cfg.SessionTTL.String())
	require.InDelta(t, 0.25, cfg.BreakerFailureRatio, 1e-9)
	require.Equal(t, 5, cfg.HTTPRetryMax)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsBadCurrency(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"REDIS_URL":     "redis://localhost:6379/0",
		"CURRENCY_CODE": "RUPIAH",
	})
	require.Error(t, err)
}
