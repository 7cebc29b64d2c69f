package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, StorePostgres, cfg.LedgerStore)
	assert.Equal(t, 2*time.Minute, cfg.LedgerLockTTL)
	assert.Equal(t, "5 0 * * *", cfg.RecurringCron)
	assert.Equal(t, 120, cfg.RateLimit)
	rate, err := cfg.TaxRate()
	require.NoError(t, err)
	assert.True(t, rate.IsZero())
	assert.Equal(t, cfg.RedisAddr, cfg.AsynqRedis().Addr)
	assert.Equal(t, cfg.RedisAddr, cfg.RedisOptions().Addr)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":  {"LEDGER_STORE": "sqlite"},
		"tax too high":   {"SALES_TAX_RATE": "1.5"},
		"tax negative":   {"SALES_TAX_RATE": "-0.1"},
		"tax not number": {"SALES_TAX_RATE": "eleven"},
		"log level":      {"LOG_LEVEL": "chatty"},
		"rate limit":     {"APP_RATE_LIMIT": "lots"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMemoryStore(t *testing.T) {
	t.Setenv("LEDGER_STORE", StoreMemory)
	t.Setenv("SALES_TAX_RATE", "0.11")
	t.Setenv("APP_ENV", "production")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	rate, err := cfg.TaxRate()
	require.NoError(t, err)
	assert.Equal(t, "0.11", rate.String())
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: "production", LogFormat: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("shown", slog.Int("n", 1))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "production", line["env"])

	buf.Reset()
	logger = newLogger(&Config{AppEnv: "production", LogLevel: "debug"}, &buf)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestInTestMode(t *testing.T) {
	t.Setenv(TestModeEnv, "1")
	assert.True(t, InTestMode())
	t.Setenv(TestModeEnv, "false")
	assert.False(t, InTestMode())
	t.Setenv(TestModeEnv, "")
	assert.False(t, InTestMode())
}
