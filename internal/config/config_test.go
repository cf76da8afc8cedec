package config

import (
	"testing"
	"time"

	"energy-exchange/internal/application/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TRANSACTION_MODE", "")
	t.Setenv("PORT", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, backend.ModeSimulated, cfg.Mode)
	assert.Equal(t, 15*time.Second, cfg.LedgerTimeout)
	assert.Equal(t, 2*time.Minute, cfg.GuardTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("TRANSACTION_MODE", "live")
	t.Setenv("LEDGER_URL", " http://ledger.local ")
	t.Setenv("GUARD_TTL", "45s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, backend.ModeLive, cfg.Mode)
	assert.Equal(t, "http://ledger.local", cfg.LedgerURL)
	assert.Equal(t, 45*time.Second, cfg.GuardTTL)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_LiveRequiresLedger(t *testing.T) {
	t.Setenv("TRANSACTION_MODE", "live")
	t.Setenv("LEDGER_URL", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("TRANSACTION_MODE", "paper")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("TRANSACTION_MODE", "simulated")
	t.Setenv("LEDGER_TIMEOUT", "soon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("LEDGER_TIMEOUT", "-1s")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_GuardTTLMustExceedLedgerTimeout(t *testing.T) {
	t.Setenv("TRANSACTION_MODE", "simulated")
	t.Setenv("LEDGER_TIMEOUT", "5m")
	t.Setenv("GUARD_TTL", "2m")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GUARD_TTL")

	t.Setenv("GUARD_TTL", "5m")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("GUARD_TTL", "6m")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6*time.Minute, cfg.GuardTTL)
	assert.Equal(t, 5*time.Minute, cfg.LedgerTimeout)
}
