package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"energy-exchange/internal/application/backend"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	DatabaseURL         string // empty: listings live in memory only
	RedisURL            string // empty: in-process purchase guard, no traffic stats
	Mode                backend.Mode
	LedgerURL           string
	LedgerAPIKey        string
	LedgerTimeout       time.Duration
	GuardTTL            time.Duration
	AttemptMaxAge       time.Duration
	HealthAdminKey      string
	FrontendURLEndsWith string
	DevPassword         string
	LogLevel            string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("TRANSACTION_MODE", string(backend.ModeSimulated))
	v.SetDefault("LEDGER_TIMEOUT", "15s")
	v.SetDefault("GUARD_TTL", "2m")
	v.SetDefault("ATTEMPT_MAX_AGE", "30m")
	v.SetDefault("LOG_LEVEL", "info")

	mode, err := backend.ParseMode(v.GetString("TRANSACTION_MODE"))
	if err != nil {
		return nil, err
	}
	ledgerTimeout, err := duration(v, "LEDGER_TIMEOUT")
	if err != nil {
		return nil, err
	}
	guardTTL, err := duration(v, "GUARD_TTL")
	if err != nil {
		return nil, err
	}
	attemptMaxAge, err := duration(v, "ATTEMPT_MAX_AGE")
	if err != nil {
		return nil, err
	}
	// The ledger call runs detached from the request, so the guard must outlive it.
	if guardTTL <= ledgerTimeout {
		return nil, fmt.Errorf("config: GUARD_TTL (%s) must exceed LEDGER_TIMEOUT (%s)", guardTTL, ledgerTimeout)
	}

	cfg := &Config{
		Env:                 v.GetString("APP_ENV"),
		Port:                v.GetString("PORT"),
		DatabaseURL:         strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisURL:            strings.TrimSpace(v.GetString("REDIS_URL")),
		Mode:                mode,
		LedgerURL:           strings.TrimSpace(v.GetString("LEDGER_URL")),
		LedgerAPIKey:        v.GetString("LEDGER_API_KEY"),
		LedgerTimeout:       ledgerTimeout,
		GuardTTL:            guardTTL,
		AttemptMaxAge:       attemptMaxAge,
		HealthAdminKey:      v.GetString("HEALTH_ADMIN_KEY"),
		FrontendURLEndsWith: v.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         v.GetString("DEV_PASSWORD"),
		LogLevel:            v.GetString("LOG_LEVEL"),
	}
	if cfg.Mode == backend.ModeLive && cfg.LedgerURL == "" {
		return nil, errors.New("config: TRANSACTION_MODE=live requires LEDGER_URL")
	}
	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
