package config

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "test.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DatabaseDriver)
	assert.Equal(t, "test.db", cfg.DatabaseURL)
	assert.Empty(t, cfg.RecalcSchedule)
	assert.Equal(t, int64(5000), cfg.BusyTimeout().Milliseconds())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db?sslmode=disable")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("RECALC_SCHEDULE", "0 3 * * *")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "0 3 * * *", cfg.RecalcSchedule)

	logger := cfg.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Port:           8080,
			DatabaseDriver: "sqlite3",
			DatabaseURL:    "x.db",
			LogLevel:       "info",
			LogFormat:      "json",
			RecalcSchedule: "@daily",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }},
		{"empty url", func(c *Config) { c.DatabaseURL = "" }},
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
		{"bad schedule", func(c *Config) { c.RecalcSchedule = "every tuesday" }},
	}

	ok := base()
	require.NoError(t, ok.Validate())

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	disabled := base()
	disabled.RecalcSchedule = ""
	assert.NoError(t, disabled.Validate())
}
