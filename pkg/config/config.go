package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port            int    `env:"PORT" envDefault:"8080"`
	DatabaseDriver  string `env:"DATABASE_DRIVER" envDefault:"sqlite3"`
	DatabaseURL     string `env:"DATABASE_URL" envDefault:"lendbook.db"`
	DBBusyTimeoutMS int    `env:"DB_BUSY_TIMEOUT_MS" envDefault:"5000"`
	DBMaxOpenConns  int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"LOG_FORMAT" envDefault:"json"`
	// RecalcSchedule is a cron spec for the bulk balance recalculation.
	// Empty, the default, disables the job.
	RecalcSchedule string `env:"RECALC_SCHEDULE" envDefault:""`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite3 or postgres, got %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.RecalcSchedule != "" {
		if _, err := cron.ParseStandard(c.RecalcSchedule); err != nil {
			return fmt.Errorf("RECALC_SCHEDULE: %w", err)
		}
	}
	return nil
}

func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.DBBusyTimeoutMS) * time.Millisecond
}

// NewLogger builds the process logger from the configured level and format.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if c.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
