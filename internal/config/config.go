package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                   string   `mapstructure:"PORT"`
	Env                    string   `mapstructure:"ENV"`
	DatabaseURL            string   `mapstructure:"DATABASE_URL"`
	DBMaxConns             int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns             int32    `mapstructure:"DB_MIN_CONNS"`
	TriageBaseURL          string   `mapstructure:"TRIAGE_BASE_URL"`
	CORSOrigins            []string `mapstructure:"CORS_ORIGINS"`
	SnapshotTimeoutSeconds int      `mapstructure:"SNAPSHOT_TIMEOUT_SECONDS"`
	BoardLoadConcurrency   int      `mapstructure:"BOARD_LOAD_CONCURRENCY"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SNAPSHOT_TIMEOUT_SECONDS", 15)
	v.SetDefault("BOARD_LOAD_CONCURRENCY", 8)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("TRIAGE_BASE_URL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("SNAPSHOT_TIMEOUT_SECONDS")
	v.BindEnv("BOARD_LOAD_CONCURRENCY")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is complete enough to start: the
// encounter store and the triage backend are both hard dependencies.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.TriageBaseURL == "" {
		return fmt.Errorf("TRIAGE_BASE_URL is required")
	}
	u, err := url.Parse(c.TriageBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("TRIAGE_BASE_URL must be an absolute URL, got %q", c.TriageBaseURL)
	}
	if c.SnapshotTimeoutSeconds <= 0 {
		return fmt.Errorf("SNAPSHOT_TIMEOUT_SECONDS must be positive, got %d", c.SnapshotTimeoutSeconds)
	}
	if c.BoardLoadConcurrency <= 0 {
		return fmt.Errorf("BOARD_LOAD_CONCURRENCY must be positive, got %d", c.BoardLoadConcurrency)
	}
	return nil
}
