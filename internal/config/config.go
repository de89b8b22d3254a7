package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr          string        `yaml:"addr"`
	Environment   string        `yaml:"environment"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	DatabasePath  string        `yaml:"database_path"`
	TokenDuration time.Duration `yaml:"token_duration"`
	SyncEnabled   bool          `yaml:"sync_enabled"`
	ExpiryWindow  int           `yaml:"expiry_window_days"`
}

const defaultJWTSecret = "supersecretkey"

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:          getEnv("TRACKER_ADDR", ":8080"),
		Environment:   getEnv("TRACKER_ENV", "development"),
		JWTSecret:     getEnv("TRACKER_JWT_SECRET", defaultJWTSecret),
		APITimeout:    15 * time.Second,
		DatabasePath:  getEnv("TRACKER_DATABASE_PATH", "tracker.db"),
		TokenDuration: 1 * time.Hour,
		SyncEnabled:   getEnvBool("TRACKER_SYNC_ENABLED", false),
		ExpiryWindow:  30,
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that must never reach a shared deployment.
func (c *Config) Validate() error {
	if c.Environment != "development" && c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("jwt_secret must be changed outside development")
	}
	if c.ExpiryWindow <= 0 {
		return fmt.Errorf("expiry_window_days must be positive, got %d", c.ExpiryWindow)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}

	return def
}
