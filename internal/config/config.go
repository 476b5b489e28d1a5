package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "SCHEDULE"

type SchedulerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	ConnectRetries uint64 `mapstructure:"connect_retries"`
}

type Config struct {
	DatabaseURL string          `mapstructure:"database_url"`
	ServerPort  string          `mapstructure:"server_port"`
	JWTSecret   string          `mapstructure:"jwt_secret"`
	TokenTTL    time.Duration   `mapstructure:"token_ttl"`
	LogLevel    string          `mapstructure:"log_level"`
	Timezone    string          `mapstructure:"timezone"`
	CORS        CORSConfig      `mapstructure:"cors"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	Database    DatabaseConfig  `mapstructure:"database"`
}

// Location resolves Timezone, falling back to the local zone when unset.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads config.yaml from the given directories (default "." and
// "./config") and applies SCHEDULE_* environment overrides. A missing file is
// not an error; a missing JWT secret is.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database_url", "")
	v.SetDefault("server_port", "8080")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 7*24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("timezone", "")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "@every 1m")
	v.SetDefault("database.connect_retries", 5)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if config.JWTSecret == "" {
		return nil, errors.New("jwt_secret must be set")
	}
	if config.DatabaseURL == "" {
		return nil, errors.New("database_url must be set")
	}
	if config.TokenTTL <= 0 {
		return nil, fmt.Errorf("token_ttl must be positive, got %s", config.TokenTTL)
	}
	if _, err := config.Location(); err != nil {
		return nil, err
	}

	return &config, nil
}
