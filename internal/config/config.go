// Package config loads the service configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/fieldops/attendance-engine/internal/integrity"
	"github.com/fieldops/attendance-engine/internal/integrity/pattern"
	"github.com/fieldops/attendance-engine/internal/integrity/travel"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Lock      LockConfig
	Integrity integrity.Config
	LogLevel  string
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the optional redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LockConfig selects and tunes the operation-lock backend.
type LockConfig struct {
	// Backend is "memory" (default, single instance) or "redis"
	// (advisory lock for multi-instance deployments).
	Backend string
	Timeout time.Duration
	TTL     time.Duration
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig() // .env is optional

	viper.SetDefault("SERVER_ADDR", ":8080")
	viper.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("LOCK_BACKEND", "memory")
	viper.SetDefault("LOCK_TIMEOUT", "5s")
	viper.SetDefault("LOCK_TTL", "30s")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TIMEZONE", "UTC")
	viper.SetDefault("MAX_SHIFT_HOURS", 16.0)

	viper.SetDefault("TRAVEL_REJECT_KMH", 200.0)
	viper.SetDefault("TRAVEL_HIGH_KMH", 100.0)
	viper.SetDefault("TRAVEL_MEDIUM_KMH", 60.0)

	viper.SetDefault("PATTERN_WINDOW_DAYS", 30)
	viper.SetDefault("PATTERN_SPEED_THRESHOLD_KMH", 60.0)
	viper.SetDefault("PATTERN_BUCKET_REUSE_LIMIT", 5)
	viper.SetDefault("PATTERN_RAPID_GAP", "1m")
	viper.SetDefault("PATTERN_FLOOR", 3)
	viper.SetDefault("PATTERN_MEDIUM_FLOOR", 5)
	viper.SetDefault("PATTERN_HIGH_FLOOR", 10)

	cfg := &Config{
		Server: ServerConfig{
			Addr:            viper.GetString("SERVER_ADDR"),
			ShutdownTimeout: viper.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			DSN:             viper.GetString("DB_DSN"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Lock: LockConfig{
			Backend: viper.GetString("LOCK_BACKEND"),
			Timeout: viper.GetDuration("LOCK_TIMEOUT"),
			TTL:     viper.GetDuration("LOCK_TTL"),
		},
		Integrity: integrity.Config{
			Travel: travel.Thresholds{
				RejectKmh: viper.GetFloat64("TRAVEL_REJECT_KMH"),
				HighKmh:   viper.GetFloat64("TRAVEL_HIGH_KMH"),
				MediumKmh: viper.GetFloat64("TRAVEL_MEDIUM_KMH"),
			},
			Pattern: pattern.Config{
				WindowDays:        viper.GetInt("PATTERN_WINDOW_DAYS"),
				SpeedThresholdKmh: viper.GetFloat64("PATTERN_SPEED_THRESHOLD_KMH"),
				BucketReuseLimit:  viper.GetInt("PATTERN_BUCKET_REUSE_LIMIT"),
				RapidGap:          viper.GetDuration("PATTERN_RAPID_GAP"),
				MaxShiftHours:     viper.GetFloat64("MAX_SHIFT_HOURS"),
				PatternFloor:      viper.GetInt("PATTERN_FLOOR"),
				MediumFloor:       viper.GetInt("PATTERN_MEDIUM_FLOOR"),
				HighFloor:         viper.GetInt("PATTERN_HIGH_FLOOR"),
			},
			Timezone:      viper.GetString("TIMEZONE"),
			MaxShiftHours: viper.GetFloat64("MAX_SHIFT_HOURS"),
		},
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}
	if cfg.Lock.Backend != "memory" && cfg.Lock.Backend != "redis" {
		return nil, fmt.Errorf("LOCK_BACKEND must be memory or redis, got %q", cfg.Lock.Backend)
	}
	return cfg, nil
}
