// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime settings.
type Config struct {
	HTTPAddr string

	// DBDriver selects the store backend: "sqlite" or "postgres".
	DBDriver string
	// DBDSN is the SQLite file path or the Postgres connection string.
	DBDSN string

	FetchTimeout time.Duration

	// MediaReclaimSchedule is a cron expression for the orphaned-media job.
	MediaReclaimSchedule string

	// StorageBucket guards object deletion: URLs not containing the bucket
	// name are left alone.
	StorageBucket string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from a .env file (if present) and environment
// variables, applying defaults for anything unset.
func Load() Config {
	// Missing .env is fine; real deployments set environment variables.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "feedmix.db")
	v.SetDefault("FETCH_TIMEOUT_SECONDS", 30)
	v.SetDefault("MEDIA_RECLAIM_SCHEDULE", "0 * * * *")
	v.SetDefault("STORAGE_BUCKET", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.AutomaticEnv()

	return Config{
		HTTPAddr:             v.GetString("HTTP_ADDR"),
		DBDriver:             v.GetString("DB_DRIVER"),
		DBDSN:                v.GetString("DB_DSN"),
		FetchTimeout:         time.Duration(v.GetInt("FETCH_TIMEOUT_SECONDS")) * time.Second,
		MediaReclaimSchedule: v.GetString("MEDIA_RECLAIM_SCHEDULE"),
		StorageBucket:        v.GetString("STORAGE_BUCKET"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogFormat:            v.GetString("LOG_FORMAT"),
	}
}
