package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// KV drivers accepted by KV_DRIVER.
const (
	KVDriverMemory = "memory"
	KVDriverFile   = "file"
	KVDriverRedis  = "redis"
)

// Config is the process runtime configuration read from the environment.
type Config struct {
	// Application
	AppEnv      string
	UserID      string // Remote identity; empty disables remote mirroring
	HTTPAddr    string
	CatalogPath string
	Location    *time.Location
	ErrorLog    string // Optional file that additionally receives error records

	// Local key-value store
	KVDriver      string
	KVPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Outbox
	OutboxFlushInterval time.Duration
	OutboxMaxElapsed    time.Duration
}

// Load reads the runtime configuration. A .env file in the working directory is
// applied first when present; real environment variables win over it.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	return &Config{
		AppEnv:      envString("APP_ENV", "development"),
		UserID:      envString("APP_USER_ID", ""),
		HTTPAddr:    envString("HTTP_ADDR", ":8080"),
		CatalogPath: envString("CATALOG_PATH", ""),
		Location:    envLocation("TIMEZONE", time.Local),
		ErrorLog:    envString("LOG_ERROR_FILE", ""),

		KVDriver:      envString("KV_DRIVER", KVDriverFile),
		KVPath:        envString("KV_PATH", "./data/progress.json"),
		RedisAddr:     envString("REDIS_ADDR", ""),
		RedisPassword: envString("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		OutboxFlushInterval: envDuration("OUTBOX_FLUSH_INTERVAL", 30*time.Second),
		OutboxMaxElapsed:    envDuration("OUTBOX_MAX_ELAPSED", 10*time.Second),
	}
}

// HasRemoteIdentity reports whether writes should be mirrored to the remote store.
func (c *Config) HasRemoteIdentity() bool {
	return c.UserID != ""
}

// IsDevelopment reports whether logs should be human-readable text.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envLocation(key string, def *time.Location) *time.Location {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		slog.Warn("config invalid timezone, using default", "key", key, "value", v)
		return def
	}
	return loc
}
