// Package kv is the local key-value store that holds the user-visible state.
// Values are opaque strings; engines store JSON-serialized records under fixed keys.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Keys used by the progress engines.
const (
	KeyDailyProgress      = "daily_progress"
	KeyWeeklyChallenges   = "weekly_challenges"
	KeyWeekBoundary       = "week_boundary"
	KeyTotalPoints        = "total_points"
	KeyWeeklyLectureCount = "weekly_lecture_count"
	KeyWeeklyWorkoutDays  = "weekly_workout_days"
	KeyAchievements       = "achievements"
	KeyLifetimeStats      = "lifetime_stats"
	KeyWeeklyTotals       = "weekly_totals"
	KeyOutboxJobs         = "outbox_jobs"
)

// Store is the local key-value contract.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Config selects and configures a Store implementation.
type Config struct {
	Driver        string // memory | file | redis
	Path          string // file driver
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New returns the Store selected by cfg.Driver.
func New(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Path)
	case "redis":
		return NewRedisStore(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("kv: unknown driver %q", cfg.Driver)
	}
}

// GetJSON decodes the value under key into v.
// Returns false with a nil error when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("kv: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
