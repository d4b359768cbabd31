package outbox

import (
	"encoding/json"
	"time"
)

// Op names a remote write operation.
type Op string

const (
	OpUpsertDailyProgress     Op = "upsert_daily_progress"
	OpUpsertChallengeProgress Op = "upsert_challenge_progress"
	OpDeleteChallengesBefore  Op = "delete_challenges_before"
	OpInsertAchievementUnlock Op = "insert_achievement_unlock"
	OpUpsertPoints            Op = "upsert_points"
)

// IsValid returns true if the op is a known operation.
func (o Op) IsValid() bool {
	switch o {
	case OpUpsertDailyProgress, OpUpsertChallengeProgress, OpDeleteChallengesBefore,
		OpInsertAchievementUnlock, OpUpsertPoints:
		return true
	default:
		return false
	}
}

// Job is one pending remote write.
type Job struct {
	ID         string          `json:"id"`
	Op         Op              `json:"op"`
	UserID     string          `json:"userId"`
	Key        string          `json:"key,omitempty"` // Coalescing key; empty for insert-only ops
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

type deleteBeforePayload struct {
	WeekStart string `json:"weekStart"`
}

type pointsPayload struct {
	Total int `json:"total"`
}
