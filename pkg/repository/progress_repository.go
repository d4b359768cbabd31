package repository

import (
	"context"

	"github.com/deenly/progress-core/pkg/domain"
)

// ProgressRepository defines the remote relational store that mirrors local progress.
// Every write is keyed so it can be retried without changing the outcome.
type ProgressRepository interface {
	// GetDailyProgress retrieves the user's record for one calendar day.
	// Returns nil if no record exists.
	GetDailyProgress(ctx context.Context, userID, date string) (*domain.DailyProgress, error)

	// UpsertDailyProgress replaces the full row keyed by (user_id, date).
	// Uses INSERT ... ON CONFLICT (user_id, date) DO UPDATE. Last write wins.
	UpsertDailyProgress(ctx context.Context, userID string, progress *domain.DailyProgress) error

	// GetChallengeProgress retrieves all challenge rows for the given week boundary.
	// Returns empty slice if the user has no rows for that week.
	GetChallengeProgress(ctx context.Context, userID, weekStart string) ([]*domain.ChallengeProgress, error)

	// UpsertChallengeProgress replaces the row keyed by (user_id, challenge_id, week_start).
	UpsertChallengeProgress(ctx context.Context, userID string, progress *domain.ChallengeProgress) error

	// DeleteChallengeProgressBefore removes rows of weeks older than weekStart.
	// Routine cleanup; returns the number of rows deleted.
	DeleteChallengeProgressBefore(ctx context.Context, userID, weekStart string) (int64, error)

	// InsertAchievementUnlock records one unlock event. Insert-only.
	// A repeated insert with the same ID is a no-op, so retries never duplicate rows.
	InsertAchievementUnlock(ctx context.Context, unlock *domain.AchievementUnlock) error

	// GetUnlockedAchievementIDs returns the distinct achievement IDs the user has unlocked.
	GetUnlockedAchievementIDs(ctx context.Context, userID string) ([]domain.AchievementID, error)

	// GetTotalPoints returns the mirrored points total, or 0 if none is stored.
	GetTotalPoints(ctx context.Context, userID string) (int, error)

	// UpsertTotalPoints stores an absolute total. The stored value is never lowered.
	UpsertTotalPoints(ctx context.Context, userID string, total int) error
}
