package cache

import "github.com/deenly/progress-core/pkg/domain"

// CatalogCache provides O(1) in-memory lookups for catalog entries.
// This cache is built at application startup from the catalog file.
// All lookups are read-only and thread-safe.
type CatalogCache interface {
	// GetChallenge retrieves a challenge by its ID.
	// Returns nil if the challenge does not exist.
	GetChallenge(id domain.ChallengeID) *domain.Challenge

	// GetChallengeByMetric retrieves the challenge bound to a metric.
	// Returns nil if no challenge tracks this metric.
	GetChallengeByMetric(metric domain.Metric) *domain.Challenge

	// GetAllChallenges returns challenges in catalog order.
	GetAllChallenges() []*domain.Challenge

	// GetAchievement retrieves an achievement by its ID.
	// Returns nil if the achievement does not exist.
	GetAchievement(id domain.AchievementID) *domain.Achievement

	// GetAllAchievements returns achievements in catalog order.
	GetAllAchievements() []*domain.Achievement

	// Reload rebuilds the cache from the catalog source.
	// Returns error if the catalog cannot be read or is invalid; the old entries stay in place.
	Reload() error
}
