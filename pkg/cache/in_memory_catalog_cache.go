package cache

import (
	"log/slog"
	"sync"

	"github.com/deenly/progress-core/pkg/config"
	"github.com/deenly/progress-core/pkg/domain"
)

// InMemoryCatalogCache indexes the validated catalog for O(1) lookups.
// Entries are immutable after construction; Reload swaps every index at once.
type InMemoryCatalogCache struct {
	challengesByID     map[domain.ChallengeID]*domain.Challenge
	challengesByMetric map[domain.Metric]*domain.Challenge
	challenges         []*domain.Challenge
	achievementsByID   map[domain.AchievementID]*domain.Achievement
	achievements       []*domain.Achievement
	catalogPath        string // "" means the embedded default catalog
	mu                 sync.RWMutex
	logger             *slog.Logger
}

// NewInMemoryCatalogCache creates a new cache from the provided catalog.
//
// Parameters:
//   - catalog: Validated catalog of challenges and achievements
//   - catalogPath: Path to the catalog file (used for reload)
//   - logger: Structured logger for operational logging
func NewInMemoryCatalogCache(catalog *config.Catalog, catalogPath string, logger *slog.Logger) *InMemoryCatalogCache {
	c := &InMemoryCatalogCache{
		catalogPath: catalogPath,
		logger:      logger,
	}

	c.buildCache(catalog)

	return c
}

// buildCache constructs all indexes from the catalog, replacing existing data.
func (c *InMemoryCatalogCache) buildCache(catalog *config.Catalog) {
	challengesByID := make(map[domain.ChallengeID]*domain.Challenge, len(catalog.Challenges))
	challengesByMetric := make(map[domain.Metric]*domain.Challenge, len(catalog.Challenges))
	challenges := make([]*domain.Challenge, 0, len(catalog.Challenges))
	for _, challenge := range catalog.Challenges {
		challengesByID[challenge.ID] = challenge
		challengesByMetric[challenge.Requirement.Metric] = challenge
		challenges = append(challenges, challenge)
	}

	achievementsByID := make(map[domain.AchievementID]*domain.Achievement, len(catalog.Achievements))
	achievements := make([]*domain.Achievement, 0, len(catalog.Achievements))
	for _, achievement := range catalog.Achievements {
		achievementsByID[achievement.ID] = achievement
		achievements = append(achievements, achievement)
	}

	c.mu.Lock()
	c.challengesByID = challengesByID
	c.challengesByMetric = challengesByMetric
	c.challenges = challenges
	c.achievementsByID = achievementsByID
	c.achievements = achievements
	c.mu.Unlock()

	c.logger.Info("Catalog cache built successfully",
		"challenges", len(challenges),
		"achievements", len(achievements),
	)
}

// GetChallenge retrieves a challenge by its ID.
func (c *InMemoryCatalogCache) GetChallenge(id domain.ChallengeID) *domain.Challenge {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.challengesByID[id]
}

// GetChallengeByMetric retrieves the challenge bound to a metric.
func (c *InMemoryCatalogCache) GetChallengeByMetric(metric domain.Metric) *domain.Challenge {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.challengesByMetric[metric]
}

// GetAllChallenges returns challenges in catalog order.
// The slice is shared; callers must not modify it.
func (c *InMemoryCatalogCache) GetAllChallenges() []*domain.Challenge {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.challenges
}

// GetAchievement retrieves an achievement by its ID.
func (c *InMemoryCatalogCache) GetAchievement(id domain.AchievementID) *domain.Achievement {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.achievementsByID[id]
}

// GetAllAchievements returns achievements in catalog order.
// The slice is shared; callers must not modify it.
func (c *InMemoryCatalogCache) GetAllAchievements() []*domain.Achievement {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.achievements
}

// Reload re-reads the catalog from its source and rebuilds the indexes.
func (c *InMemoryCatalogCache) Reload() error {
	loader := config.NewCatalogLoader(c.catalogPath, c.logger)
	catalog, err := loader.LoadCatalog()
	if err != nil {
		return err
	}

	c.buildCache(catalog)

	c.logger.Info("Catalog cache reloaded successfully")

	return nil
}
