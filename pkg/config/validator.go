package config

import (
	"errors"
	"fmt"

	"github.com/deenly/progress-core/pkg/domain"
)

// Validator validates catalog files.
// It ensures all business rules are met before the application starts.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate performs comprehensive validation of the catalog.
// It checks for:
// - At least one challenge exists
// - Challenge and achievement IDs are known and unique
// - Each metric is bound to at most one challenge
// - All requirements and rewards are valid
//
// Returns an error describing the first validation failure encountered.
func (v *Validator) Validate(catalog *Catalog) error {
	if len(catalog.Challenges) == 0 {
		return errors.New("catalog must have at least one challenge")
	}

	challengeIDs := make(map[domain.ChallengeID]bool)
	metrics := make(map[domain.Metric]domain.ChallengeID)

	for _, challenge := range catalog.Challenges {
		if challenge == nil {
			return errors.New("challenge entry cannot be null")
		}
		if err := v.validateChallenge(challenge); err != nil {
			return fmt.Errorf("invalid challenge '%s': %w", challenge.ID, err)
		}

		if challengeIDs[challenge.ID] {
			return fmt.Errorf("duplicate challenge ID: %s", challenge.ID)
		}
		challengeIDs[challenge.ID] = true

		// SyncWeeklyChallengesWithStats dispatches by metric, so a metric cannot be shared.
		if other, exists := metrics[challenge.Requirement.Metric]; exists {
			return fmt.Errorf("metric '%s' is bound to both '%s' and '%s'", challenge.Requirement.Metric, other, challenge.ID)
		}
		metrics[challenge.Requirement.Metric] = challenge.ID
	}

	achievementIDs := make(map[domain.AchievementID]bool)
	for _, achievement := range catalog.Achievements {
		if achievement == nil {
			return errors.New("achievement entry cannot be null")
		}
		if err := v.validateAchievement(achievement); err != nil {
			return fmt.Errorf("invalid achievement '%s': %w", achievement.ID, err)
		}

		if achievementIDs[achievement.ID] {
			return fmt.Errorf("duplicate achievement ID: %s", achievement.ID)
		}
		achievementIDs[achievement.ID] = true
	}

	return nil
}

// validateChallenge validates a single challenge.
func (v *Validator) validateChallenge(challenge *domain.Challenge) error {
	if challenge.ID == "" {
		return errors.New("challenge ID cannot be empty")
	}
	if !challenge.ID.IsValid() {
		return fmt.Errorf("unknown challenge ID '%s'", challenge.ID)
	}
	if challenge.Title == "" {
		return errors.New("challenge title cannot be empty")
	}
	if !challenge.Difficulty.IsValid() {
		return fmt.Errorf("invalid difficulty '%s' (must be 'easy', 'medium', or 'hard')", challenge.Difficulty)
	}

	// Validate requirement
	if challenge.Requirement.Metric == "" {
		return errors.New("metric cannot be empty")
	}
	if !challenge.Requirement.Metric.IsValid() {
		return fmt.Errorf("unknown metric '%s'", challenge.Requirement.Metric)
	}
	if challenge.Requirement.TargetValue <= 0 {
		return errors.New("targetValue must be positive")
	}

	// Validate reward
	if challenge.Reward.Points <= 0 {
		return errors.New("reward points must be positive")
	}

	return nil
}

// validateAchievement validates a single achievement.
func (v *Validator) validateAchievement(achievement *domain.Achievement) error {
	if achievement.ID == "" {
		return errors.New("achievement ID cannot be empty")
	}
	if !achievement.ID.IsValid() {
		return fmt.Errorf("unknown achievement ID '%s' (no unlock predicate)", achievement.ID)
	}
	if achievement.Title == "" {
		return errors.New("achievement title cannot be empty")
	}
	if !achievement.Rarity.IsValid() {
		return fmt.Errorf("invalid rarity '%s' (must be 'common', 'rare', 'epic', or 'legendary')", achievement.Rarity)
	}
	if achievement.Points < 0 {
		return errors.New("points cannot be negative")
	}
	return nil
}
