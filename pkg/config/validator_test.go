package config

import (
	"strings"
	"testing"

	"github.com/deenly/progress-core/pkg/domain"
)

func validChallenge() *domain.Challenge {
	return &domain.Challenge{
		ID:          domain.ChallengeQuranReader,
		Title:       "Quran Reader",
		Description: "Read 20 pages",
		Difficulty:  domain.DifficultyMedium,
		Requirement: domain.Requirement{Metric: domain.MetricQuranPages, TargetValue: 20},
		Reward:      domain.Reward{Points: 100},
	}
}

func validAchievement() *domain.Achievement {
	return &domain.Achievement{
		ID:     domain.AchievementVerses50,
		Title:  "Guardian of Verses",
		Rarity: domain.RarityRare,
		Points: 250,
	}
}

func TestValidator_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Catalog)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid catalog",
			mutate:  func(c *Catalog) {},
			wantErr: false,
		},
		{
			name:    "empty challenges",
			mutate:  func(c *Catalog) { c.Challenges = nil },
			wantErr: true,
			errMsg:  "catalog must have at least one challenge",
		},
		{
			name:    "nil challenge entry",
			mutate:  func(c *Catalog) { c.Challenges = append(c.Challenges, nil) },
			wantErr: true,
			errMsg:  "challenge entry cannot be null",
		},
		{
			name:    "empty challenge ID",
			mutate:  func(c *Catalog) { c.Challenges[0].ID = "" },
			wantErr: true,
			errMsg:  "challenge ID cannot be empty",
		},
		{
			name:    "unknown challenge ID",
			mutate:  func(c *Catalog) { c.Challenges[0].ID = "weekly-running" },
			wantErr: true,
			errMsg:  "unknown challenge ID",
		},
		{
			name:    "empty title",
			mutate:  func(c *Catalog) { c.Challenges[0].Title = "" },
			wantErr: true,
			errMsg:  "challenge title cannot be empty",
		},
		{
			name:    "invalid difficulty",
			mutate:  func(c *Catalog) { c.Challenges[0].Difficulty = "extreme" },
			wantErr: true,
			errMsg:  "invalid difficulty",
		},
		{
			name:    "empty metric",
			mutate:  func(c *Catalog) { c.Challenges[0].Requirement.Metric = "" },
			wantErr: true,
			errMsg:  "metric cannot be empty",
		},
		{
			name:    "unknown metric",
			mutate:  func(c *Catalog) { c.Challenges[0].Requirement.Metric = "steps" },
			wantErr: true,
			errMsg:  "unknown metric",
		},
		{
			name:    "zero target",
			mutate:  func(c *Catalog) { c.Challenges[0].Requirement.TargetValue = 0 },
			wantErr: true,
			errMsg:  "targetValue must be positive",
		},
		{
			name:    "zero reward points",
			mutate:  func(c *Catalog) { c.Challenges[0].Reward.Points = 0 },
			wantErr: true,
			errMsg:  "reward points must be positive",
		},
		{
			name: "duplicate challenge ID",
			mutate: func(c *Catalog) {
				dup := validChallenge()
				dup.Requirement.Metric = domain.MetricDhikrCount
				c.Challenges = append(c.Challenges, dup)
			},
			wantErr: true,
			errMsg:  "duplicate challenge ID: weekly-quran-reader",
		},
		{
			name: "metric bound twice",
			mutate: func(c *Catalog) {
				other := validChallenge()
				other.ID = domain.ChallengeDhikrMaster
				c.Challenges = append(c.Challenges, other)
			},
			wantErr: true,
			errMsg:  "metric 'quran_pages' is bound to both",
		},
		{
			name:    "nil achievement entry",
			mutate:  func(c *Catalog) { c.Achievements = append(c.Achievements, nil) },
			wantErr: true,
			errMsg:  "achievement entry cannot be null",
		},
		{
			name:    "empty achievement ID",
			mutate:  func(c *Catalog) { c.Achievements[0].ID = "" },
			wantErr: true,
			errMsg:  "achievement ID cannot be empty",
		},
		{
			name:    "achievement without predicate",
			mutate:  func(c *Catalog) { c.Achievements[0].ID = "verses-5000" },
			wantErr: true,
			errMsg:  "no unlock predicate",
		},
		{
			name:    "empty achievement title",
			mutate:  func(c *Catalog) { c.Achievements[0].Title = "" },
			wantErr: true,
			errMsg:  "achievement title cannot be empty",
		},
		{
			name:    "invalid rarity",
			mutate:  func(c *Catalog) { c.Achievements[0].Rarity = "mythic" },
			wantErr: true,
			errMsg:  "invalid rarity",
		},
		{
			name:    "negative points",
			mutate:  func(c *Catalog) { c.Achievements[0].Points = -1 },
			wantErr: true,
			errMsg:  "points cannot be negative",
		},
		{
			name:    "duplicate achievement ID",
			mutate:  func(c *Catalog) { c.Achievements = append(c.Achievements, validAchievement()) },
			wantErr: true,
			errMsg:  "duplicate achievement ID: verses-50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := &Catalog{
				Challenges:   []*domain.Challenge{validChallenge()},
				Achievements: []*domain.Achievement{validAchievement()},
			}
			tt.mutate(catalog)

			err := NewValidator().Validate(catalog)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want message containing %q", err, tt.errMsg)
			}
		})
	}
}
