package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deenly/progress-core/pkg/domain"
	progresserrors "github.com/deenly/progress-core/pkg/errors"
)

func TestCatalogLoader_LoadCatalog(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("successful load", func(t *testing.T) {
		tmpFile := createTempCatalogFile(t, `{
			"challenges": [
				{
					"id": "weekly-prayer-streak",
					"title": "Steadfast in Prayer",
					"difficulty": "medium",
					"requirement": {"metric": "prayer_days", "targetValue": 7},
					"reward": {"points": 150}
				}
			],
			"achievements": [
				{"id": "dhikr-1000", "title": "Thousand Praises", "rarity": "common"},
				{"id": "dhikr-10000", "title": "Ten Thousand Praises", "rarity": "epic", "points": 400}
			]
		}`)

		loader := NewCatalogLoader(tmpFile, logger)
		catalog, err := loader.LoadCatalog()

		if err != nil {
			t.Fatalf("LoadCatalog() unexpected error = %v", err)
		}
		if len(catalog.Challenges) != 1 {
			t.Errorf("expected 1 challenge, got %d", len(catalog.Challenges))
		}
		if len(catalog.Achievements) != 2 {
			t.Fatalf("expected 2 achievements, got %d", len(catalog.Achievements))
		}

		// Points default to 100 when omitted
		if catalog.Achievements[0].Points != domain.DefaultAchievementPoints {
			t.Errorf("expected default points %d, got %d", domain.DefaultAchievementPoints, catalog.Achievements[0].Points)
		}
		if catalog.Achievements[1].Points != 400 {
			t.Errorf("explicit points should be kept, got %d", catalog.Achievements[1].Points)
		}
	})

	t.Run("embedded default catalog", func(t *testing.T) {
		loader := NewCatalogLoader("", logger)
		catalog, err := loader.LoadCatalog()

		if err != nil {
			t.Fatalf("LoadCatalog() unexpected error = %v", err)
		}
		if len(catalog.Challenges) != 5 {
			t.Errorf("expected 5 default challenges, got %d", len(catalog.Challenges))
		}
		if len(catalog.Achievements) != len(domain.AllAchievementIDs) {
			t.Errorf("expected %d default achievements, got %d", len(domain.AllAchievementIDs), len(catalog.Achievements))
		}

		var prayer *domain.Challenge
		for _, c := range catalog.Challenges {
			if c.ID == domain.ChallengePrayerStreak {
				prayer = c
			}
		}
		if prayer == nil {
			t.Fatal("weekly-prayer-streak missing from default catalog")
		}
		if prayer.Requirement.TargetValue != 7 || prayer.Reward.Points != 150 {
			t.Errorf("weekly-prayer-streak = target %d reward %d, want 7/150",
				prayer.Requirement.TargetValue, prayer.Reward.Points)
		}
	})

	t.Run("file not found", func(t *testing.T) {
		loader := NewCatalogLoader("/nonexistent/file.json", logger)
		_, err := loader.LoadCatalog()

		if err == nil {
			t.Fatal("LoadCatalog() expected error, got nil")
		}
		if !strings.Contains(err.Error(), "failed to read catalog file") {
			t.Errorf("expected 'failed to read catalog file' error, got %v", err)
		}
		if !progresserrors.HasCode(err, progresserrors.ErrCodeConfigNotFound) {
			t.Errorf("expected code %s, got %v", progresserrors.ErrCodeConfigNotFound, err)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpFile := createTempCatalogFile(t, `{invalid json}`)

		loader := NewCatalogLoader(tmpFile, logger)
		_, err := loader.LoadCatalog()

		if err == nil {
			t.Fatal("LoadCatalog() expected error, got nil")
		}
		if !strings.Contains(err.Error(), "failed to parse catalog JSON") {
			t.Errorf("expected 'failed to parse catalog JSON' error, got %v", err)
		}
		if !progresserrors.HasCode(err, progresserrors.ErrCodeConfigInvalid) {
			t.Errorf("expected code %s, got %v", progresserrors.ErrCodeConfigInvalid, err)
		}
	})

	t.Run("validation failure - empty challenges", func(t *testing.T) {
		tmpFile := createTempCatalogFile(t, `{"challenges": []}`)

		loader := NewCatalogLoader(tmpFile, logger)
		_, err := loader.LoadCatalog()

		if err == nil {
			t.Fatal("LoadCatalog() expected error, got nil")
		}
		if !strings.Contains(err.Error(), "catalog validation failed") {
			t.Errorf("expected 'catalog validation failed' error, got %v", err)
		}
		if !strings.Contains(err.Error(), "catalog must have at least one challenge") {
			t.Errorf("expected validation error message, got %v", err)
		}
		if !progresserrors.HasCode(err, progresserrors.ErrCodeConfigInvalid) {
			t.Errorf("expected code %s, got %v", progresserrors.ErrCodeConfigInvalid, err)
		}
	})

	t.Run("validation failure - achievement without predicate", func(t *testing.T) {
		tmpFile := createTempCatalogFile(t, `{
			"challenges": [
				{
					"id": "weekly-fitness",
					"title": "Strong Believer",
					"difficulty": "hard",
					"requirement": {"metric": "workout_days", "targetValue": 4},
					"reward": {"points": 100}
				}
			],
			"achievements": [
				{"id": "marathon-runner", "title": "Marathon", "rarity": "rare"}
			]
		}`)

		loader := NewCatalogLoader(tmpFile, logger)
		_, err := loader.LoadCatalog()

		if err == nil {
			t.Fatal("LoadCatalog() expected error, got nil")
		}
		if !strings.Contains(err.Error(), "no unlock predicate") {
			t.Errorf("expected 'no unlock predicate' error, got %v", err)
		}
	})
}

// Helper function to create a temporary catalog file for testing
func createTempCatalogFile(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "catalog.json")

	err := os.WriteFile(tmpFile, []byte(content), 0600)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	return tmpFile
}
