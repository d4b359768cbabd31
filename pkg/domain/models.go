package domain

import "time"

// Default goals for a fresh DailyProgress.
const (
	DefaultPrayersTotal = 5
	DefaultDhikrGoal    = 300
	DefaultPagesGoal    = 5
	DefaultVersesGoal   = 3

	// DefaultAchievementPoints is granted when an achievement has no explicit points value.
	DefaultAchievementPoints = 100
)

// PrayerProgress tracks today's obligatory prayers.
type PrayerProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Streak    int `json:"streak"` // Consecutive days fully completed, maintained externally
}

// DhikrProgress tracks today's remembrance repetitions.
type DhikrProgress struct {
	Count  int `json:"count"`
	Goal   int `json:"goal"`
	Streak int `json:"streak"`
}

// QuranProgress tracks today's reading and memorization.
type QuranProgress struct {
	Pages           int `json:"pages"`
	PagesGoal       int `json:"pagesGoal"`
	VersesMemorized int `json:"versesMemorized"`
	VersesGoal      int `json:"versesGoal"`
	Streak          int `json:"streak"`
}

// DailyProgress is the single "current" record for one calendar day.
// Date is the day-boundary key ("YYYY-MM-DD" in local time).
type DailyProgress struct {
	Date    string         `json:"date"`
	Prayers PrayerProgress `json:"prayers"`
	Dhikr   DhikrProgress  `json:"dhikr"`
	Quran   QuranProgress  `json:"quran"`
}

// NewDailyProgress returns a zeroed record for the given date with default goals.
func NewDailyProgress(date string) DailyProgress {
	return DailyProgress{
		Date:    date,
		Prayers: PrayerProgress{Total: DefaultPrayersTotal},
		Dhikr:   DhikrProgress{Goal: DefaultDhikrGoal},
		Quran:   QuranProgress{PagesGoal: DefaultPagesGoal, VersesGoal: DefaultVersesGoal},
	}
}

// AllPrayersCompleted reports whether every prayer of the day is done.
func (p DailyProgress) AllPrayersCompleted() bool {
	return p.Prayers.Total > 0 && p.Prayers.Completed >= p.Prayers.Total
}

// Difficulty grades a weekly challenge.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid returns true if the difficulty is a known value.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// Metric names the counter a weekly challenge measures.
type Metric string

const (
	// MetricPrayerDays counts days this week with every prayer completed.
	MetricPrayerDays Metric = "prayer_days"
	// MetricQuranPages counts Quran pages read this week.
	MetricQuranPages Metric = "quran_pages"
	// MetricDhikrCount counts dhikr repetitions this week.
	MetricDhikrCount Metric = "dhikr_count"
	// MetricLectureViews counts lectures watched this week.
	MetricLectureViews Metric = "lecture_views"
	// MetricWorkoutDays counts distinct days with a workout this week.
	MetricWorkoutDays Metric = "workout_days"
)

// IsValid returns true if the metric is a known counter.
func (m Metric) IsValid() bool {
	switch m {
	case MetricPrayerDays, MetricQuranPages, MetricDhikrCount, MetricLectureViews, MetricWorkoutDays:
		return true
	default:
		return false
	}
}

// ChallengeID identifies a weekly challenge in the catalog.
type ChallengeID string

// Requirement defines the weekly target of a challenge.
type Requirement struct {
	Metric      Metric `json:"metric"`
	TargetValue int    `json:"targetValue"`
}

// Reward defines what completing a challenge grants.
type Reward struct {
	Points int `json:"points"`
}

// Challenge is an immutable weekly challenge catalog entry.
type Challenge struct {
	ID          ChallengeID `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Difficulty  Difficulty  `json:"difficulty"`
	Icon        string      `json:"icon"`
	Requirement Requirement `json:"requirement"`
	Reward      Reward      `json:"reward"`
}

// ChallengeProgress is the mutable per-week state of one challenge.
// Rows are re-initialized at every week boundary.
type ChallengeProgress struct {
	ChallengeID ChallengeID `json:"challengeId" db:"challenge_id"`
	WeekStart   string      `json:"weekStart" db:"week_start"`
	Progress    int         `json:"progress" db:"progress"`
	Completed   bool        `json:"completed" db:"completed"`
}

// ChallengeStatus joins a catalog entry with its current weekly progress.
type ChallengeStatus struct {
	Challenge
	Progress  int    `json:"progress"`
	Completed bool   `json:"completed"`
	WeekStart string `json:"weekStart"`
}

// Rarity grades an achievement badge.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid returns true if the rarity is a known value.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	default:
		return false
	}
}

// Achievement is an immutable permanent badge catalog entry.
type Achievement struct {
	ID          AchievementID `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Rarity      Rarity        `json:"rarity"`
	Points      int           `json:"points"`
}

// RewardPoints returns the points granted on unlock, falling back to the default.
func (a *Achievement) RewardPoints() int {
	if a.Points <= 0 {
		return DefaultAchievementPoints
	}
	return a.Points
}

// AchievementStatus joins a catalog entry with its permanent unlock state.
type AchievementStatus struct {
	Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

// AchievementUnlock is an insert-only remote record of one unlock event.
type AchievementUnlock struct {
	ID            string        `json:"id" db:"id"`
	UserID        string        `json:"userId" db:"user_id"`
	AchievementID AchievementID `json:"achievementId" db:"achievement_id"`
	UnlockedAt    time.Time     `json:"unlockedAt" db:"unlocked_at"`
}

// LifetimeStats are cumulative totals across all days and weeks. Never reset.
type LifetimeStats struct {
	TotalDhikr        int `json:"totalDhikr"`
	TotalQuranPages   int `json:"totalQuranPages"`
	TotalQuranVerses  int `json:"totalQuranVerses"`
	LecturesWatched   int `json:"lecturesWatched"`
	WorkoutsCompleted int `json:"workoutsCompleted"`
	WellnessStreak    int `json:"wellnessStreak"`
}

// WeeklyTotals aggregates daily activity within one week boundary.
type WeeklyTotals struct {
	WeekStart  string   `json:"weekStart"`
	PrayerDays []string `json:"prayerDays"` // Day keys with all prayers completed
	QuranPages int      `json:"quranPages"`
	DhikrCount int      `json:"dhikrCount"`
	// CarriedPrayerDays counts full prayer days recorded elsewhere this week
	// that have no local day key.
	CarriedPrayerDays int `json:"carriedPrayerDays,omitempty"`
}

// PrayerDayCount returns the number of full prayer days this week.
func (w *WeeklyTotals) PrayerDayCount() int {
	return len(w.PrayerDays) + w.CarriedPrayerDays
}

// HasPrayerDay reports whether day is already counted as a full prayer day.
func (w *WeeklyTotals) HasPrayerDay(day string) bool {
	for _, d := range w.PrayerDays {
		if d == day {
			return true
		}
	}
	return false
}
