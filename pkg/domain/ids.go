package domain

// Weekly challenge identifiers. Each is bound to exactly one Metric.
const (
	ChallengePrayerStreak   ChallengeID = "weekly-prayer-streak"
	ChallengeQuranReader    ChallengeID = "weekly-quran-reader"
	ChallengeDhikrMaster    ChallengeID = "weekly-dhikr-master"
	ChallengeLectureLearner ChallengeID = "weekly-lecture-learner"
	ChallengeFitness        ChallengeID = "weekly-fitness"
)

// IsValid returns true if the challenge ID is part of the closed catalog set.
func (id ChallengeID) IsValid() bool {
	switch id {
	case ChallengePrayerStreak, ChallengeQuranReader, ChallengeDhikrMaster,
		ChallengeLectureLearner, ChallengeFitness:
		return true
	default:
		return false
	}
}

// AchievementID identifies a permanent badge in the catalog.
type AchievementID string

const (
	AchievementPrayerStreak7   AchievementID = "prayer-streak-7"
	AchievementPrayerStreak30  AchievementID = "prayer-streak-30"
	AchievementDhikrStreak7    AchievementID = "dhikr-streak-7"
	AchievementQuranStreak7    AchievementID = "quran-streak-7"
	AchievementDhikr1000       AchievementID = "dhikr-1000"
	AchievementDhikr10000      AchievementID = "dhikr-10000"
	AchievementQuranPages100   AchievementID = "quran-pages-100"
	AchievementQuranPages604   AchievementID = "quran-pages-604"
	AchievementVerses50        AchievementID = "verses-50"
	AchievementLectures10      AchievementID = "lectures-10"
	AchievementWorkouts20      AchievementID = "workouts-20"
	AchievementWellnessStreak7 AchievementID = "wellness-streak-7"
)

// AllAchievementIDs lists every known achievement in catalog order.
var AllAchievementIDs = []AchievementID{
	AchievementPrayerStreak7,
	AchievementPrayerStreak30,
	AchievementDhikrStreak7,
	AchievementQuranStreak7,
	AchievementDhikr1000,
	AchievementDhikr10000,
	AchievementQuranPages100,
	AchievementQuranPages604,
	AchievementVerses50,
	AchievementLectures10,
	AchievementWorkouts20,
	AchievementWellnessStreak7,
}

// IsValid returns true if the achievement ID is part of the closed catalog set.
func (id AchievementID) IsValid() bool {
	for _, known := range AllAchievementIDs {
		if id == known {
			return true
		}
	}
	return false
}
