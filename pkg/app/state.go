// Package app aggregates the progress store, the engines, the points ledger
// and the outbox behind one handle, and runs each user action as a single
// ordered call chain: mutate progress, update totals, feed challenges, check
// achievements.
package app

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/deenly/progress-core/pkg/achievement"
	"github.com/deenly/progress-core/pkg/cache"
	"github.com/deenly/progress-core/pkg/challenge"
	"github.com/deenly/progress-core/pkg/common"
	"github.com/deenly/progress-core/pkg/domain"
	progresserrors "github.com/deenly/progress-core/pkg/errors"
	"github.com/deenly/progress-core/pkg/kv"
	"github.com/deenly/progress-core/pkg/ledger"
	"github.com/deenly/progress-core/pkg/outbox"
	"github.com/deenly/progress-core/pkg/progress"
	"github.com/deenly/progress-core/pkg/repository"
)

// Deps wires a State. Repo may be nil; without a UserID and Repo the state is local-only.
type Deps struct {
	UserID  string
	Catalog cache.CatalogCache
	Store   kv.Store
	Repo    repository.ProgressRepository
	Clock   common.Clock
	Logger  *slog.Logger
	Outbox  outbox.Config
}

// Outcome reports what one call chain changed.
type Outcome struct {
	Daily         domain.DailyProgress       `json:"daily"`
	Completed     []domain.ChallengeStatus   `json:"completedChallenges,omitempty"`
	Unlocked      []domain.AchievementStatus `json:"unlockedAchievements,omitempty"`
	PointsAwarded int                        `json:"pointsAwarded"`
	TasbihSession int                        `json:"tasbihSession"`
}

// Snapshot is the full user-visible state.
type Snapshot struct {
	Daily         domain.DailyProgress       `json:"daily"`
	Challenges    []domain.ChallengeStatus   `json:"challenges"`
	Achievements  []domain.AchievementStatus `json:"achievements"`
	TotalPoints   int                        `json:"totalPoints"`
	Lifetime      domain.LifetimeStats       `json:"lifetime"`
	Weekly        domain.WeeklyTotals        `json:"weekly"`
	TasbihSession int                        `json:"tasbihSession"`
}

// State is the application aggregate.
type State struct {
	deps Deps

	outbox       *outbox.Outbox // nil when local-only
	ledger       *ledger.Ledger
	progress     *progress.Store
	challenges   *challenge.Engine
	achievements *achievement.Engine

	mu            sync.Mutex // serializes call chains
	lifetime      domain.LifetimeStats
	weekly        domain.WeeklyTotals
	tasbihSession int
}

// New builds every component from deps. Call Load before use and Close when done.
func New(deps Deps) *State {
	s := &State{deps: deps}

	remote := deps.UserID != "" && deps.Repo != nil
	if !remote {
		deps.Repo = nil
	}

	var (
		pointsQueue      ledger.PointsQueue
		dailyQueue       progress.DailyQueue
		challengeQueue   challenge.ChallengeQueue
		achievementQueue achievement.UnlockQueue
	)
	if remote {
		s.outbox = outbox.New(deps.Store, deps.Repo, deps.Clock, deps.Logger.With("component", "outbox"), deps.Outbox)
		pointsQueue, dailyQueue, challengeQueue, achievementQueue = s.outbox, s.outbox, s.outbox, s.outbox
	}

	s.ledger = ledger.New(ledger.Deps{
		UserID: deps.UserID,
		Store:  deps.Store,
		Repo:   deps.Repo,
		Queue:  pointsQueue,
		Logger: deps.Logger.With("component", "ledger"),
	})
	s.progress = progress.NewStore(progress.Deps{
		UserID: deps.UserID,
		Store:  deps.Store,
		Repo:   deps.Repo,
		Queue:  dailyQueue,
		Clock:  deps.Clock,
		Logger: deps.Logger.With("component", "progress"),
	})
	s.challenges = challenge.NewEngine(challenge.Deps{
		UserID:  deps.UserID,
		Catalog: deps.Catalog,
		Store:   deps.Store,
		Repo:    deps.Repo,
		Queue:   challengeQueue,
		Points:  s.ledger,
		Clock:   deps.Clock,
		Logger:  deps.Logger.With("component", "challenge"),
	})
	s.achievements = achievement.NewEngine(achievement.Deps{
		UserID:  deps.UserID,
		Catalog: deps.Catalog,
		Store:   deps.Store,
		Repo:    deps.Repo,
		Queue:   achievementQueue,
		Points:  s.ledger,
		Clock:   deps.Clock,
		Logger:  deps.Logger.With("component", "achievement"),
	})
	return s
}

// Load restores every component in dependency order, then re-evaluates
// challenges and achievements against the restored totals.
func (s *State) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outbox != nil {
		if err := s.outbox.Load(ctx); err != nil {
			return err
		}
	}
	if _, err := s.ledger.Load(ctx); err != nil {
		return err
	}
	s.progress.Load(ctx)
	s.challenges.LoadWeeklyChallenges(ctx)
	s.achievements.LoadAchievements(ctx)

	if _, err := kv.GetJSON(ctx, s.deps.Store, kv.KeyLifetimeStats, &s.lifetime); err != nil {
		s.deps.Logger.Error("Failed to read lifetime stats", "error", err)
	}
	if _, err := kv.GetJSON(ctx, s.deps.Store, kv.KeyWeeklyTotals, &s.weekly); err != nil {
		s.deps.Logger.Error("Failed to read weekly totals", "error", err)
	}
	s.ensureWeek(ctx)
	s.seedWeekly(ctx)

	_, err := s.evaluate(ctx)
	return err
}

// Rollover re-applies day and week boundaries without a user action.
func (s *State) Rollover(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress.Load(ctx)
	s.challenges.LoadWeeklyChallenges(ctx)
	s.ensureWeek(ctx)
	s.seedWeekly(ctx)
}

// Flush delivers pending remote writes. No-op when local-only.
func (s *State) Flush(ctx context.Context) (int, error) {
	if s.outbox == nil {
		return 0, nil
	}
	return s.outbox.Flush(ctx)
}

// Outbox returns the remote write queue, or nil when local-only.
func (s *State) Outbox() *outbox.Outbox {
	return s.outbox
}

// Close stops the points ledger.
func (s *State) Close() {
	s.ledger.Close()
}

// CompletePrayers sets how many of today's prayers are done.
func (s *State) CompletePrayers(ctx context.Context, completed int) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.progress.Today(ctx)
	if completed > current.Prayers.Total {
		return Outcome{}, progresserrors.ErrValidationFailed("completed", "exceeds the day's prayer total")
	}
	daily, err := s.progress.UpdatePrayers(ctx, completed, current.Prayers.Total)
	if err != nil {
		return Outcome{}, err
	}

	s.ensureWeek(ctx)
	today := daily.Date
	switch {
	case daily.AllPrayersCompleted() && !s.weekly.HasPrayerDay(today):
		s.weekly.PrayerDays = append(s.weekly.PrayerDays, today)
	case !daily.AllPrayersCompleted() && s.weekly.HasPrayerDay(today):
		s.weekly.PrayerDays = slices.DeleteFunc(s.weekly.PrayerDays, func(d string) bool { return d == today })
	}

	return s.evaluate(ctx)
}

// IncrementTasbih counts n dhikr repetitions toward today, the week and the lifetime total.
func (s *State) IncrementTasbih(ctx context.Context, n int) (Outcome, error) {
	if n <= 0 {
		return Outcome{}, progresserrors.ErrValidationFailed("count", "must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.progress.Today(ctx)
	if _, err := s.progress.UpdateDhikr(ctx, current.Dhikr.Count+n, current.Dhikr.Goal); err != nil {
		return Outcome{}, err
	}

	s.tasbihSession += n
	s.lifetime.TotalDhikr += n
	s.ensureWeek(ctx)
	s.weekly.DhikrCount += n

	return s.evaluate(ctx)
}

// ResetTasbihSession zeroes the session counter. The persisted daily count is kept.
func (s *State) ResetTasbihSession() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasbihSession = 0
	return s.tasbihSession
}

// RecordQuran adds pages read and verses memorized.
func (s *State) RecordQuran(ctx context.Context, pages, verses int) (Outcome, error) {
	switch {
	case pages < 0:
		return Outcome{}, progresserrors.ErrValidationFailed("pages", "must be non-negative")
	case verses < 0:
		return Outcome{}, progresserrors.ErrValidationFailed("verses", "must be non-negative")
	case pages == 0 && verses == 0:
		return Outcome{}, progresserrors.ErrValidationFailed("pages", "nothing to record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.progress.Today(ctx).Quran
	if _, err := s.progress.UpdateQuran(ctx, q.Pages+pages, q.PagesGoal, q.VersesMemorized+verses, q.VersesGoal); err != nil {
		return Outcome{}, err
	}

	s.lifetime.TotalQuranPages += pages
	s.lifetime.TotalQuranVerses += verses
	s.ensureWeek(ctx)
	s.weekly.QuranPages += pages

	return s.evaluate(ctx)
}

// WatchLecture counts one watched lecture.
func (s *State) WatchLecture(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, u := s.challenges.IncrementLectureCount(ctx)
	s.lifetime.LecturesWatched++

	out, err := s.evaluate(ctx)
	mergeUpdate(&out, u)
	return out, err
}

// RecordWorkout counts one workout. The weekly challenge counts each day once.
func (s *State) RecordWorkout(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.completedSet()
	s.challenges.IncrementWorkoutDay(ctx)
	s.lifetime.WorkoutsCompleted++

	out, err := s.evaluate(ctx)
	s.addNewlyCompleted(&out, before)
	return out, err
}

// SetWellnessStreak records the journaling streak maintained outside the core.
func (s *State) SetWellnessStreak(ctx context.Context, streak int) (Outcome, error) {
	if streak < 0 {
		return Outcome{}, progresserrors.ErrValidationFailed("streak", "must be non-negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lifetime.WellnessStreak = streak
	return s.evaluate(ctx)
}

// SetStreaks records the prayer, dhikr and Quran streaks maintained outside the core.
func (s *State) SetStreaks(ctx context.Context, prayer, dhikr, quran int) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.progress.UpdateStreaks(ctx, prayer, dhikr, quran); err != nil {
		return Outcome{}, err
	}
	return s.evaluate(ctx)
}

// UpdateChallenge sets a challenge's progress directly.
func (s *State) UpdateChallenge(ctx context.Context, id domain.ChallengeID, value int) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.challenges.UpdateChallengeProgress(ctx, id, value)
	if err != nil {
		return Outcome{}, err
	}
	out, err := s.evaluate(ctx)
	mergeUpdate(&out, u)
	return out, err
}

// Snapshot returns the full current state.
func (s *State) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, err := s.ledger.Total(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Daily:         s.progress.Current(),
		Challenges:    s.challenges.Challenges(),
		Achievements:  s.achievements.Achievements(),
		TotalPoints:   total,
		Lifetime:      s.lifetime,
		Weekly:        s.weekly,
		TasbihSession: s.tasbihSession,
	}, nil
}

// Challenges returns this week's challenges.
func (s *State) Challenges() []domain.ChallengeStatus {
	return s.challenges.Challenges()
}

// Achievements returns every achievement with its unlock state.
func (s *State) Achievements() []domain.AchievementStatus {
	return s.achievements.Achievements()
}

// Achievement returns one achievement with its unlock state.
func (s *State) Achievement(id domain.AchievementID) (domain.AchievementStatus, error) {
	return s.achievements.Achievement(id)
}

// TotalPoints returns the ledger total.
func (s *State) TotalPoints(ctx context.Context) (int, error) {
	return s.ledger.Total(ctx)
}

// evaluate persists the totals, feeds the weekly challenges and checks
// achievements. Must hold s.mu.
func (s *State) evaluate(ctx context.Context) (Outcome, error) {
	s.persistTotals(ctx)

	updates, err := s.challenges.SyncWeeklyChallengesWithStats(ctx,
		s.weekly.PrayerDayCount(), s.weekly.QuranPages, s.weekly.DhikrCount)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{TasbihSession: s.tasbihSession}
	for _, u := range updates {
		mergeUpdate(&out, u)
	}

	out.Daily = s.progress.Current()
	for _, u := range s.achievements.CheckAchievements(ctx, out.Daily, s.lifetime) {
		status := domain.AchievementStatus{Achievement: u.Achievement, Unlocked: true}
		at := u.UnlockedAt
		status.UnlockedAt = &at
		out.Unlocked = append(out.Unlocked, status)
		out.PointsAwarded += u.Points
	}
	return out, nil
}

func mergeUpdate(out *Outcome, u challenge.Update) {
	if !u.JustCompleted {
		return
	}
	out.Completed = append(out.Completed, u.Status)
	out.PointsAwarded += u.PointsAwarded
}

// completedSet and addNewlyCompleted report completions made by engine calls
// that do not return an Update. The engine commits a completion only after its
// reward is granted, so a newly completed challenge has been paid.
func (s *State) completedSet() map[domain.ChallengeID]bool {
	done := make(map[domain.ChallengeID]bool)
	for _, c := range s.challenges.Challenges() {
		if c.Completed {
			done[c.ID] = true
		}
	}
	return done
}

func (s *State) addNewlyCompleted(out *Outcome, before map[domain.ChallengeID]bool) {
	for _, c := range s.challenges.Challenges() {
		if !c.Completed || before[c.ID] {
			continue
		}
		if slices.ContainsFunc(out.Completed, func(done domain.ChallengeStatus) bool { return done.ID == c.ID }) {
			continue
		}
		out.Completed = append(out.Completed, c)
		out.PointsAwarded += c.Reward.Points
	}
}

// seedWeekly raises the weekly totals to the progress of this week's
// stat-driven challenges, which may have been restored from another device.
// The stats sync sets progress from the totals, so they must never trail it.
// Must hold s.mu.
func (s *State) seedWeekly(ctx context.Context) {
	if s.challenges.WeekStart() != s.weekly.WeekStart {
		return
	}

	changed := false
	for _, c := range s.challenges.Challenges() {
		switch c.Requirement.Metric {
		case domain.MetricPrayerDays:
			if missing := c.Progress - s.weekly.PrayerDayCount(); missing > 0 {
				s.weekly.CarriedPrayerDays += missing
				changed = true
			}
		case domain.MetricQuranPages:
			if c.Progress > s.weekly.QuranPages {
				s.weekly.QuranPages = c.Progress
				changed = true
			}
		case domain.MetricDhikrCount:
			if c.Progress > s.weekly.DhikrCount {
				s.weekly.DhikrCount = c.Progress
				changed = true
			}
		}
	}
	if changed {
		s.deps.Logger.Info("Weekly totals raised to restored challenge progress",
			"week_start", s.weekly.WeekStart,
			"prayer_days", s.weekly.PrayerDayCount(),
			"quran_pages", s.weekly.QuranPages,
			"dhikr_count", s.weekly.DhikrCount,
		)
		s.persistTotals(ctx)
	}
}

// ensureWeek resets the weekly totals at a week boundary. Must hold s.mu.
func (s *State) ensureWeek(ctx context.Context) {
	week := common.WeekKey(s.deps.Clock.Now())
	if s.weekly.WeekStart == week {
		return
	}
	s.weekly = domain.WeeklyTotals{WeekStart: week}
	s.persistTotals(ctx)
}

func (s *State) persistTotals(ctx context.Context) {
	if err := kv.SetJSON(ctx, s.deps.Store, kv.KeyLifetimeStats, s.lifetime); err != nil {
		s.deps.Logger.Error("Failed to persist lifetime stats", "error", err)
	}
	if err := kv.SetJSON(ctx, s.deps.Store, kv.KeyWeeklyTotals, s.weekly); err != nil {
		s.deps.Logger.Error("Failed to persist weekly totals", "error", err)
	}
}
