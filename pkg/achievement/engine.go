// Package achievement unlocks permanent badges from daily progress and lifetime totals.
package achievement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deenly/progress-core/pkg/cache"
	"github.com/deenly/progress-core/pkg/common"
	"github.com/deenly/progress-core/pkg/domain"
	progresserrors "github.com/deenly/progress-core/pkg/errors"
	"github.com/deenly/progress-core/pkg/kv"
	"github.com/deenly/progress-core/pkg/ledger"
	"github.com/deenly/progress-core/pkg/metrics"
	"github.com/deenly/progress-core/pkg/repository"
)

// UnlockQueue receives insert-only remote unlock records.
type UnlockQueue interface {
	EnqueueAchievementUnlock(ctx context.Context, unlock domain.AchievementUnlock) error
}

// PointsGranter credits points for an unlock.
type PointsGranter interface {
	Add(ctx context.Context, points int, source string) (int, error)
}

// Deps wires an Engine. Repo and Queue are only used when UserID is set.
type Deps struct {
	UserID  string
	Catalog cache.CatalogCache
	Store   kv.Store
	Repo    repository.ProgressRepository
	Queue   UnlockQueue
	Points  PointsGranter
	Clock   common.Clock
	Logger  *slog.Logger
}

// Unlock describes one newly unlocked achievement.
type Unlock struct {
	Achievement domain.Achievement
	UnlockID    string
	UnlockedAt  time.Time
	Points      int
}

// unlockRecord is the locally persisted unlock state of one achievement.
// UnlockID is reused when re-sending, so the remote insert stays idempotent.
type unlockRecord struct {
	UnlockID   string    `json:"unlockId,omitempty"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

// Engine owns the unlock state of every achievement. Safe for concurrent use.
type Engine struct {
	deps Deps

	mu       sync.Mutex
	unlocked map[domain.AchievementID]unlockRecord
}

// NewEngine creates an Engine with everything locked. Call LoadAchievements before use.
func NewEngine(deps Deps) *Engine {
	return &Engine{
		deps:     deps,
		unlocked: make(map[domain.AchievementID]unlockRecord),
	}
}

// LoadAchievements restores unlock state.
//
// Unlocks are monotonic, so the result is the union of the local cache and
// the remote rows. Local unlocks the remote does not know yet are re-sent.
func (e *Engine) LoadAchievements(ctx context.Context) []domain.AchievementStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	local := make(map[domain.AchievementID]unlockRecord)
	if _, err := kv.GetJSON(ctx, e.deps.Store, kv.KeyAchievements, &local); err != nil {
		e.deps.Logger.Error("Failed to read local achievements", "error", err)
	}

	e.unlocked = make(map[domain.AchievementID]unlockRecord, len(local))
	for id, rec := range local {
		if e.deps.Catalog.GetAchievement(id) != nil {
			e.unlocked[id] = rec
		}
	}

	if e.remoteEnabled() {
		ids, err := e.deps.Repo.GetUnlockedAchievementIDs(ctx, e.deps.UserID)
		if err != nil {
			e.deps.Logger.Warn("Failed to read remote achievements, using local",
				"user_id", e.deps.UserID,
				"error", err,
			)
		} else {
			e.reconcile(ctx, ids)
		}
	}

	e.persist(ctx)
	return e.statuses()
}

// CheckAchievements evaluates every locked achievement and unlocks those whose
// condition now holds. Each unlock grants its points once; an achievement
// whose grant fails stays locked.
func (e *Engine) CheckAchievements(ctx context.Context, daily domain.DailyProgress, lifetime domain.LifetimeStats) []Unlock {
	e.mu.Lock()
	defer e.mu.Unlock()

	var unlocks []Unlock
	for _, a := range e.deps.Catalog.GetAllAchievements() {
		if _, ok := e.unlocked[a.ID]; ok {
			continue
		}
		if !Satisfied(a.ID, daily, lifetime) {
			continue
		}

		// Stays locked when the grant fails so the next check retries it.
		if _, err := e.deps.Points.Add(context.WithoutCancel(ctx), a.RewardPoints(), ledger.SourceAchievement); err != nil {
			e.deps.Logger.Error("Failed to award achievement points", "achievement_id", a.ID, "error", err)
			continue
		}

		now := e.deps.Clock.Now()
		rec := unlockRecord{UnlockID: uuid.NewString(), UnlockedAt: now}
		e.unlocked[a.ID] = rec

		metrics.AchievementsUnlocked.Inc()
		e.deps.Logger.Info("Achievement unlocked",
			"achievement_id", a.ID,
			"rarity", a.Rarity,
			"points", a.RewardPoints(),
		)
		e.enqueue(ctx, a.ID, rec)
		unlocks = append(unlocks, Unlock{
			Achievement: *a,
			UnlockID:    rec.UnlockID,
			UnlockedAt:  now,
			Points:      a.RewardPoints(),
		})
	}

	if len(unlocks) > 0 {
		e.persist(ctx)
	}
	return unlocks
}

// Achievements returns the catalog joined with unlock state, in catalog order.
func (e *Engine) Achievements() []domain.AchievementStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statuses()
}

// Satisfied reports whether the unlock condition of id holds.
// Unknown IDs are never satisfied; the catalog validator rejects them at load.
func Satisfied(id domain.AchievementID, daily domain.DailyProgress, lifetime domain.LifetimeStats) bool {
	switch id {
	case domain.AchievementPrayerStreak7:
		return daily.Prayers.Streak >= 7
	case domain.AchievementPrayerStreak30:
		return daily.Prayers.Streak >= 30
	case domain.AchievementDhikrStreak7:
		return daily.Dhikr.Streak >= 7
	case domain.AchievementQuranStreak7:
		return daily.Quran.Streak >= 7
	case domain.AchievementDhikr1000:
		return lifetime.TotalDhikr >= 1000
	case domain.AchievementDhikr10000:
		return lifetime.TotalDhikr >= 10000
	case domain.AchievementQuranPages100:
		return lifetime.TotalQuranPages >= 100
	case domain.AchievementQuranPages604:
		return lifetime.TotalQuranPages >= 604
	case domain.AchievementVerses50:
		return lifetime.TotalQuranVerses >= 50
	case domain.AchievementLectures10:
		return lifetime.LecturesWatched >= 10
	case domain.AchievementWorkouts20:
		return lifetime.WorkoutsCompleted >= 20
	case domain.AchievementWellnessStreak7:
		return lifetime.WellnessStreak >= 7
	default:
		return false
	}
}

// reconcile merges remote unlock IDs into e.unlocked. Must hold e.mu.
func (e *Engine) reconcile(ctx context.Context, remoteIDs []domain.AchievementID) {
	remote := make(map[domain.AchievementID]bool, len(remoteIDs))
	for _, id := range remoteIDs {
		remote[id] = true
		if _, ok := e.unlocked[id]; ok || e.deps.Catalog.GetAchievement(id) == nil {
			continue
		}
		// Unlocked on another device; the unlock time is not mirrored locally.
		e.unlocked[id] = unlockRecord{}
	}

	for id, rec := range e.unlocked {
		if remote[id] || rec.UnlockID == "" {
			continue
		}
		e.deps.Logger.Info("Re-sending unlock missing remotely", "achievement_id", id)
		e.enqueue(ctx, id, rec)
	}
}

// Achievement returns one achievement with its unlock state.
func (e *Engine) Achievement(id domain.AchievementID) (domain.AchievementStatus, error) {
	a := e.deps.Catalog.GetAchievement(id)
	if a == nil {
		return domain.AchievementStatus{}, progresserrors.ErrAchievementNotFound(string(id))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status(a), nil
}

func (e *Engine) statuses() []domain.AchievementStatus {
	all := e.deps.Catalog.GetAllAchievements()
	out := make([]domain.AchievementStatus, 0, len(all))
	for _, a := range all {
		out = append(out, e.status(a))
	}
	return out
}

func (e *Engine) status(a *domain.Achievement) domain.AchievementStatus {
	s := domain.AchievementStatus{Achievement: *a}
	if rec, ok := e.unlocked[a.ID]; ok {
		s.Unlocked = true
		if !rec.UnlockedAt.IsZero() {
			at := rec.UnlockedAt
			s.UnlockedAt = &at
		}
	}
	return s
}

func (e *Engine) persist(ctx context.Context) {
	if err := kv.SetJSON(ctx, e.deps.Store, kv.KeyAchievements, e.unlocked); err != nil {
		e.deps.Logger.Error("Failed to persist achievements", "unlocked", len(e.unlocked), "error", err)
	}
}

func (e *Engine) enqueue(ctx context.Context, id domain.AchievementID, rec unlockRecord) {
	if !e.remoteEnabled() {
		return
	}
	err := e.deps.Queue.EnqueueAchievementUnlock(ctx, domain.AchievementUnlock{
		ID:            rec.UnlockID,
		UserID:        e.deps.UserID,
		AchievementID: id,
		UnlockedAt:    rec.UnlockedAt,
	})
	if err != nil {
		e.deps.Logger.Warn("Failed to enqueue achievement unlock", "achievement_id", id, "error", err)
	}
}

func (e *Engine) remoteEnabled() bool {
	return e.deps.UserID != "" && e.deps.Repo != nil && e.deps.Queue != nil
}
