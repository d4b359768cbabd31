// Package progress holds the current day's prayer, dhikr and Quran record.
package progress

import (
	"context"
	"log/slog"
	"sync"

	"github.com/deenly/progress-core/pkg/common"
	"github.com/deenly/progress-core/pkg/domain"
	progresserrors "github.com/deenly/progress-core/pkg/errors"
	"github.com/deenly/progress-core/pkg/kv"
	"github.com/deenly/progress-core/pkg/repository"
)

// DailyQueue receives full-row remote upserts of a daily record.
type DailyQueue interface {
	EnqueueDailyProgress(ctx context.Context, userID string, p domain.DailyProgress) error
}

// Deps wires a Store. Repo and Queue are only used when UserID is set.
type Deps struct {
	UserID string
	Store  kv.Store
	Repo   repository.ProgressRepository
	Queue  DailyQueue
	Clock  common.Clock
	Logger *slog.Logger
}

// Store owns exactly one current DailyProgress. Safe for concurrent use.
type Store struct {
	deps Deps

	mu      sync.Mutex
	current domain.DailyProgress
}

// NewStore creates a Store holding defaults for today. Call Load to restore persisted state.
func NewStore(deps Deps) *Store {
	return &Store{
		deps:    deps,
		current: domain.NewDailyProgress(common.DayKey(deps.Clock.Now())),
	}
}

// Load restores today's record.
//
// A persisted record from an earlier day is archived remotely and replaced by
// defaults. With a remote identity, today's remote row overrides local state.
func (s *Store) Load(ctx context.Context) domain.DailyProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := common.DayKey(s.deps.Clock.Now())

	var local domain.DailyProgress
	found, err := kv.GetJSON(ctx, s.deps.Store, kv.KeyDailyProgress, &local)
	if err != nil {
		s.deps.Logger.Error("Failed to read local daily progress", "error", err)
		found = false
	}

	if found && local.Date != today {
		s.deps.Logger.Info("Day changed, resetting daily progress", "previous", local.Date, "today", today)
		s.archive(ctx, local)
		found = false
	}
	if !found {
		local = domain.NewDailyProgress(today)
	}

	if s.remoteEnabled() {
		remote, err := s.deps.Repo.GetDailyProgress(ctx, s.deps.UserID, today)
		switch {
		case err != nil:
			s.deps.Logger.Warn("Failed to read remote daily progress, using local",
				"user_id", s.deps.UserID,
				"date", today,
				"error", err,
			)
		case remote != nil:
			local = *remote
			local.Date = today
		}
	}

	s.current = local
	s.persist(ctx)
	return s.current
}

// Current returns a copy of the in-memory record.
func (s *Store) Current() domain.DailyProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Today rolls over to a new day if needed and returns the current record.
func (s *Store) Today(ctx context.Context) domain.DailyProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollover(ctx)
	return s.current
}

// UpdatePrayers sets the completed prayer count and total for today.
func (s *Store) UpdatePrayers(ctx context.Context, completed, total int) (domain.DailyProgress, error) {
	if completed < 0 {
		return domain.DailyProgress{}, progresserrors.ErrValidationFailed("prayers.completed", "must be non-negative")
	}
	if total <= 0 {
		return domain.DailyProgress{}, progresserrors.ErrValidationFailed("prayers.total", "must be positive")
	}

	return s.update(ctx, func(p *domain.DailyProgress) {
		p.Prayers.Completed = completed
		p.Prayers.Total = total
	}), nil
}

// UpdateDhikr sets today's dhikr count and goal.
func (s *Store) UpdateDhikr(ctx context.Context, count, goal int) (domain.DailyProgress, error) {
	if count < 0 {
		return domain.DailyProgress{}, progresserrors.ErrValidationFailed("dhikr.count", "must be non-negative")
	}
	if goal <= 0 {
		return domain.DailyProgress{}, progresserrors.ErrValidationFailed("dhikr.goal", "must be positive")
	}

	return s.update(ctx, func(p *domain.DailyProgress) {
		p.Dhikr.Count = count
		p.Dhikr.Goal = goal
	}), nil
}

// UpdateQuran sets today's reading and memorization counters and goals.
func (s *Store) UpdateQuran(ctx context.Context, pages, pagesGoal, versesMemorized, versesGoal int) (domain.DailyProgress, error) {
	switch {
	case pages < 0:
		return domain.DailyProgress{}, progresserrors.ErrValidationFailed("quran.pages", "must be non-negative")
	case pagesGoal <= 0:
		return domain.DailyProgress{}, progresserrors.ErrValidationFailed("quran.pagesGoal", "must be positive")
	case versesMemorized < 0:
		return domain.DailyProgress{}, progresserrors.ErrValidationFailed("quran.versesMemorized", "must be non-negative")
	case versesGoal <= 0:
		return domain.DailyProgress{}, progresserrors.ErrValidationFailed("quran.versesGoal", "must be positive")
	}

	return s.update(ctx, func(p *domain.DailyProgress) {
		p.Quran.Pages = pages
		p.Quran.PagesGoal = pagesGoal
		p.Quran.VersesMemorized = versesMemorized
		p.Quran.VersesGoal = versesGoal
	}), nil
}

// UpdateStreaks sets the three streak counters.
func (s *Store) UpdateStreaks(ctx context.Context, prayer, dhikr, quran int) (domain.DailyProgress, error) {
	if prayer < 0 || dhikr < 0 || quran < 0 {
		return domain.DailyProgress{}, progresserrors.ErrValidationFailed("streak", "must be non-negative")
	}

	return s.update(ctx, func(p *domain.DailyProgress) {
		p.Prayers.Streak = prayer
		p.Dhikr.Streak = dhikr
		p.Quran.Streak = quran
	}), nil
}

// update rolls over to a new day if needed, applies fn, then persists locally and remotely.
func (s *Store) update(ctx context.Context, fn func(p *domain.DailyProgress)) domain.DailyProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollover(ctx)
	fn(&s.current)
	s.persist(ctx)
	s.enqueue(ctx, s.current)
	return s.current
}

// rollover must be called with s.mu held.
func (s *Store) rollover(ctx context.Context) {
	today := common.DayKey(s.deps.Clock.Now())
	if s.current.Date == today {
		return
	}
	s.deps.Logger.Info("Day changed, resetting daily progress", "previous", s.current.Date, "today", today)
	s.archive(ctx, s.current)
	s.current = domain.NewDailyProgress(today)
}

func (s *Store) archive(ctx context.Context, stale domain.DailyProgress) {
	if stale.Date == "" {
		return
	}
	s.enqueue(ctx, stale)
}

func (s *Store) persist(ctx context.Context) {
	if err := kv.SetJSON(ctx, s.deps.Store, kv.KeyDailyProgress, s.current); err != nil {
		s.deps.Logger.Error("Failed to persist daily progress", "date", s.current.Date, "error", err)
	}
}

func (s *Store) enqueue(ctx context.Context, p domain.DailyProgress) {
	if !s.remoteEnabled() || s.deps.Queue == nil {
		return
	}
	if err := s.deps.Queue.EnqueueDailyProgress(ctx, s.deps.UserID, p); err != nil {
		s.deps.Logger.Warn("Failed to enqueue daily progress", "date", p.Date, "error", err)
	}
}

func (s *Store) remoteEnabled() bool {
	return s.deps.UserID != "" && s.deps.Repo != nil
}
