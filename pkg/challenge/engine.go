// Package challenge tracks weekly challenge progress and awards each completion once per week.
package challenge

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/deenly/progress-core/pkg/cache"
	"github.com/deenly/progress-core/pkg/common"
	"github.com/deenly/progress-core/pkg/domain"
	progresserrors "github.com/deenly/progress-core/pkg/errors"
	"github.com/deenly/progress-core/pkg/kv"
	"github.com/deenly/progress-core/pkg/ledger"
	"github.com/deenly/progress-core/pkg/metrics"
	"github.com/deenly/progress-core/pkg/repository"
)

// ChallengeQueue receives remote writes of weekly challenge rows.
type ChallengeQueue interface {
	EnqueueChallengeProgress(ctx context.Context, userID string, p domain.ChallengeProgress) error
	EnqueueDeleteChallengesBefore(ctx context.Context, userID, weekStart string) error
}

// PointsGranter credits points for a completed challenge.
type PointsGranter interface {
	Add(ctx context.Context, points int, source string) (int, error)
}

// Deps wires an Engine. Repo and Queue are only used when UserID is set.
type Deps struct {
	UserID  string
	Catalog cache.CatalogCache
	Store   kv.Store
	Repo    repository.ProgressRepository
	Queue   ChallengeQueue
	Points  PointsGranter
	Clock   common.Clock
	Logger  *slog.Logger
}

// Update is the outcome of one progress transition.
type Update struct {
	Status        domain.ChallengeStatus
	JustCompleted bool
	PointsAwarded int
}

type lectureCounter struct {
	WeekStart string `json:"weekStart"`
	Count     int    `json:"count"`
}

type workoutDays struct {
	WeekStart string   `json:"weekStart"`
	Days      []string `json:"days"`
}

// Engine owns the current week's challenge progress. Safe for concurrent use.
type Engine struct {
	deps Deps

	mu        sync.Mutex
	weekStart string
	progress  map[domain.ChallengeID]*domain.ChallengeProgress
	lectures  lectureCounter
	workouts  workoutDays
}

// NewEngine creates an Engine. Call LoadWeeklyChallenges before use.
func NewEngine(deps Deps) *Engine {
	return &Engine{
		deps:     deps,
		progress: make(map[domain.ChallengeID]*domain.ChallengeProgress),
	}
}

// LoadWeeklyChallenges restores this week's progress.
//
// When the persisted week boundary differs from the current Monday, every
// challenge restarts at zero and the remote rows of older weeks are scheduled
// for deletion, unless the remote store already holds rows for this week.
// Remote rows win over the local cache.
func (e *Engine) LoadWeeklyChallenges(ctx context.Context) []domain.ChallengeStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	week := common.WeekKey(e.deps.Clock.Now())

	stored, err := e.deps.Store.Get(ctx, kv.KeyWeekBoundary)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		e.deps.Logger.Error("Failed to read week boundary", "error", err)
	}

	rows := e.remoteRows(ctx, week)
	if stored != week {
		if rows == nil {
			e.regenerate(ctx, week)
			return e.statuses()
		}
		// The week is already tracked remotely, e.g. from another device.
		if err := e.deps.Store.Set(ctx, kv.KeyWeekBoundary, week); err != nil {
			e.deps.Logger.Error("Failed to persist week boundary", "error", err)
		}
		if err := e.deps.Queue.EnqueueDeleteChallengesBefore(ctx, e.deps.UserID, week); err != nil {
			e.deps.Logger.Warn("Failed to enqueue challenge cleanup", "before", week, "error", err)
		}
	} else if rows == nil {
		rows = e.localRows(ctx, week)
	}

	e.weekStart = week
	e.progress = make(map[domain.ChallengeID]*domain.ChallengeProgress)
	for _, row := range rows {
		if e.deps.Catalog.GetChallenge(row.ChallengeID) == nil {
			continue
		}
		e.progress[row.ChallengeID] = &row
	}
	e.fillMissing()
	e.loadCounters(ctx)
	e.persist(ctx)

	return e.statuses()
}

// UpdateChallengeProgress sets a challenge's progress for the week, clamped to its target.
//
// Reward points are granted only on the transition to completed. A completed
// challenge ignores further updates until the week boundary.
func (e *Engine) UpdateChallengeProgress(ctx context.Context, id domain.ChallengeID, newProgress int) (Update, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.updateLocked(ctx, id, newProgress)
}

// SyncWeeklyChallengesWithStats feeds the weekly totals into the challenges
// bound to prayer days, Quran pages and dhikr count. Counter-driven challenges
// left open by a failed award are retried as well.
func (e *Engine) SyncWeeklyChallengesWithStats(ctx context.Context, prayerDays, quranPages, dhikrCount int) ([]Update, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	values := []struct {
		metric domain.Metric
		value  int
	}{
		{domain.MetricPrayerDays, prayerDays},
		{domain.MetricQuranPages, quranPages},
		{domain.MetricDhikrCount, dhikrCount},
	}

	var updates []Update
	for _, v := range values {
		c := e.deps.Catalog.GetChallengeByMetric(v.metric)
		if c == nil {
			continue
		}
		u, err := e.updateLocked(ctx, c.ID, v.value)
		if err != nil {
			return updates, err
		}
		updates = append(updates, u)
	}

	retried, err := e.retryCountersLocked(ctx)
	return append(updates, retried...), err
}

// IncrementLectureCount counts one watched lecture this week and returns the new count.
func (e *Engine) IncrementLectureCount(ctx context.Context) (int, Update) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ensureWeek(ctx)
	e.lectures.Count++
	if err := kv.SetJSON(ctx, e.deps.Store, kv.KeyWeeklyLectureCount, e.lectures); err != nil {
		e.deps.Logger.Error("Failed to persist lecture count", "error", err)
	}

	return e.lectures.Count, e.feedMetric(ctx, domain.MetricLectureViews, e.lectures.Count)
}

// IncrementWorkoutDay records a workout for today. Repeated calls on the same
// day are ignored; added reports whether today was new.
func (e *Engine) IncrementWorkoutDay(ctx context.Context) (added bool, count int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ensureWeek(ctx)
	today := common.DayKey(e.deps.Clock.Now())
	if slices.Contains(e.workouts.Days, today) {
		return false, len(e.workouts.Days)
	}

	e.workouts.Days = append(e.workouts.Days, today)
	if err := kv.SetJSON(ctx, e.deps.Store, kv.KeyWeeklyWorkoutDays, e.workouts); err != nil {
		e.deps.Logger.Error("Failed to persist workout days", "error", err)
	}

	e.feedMetric(ctx, domain.MetricWorkoutDays, len(e.workouts.Days))
	return true, len(e.workouts.Days)
}

// Challenges returns the catalog joined with this week's progress, in catalog order.
func (e *Engine) Challenges() []domain.ChallengeStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statuses()
}

// WeekStart returns the boundary of the tracked week.
func (e *Engine) WeekStart() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.weekStart
}

func (e *Engine) updateLocked(ctx context.Context, id domain.ChallengeID, newProgress int) (Update, error) {
	if newProgress < 0 {
		return Update{}, progresserrors.ErrValidationFailed("progress", "must be non-negative")
	}
	c := e.deps.Catalog.GetChallenge(id)
	if c == nil {
		return Update{}, progresserrors.ErrChallengeNotFound(string(id))
	}

	e.ensureWeek(ctx)
	p := e.progressFor(id)

	wasCompleted := p.Completed
	if wasCompleted {
		return Update{Status: e.status(c)}, nil
	}

	clamped := min(newProgress, c.Requirement.TargetValue)
	isCompleted := clamped >= c.Requirement.TargetValue
	if clamped == p.Progress && isCompleted == wasCompleted {
		return Update{Status: e.status(c)}, nil
	}

	// The completion is committed only after its points are granted, so a
	// failed grant leaves the challenge open and the next update retries it.
	// The grant outlives the caller's cancellation once started.
	if isCompleted {
		if _, err := e.deps.Points.Add(context.WithoutCancel(ctx), c.Reward.Points, ledger.SourceChallenge); err != nil {
			e.deps.Logger.Error("Failed to award challenge points", "challenge_id", id, "error", err)
			return Update{Status: e.status(c)}, progresserrors.ErrStorageError("award challenge points", err)
		}
	}

	p.Progress = clamped
	p.Completed = isCompleted
	e.persist(ctx)
	e.enqueue(ctx, *p)

	u := Update{Status: e.status(c)}
	if isCompleted {
		u.JustCompleted = true
		u.PointsAwarded = c.Reward.Points
		metrics.ChallengesCompleted.Inc()
		e.deps.Logger.Info("Challenge completed",
			"challenge_id", id,
			"week_start", e.weekStart,
			"reward_points", c.Reward.Points,
		)
	}
	return u, nil
}

// retryCountersLocked completes counter-driven challenges whose counter
// reached the target while their award could not be granted.
func (e *Engine) retryCountersLocked(ctx context.Context) ([]Update, error) {
	counters := []struct {
		metric domain.Metric
		value  int
	}{
		{domain.MetricLectureViews, e.lectures.Count},
		{domain.MetricWorkoutDays, len(e.workouts.Days)},
	}

	var updates []Update
	for _, v := range counters {
		c := e.deps.Catalog.GetChallengeByMetric(v.metric)
		if c == nil || v.value < c.Requirement.TargetValue || e.progressFor(c.ID).Completed {
			continue
		}
		u, err := e.updateLocked(ctx, c.ID, v.value)
		if err != nil {
			return updates, err
		}
		updates = append(updates, u)
	}
	return updates, nil
}

func (e *Engine) feedMetric(ctx context.Context, metric domain.Metric, value int) Update {
	c := e.deps.Catalog.GetChallengeByMetric(metric)
	if c == nil {
		return Update{}
	}
	u, err := e.updateLocked(ctx, c.ID, value)
	if err != nil {
		e.deps.Logger.Warn("Failed to update challenge from counter", "metric", metric, "error", err)
	}
	return u
}

// ensureWeek regenerates progress when the clock has crossed into a new week.
func (e *Engine) ensureWeek(ctx context.Context) {
	week := common.WeekKey(e.deps.Clock.Now())
	if e.weekStart != week {
		e.regenerate(ctx, week)
	}
}

func (e *Engine) regenerate(ctx context.Context, week string) {
	e.deps.Logger.Info("New week, regenerating challenges", "previous", e.weekStart, "week_start", week)

	e.weekStart = week
	e.progress = make(map[domain.ChallengeID]*domain.ChallengeProgress)
	e.fillMissing()
	e.lectures = lectureCounter{WeekStart: week}
	e.workouts = workoutDays{WeekStart: week}

	e.persist(ctx)
	if err := e.deps.Store.Set(ctx, kv.KeyWeekBoundary, week); err != nil {
		e.deps.Logger.Error("Failed to persist week boundary", "error", err)
	}
	if err := kv.SetJSON(ctx, e.deps.Store, kv.KeyWeeklyLectureCount, e.lectures); err != nil {
		e.deps.Logger.Error("Failed to persist lecture count", "error", err)
	}
	if err := kv.SetJSON(ctx, e.deps.Store, kv.KeyWeeklyWorkoutDays, e.workouts); err != nil {
		e.deps.Logger.Error("Failed to persist workout days", "error", err)
	}

	if !e.remoteEnabled() {
		return
	}
	for _, c := range e.deps.Catalog.GetAllChallenges() {
		e.enqueue(ctx, *e.progress[c.ID])
	}
	if err := e.deps.Queue.EnqueueDeleteChallengesBefore(ctx, e.deps.UserID, week); err != nil {
		e.deps.Logger.Warn("Failed to enqueue challenge cleanup", "before", week, "error", err)
	}
}

func (e *Engine) remoteRows(ctx context.Context, week string) []domain.ChallengeProgress {
	if !e.remoteEnabled() {
		return nil
	}
	rows, err := e.deps.Repo.GetChallengeProgress(ctx, e.deps.UserID, week)
	if err != nil {
		e.deps.Logger.Warn("Failed to read remote challenge progress, using local",
			"user_id", e.deps.UserID,
			"week_start", week,
			"error", err,
		)
		return nil
	}
	if len(rows) == 0 {
		return nil
	}

	out := make([]domain.ChallengeProgress, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	return out
}

func (e *Engine) localRows(ctx context.Context, week string) []domain.ChallengeProgress {
	var rows []domain.ChallengeProgress
	if _, err := kv.GetJSON(ctx, e.deps.Store, kv.KeyWeeklyChallenges, &rows); err != nil {
		e.deps.Logger.Error("Failed to read local challenge progress", "error", err)
		return nil
	}
	return slices.DeleteFunc(rows, func(r domain.ChallengeProgress) bool { return r.WeekStart != week })
}

func (e *Engine) loadCounters(ctx context.Context) {
	e.lectures = lectureCounter{WeekStart: e.weekStart}
	var lc lectureCounter
	if _, err := kv.GetJSON(ctx, e.deps.Store, kv.KeyWeeklyLectureCount, &lc); err != nil {
		e.deps.Logger.Error("Failed to read lecture count", "error", err)
	} else if lc.WeekStart == e.weekStart {
		e.lectures = lc
	}

	e.workouts = workoutDays{WeekStart: e.weekStart}
	var wd workoutDays
	if _, err := kv.GetJSON(ctx, e.deps.Store, kv.KeyWeeklyWorkoutDays, &wd); err != nil {
		e.deps.Logger.Error("Failed to read workout days", "error", err)
	} else if wd.WeekStart == e.weekStart {
		e.workouts = wd
	}
}

func (e *Engine) fillMissing() {
	for _, c := range e.deps.Catalog.GetAllChallenges() {
		e.progressFor(c.ID)
	}
}

func (e *Engine) progressFor(id domain.ChallengeID) *domain.ChallengeProgress {
	p, ok := e.progress[id]
	if !ok {
		p = &domain.ChallengeProgress{ChallengeID: id, WeekStart: e.weekStart}
		e.progress[id] = p
	}
	return p
}

func (e *Engine) status(c *domain.Challenge) domain.ChallengeStatus {
	p := e.progressFor(c.ID)
	return domain.ChallengeStatus{
		Challenge: *c,
		Progress:  p.Progress,
		Completed: p.Completed,
		WeekStart: e.weekStart,
	}
}

func (e *Engine) statuses() []domain.ChallengeStatus {
	all := e.deps.Catalog.GetAllChallenges()
	out := make([]domain.ChallengeStatus, 0, len(all))
	for _, c := range all {
		out = append(out, e.status(c))
	}
	return out
}

func (e *Engine) persist(ctx context.Context) {
	rows := make([]domain.ChallengeProgress, 0, len(e.progress))
	for _, c := range e.deps.Catalog.GetAllChallenges() {
		if p, ok := e.progress[c.ID]; ok {
			rows = append(rows, *p)
		}
	}
	if err := kv.SetJSON(ctx, e.deps.Store, kv.KeyWeeklyChallenges, rows); err != nil {
		e.deps.Logger.Error("Failed to persist challenge progress", "week_start", e.weekStart, "error", err)
	}
}

func (e *Engine) enqueue(ctx context.Context, p domain.ChallengeProgress) {
	if !e.remoteEnabled() {
		return
	}
	if err := e.deps.Queue.EnqueueChallengeProgress(ctx, e.deps.UserID, p); err != nil {
		e.deps.Logger.Warn("Failed to enqueue challenge progress", "challenge_id", p.ChallengeID, "error", err)
	}
}

func (e *Engine) remoteEnabled() bool {
	return e.deps.UserID != "" && e.deps.Repo != nil && e.deps.Queue != nil
}
