package achievement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/deenly/progress-core/pkg/cache"
	"github.com/deenly/progress-core/pkg/common"
	"github.com/deenly/progress-core/pkg/config"
	"github.com/deenly/progress-core/pkg/domain"
	progresserrors "github.com/deenly/progress-core/pkg/errors"
	"github.com/deenly/progress-core/pkg/kv"
	"github.com/deenly/progress-core/pkg/repository"
)

const testUser = "user-1"

// fakePoints fails the next failNext grants and, like the ledger, refuses a
// done context.
type fakePoints struct {
	mu       sync.Mutex
	grants   []int
	failNext int
}

func (p *fakePoints) Add(ctx context.Context, points int, _ string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if p.failNext > 0 {
		p.failNext--
		return 0, errors.New("ledger closed")
	}
	p.grants = append(p.grants, points)
	return 0, nil
}

type fakeQueue struct {
	mu      sync.Mutex
	unlocks []domain.AchievementUnlock
}

func (q *fakeQueue) EnqueueAchievementUnlock(_ context.Context, u domain.AchievementUnlock) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.unlocks = append(q.unlocks, u)
	return nil
}

type fixture struct {
	engine *Engine
	kv     *kv.MemoryStore
	repo   *repository.MockProgressRepository
	queue  *fakeQueue
	points *fakePoints
	deps   Deps
}

func newFixture(t *testing.T, userID string) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog, err := config.NewCatalogLoader("", logger).LoadCatalog()
	require.NoError(t, err)

	f := &fixture{
		kv:     kv.NewMemoryStore(),
		repo:   repository.NewMockProgressRepository(),
		queue:  &fakeQueue{},
		points: &fakePoints{},
	}
	f.deps = Deps{
		UserID:  userID,
		Catalog: cache.NewInMemoryCatalogCache(catalog, "", logger),
		Store:   f.kv,
		Repo:    f.repo,
		Queue:   f.queue,
		Points:  f.points,
		Clock:   common.NewFixedClock(time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)),
		Logger:  logger,
	}
	f.engine = NewEngine(f.deps)
	return f
}

func unlockedIDs(statuses []domain.AchievementStatus) []domain.AchievementID {
	var ids []domain.AchievementID
	for _, s := range statuses {
		if s.Unlocked {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func TestSatisfied(t *testing.T) {
	tests := []struct {
		id       domain.AchievementID
		daily    domain.DailyProgress
		lifetime domain.LifetimeStats
		want     bool
	}{
		{id: domain.AchievementPrayerStreak7, daily: domain.DailyProgress{Prayers: domain.PrayerProgress{Streak: 7}}, want: true},
		{id: domain.AchievementPrayerStreak7, daily: domain.DailyProgress{Prayers: domain.PrayerProgress{Streak: 6}}, want: false},
		{id: domain.AchievementPrayerStreak30, daily: domain.DailyProgress{Prayers: domain.PrayerProgress{Streak: 29}}, want: false},
		{id: domain.AchievementPrayerStreak30, daily: domain.DailyProgress{Prayers: domain.PrayerProgress{Streak: 30}}, want: true},
		{id: domain.AchievementDhikrStreak7, daily: domain.DailyProgress{Dhikr: domain.DhikrProgress{Streak: 7}}, want: true},
		{id: domain.AchievementQuranStreak7, daily: domain.DailyProgress{Quran: domain.QuranProgress{Streak: 8}}, want: true},
		{id: domain.AchievementDhikr1000, lifetime: domain.LifetimeStats{TotalDhikr: 999}, want: false},
		{id: domain.AchievementDhikr1000, lifetime: domain.LifetimeStats{TotalDhikr: 1000}, want: true},
		{id: domain.AchievementDhikr10000, lifetime: domain.LifetimeStats{TotalDhikr: 9999}, want: false},
		{id: domain.AchievementDhikr10000, lifetime: domain.LifetimeStats{TotalDhikr: 10000}, want: true},
		{id: domain.AchievementQuranPages100, lifetime: domain.LifetimeStats{TotalQuranPages: 100}, want: true},
		{id: domain.AchievementQuranPages604, lifetime: domain.LifetimeStats{TotalQuranPages: 603}, want: false},
		{id: domain.AchievementVerses50, lifetime: domain.LifetimeStats{TotalQuranVerses: 50}, want: true},
		{id: domain.AchievementLectures10, lifetime: domain.LifetimeStats{LecturesWatched: 10}, want: true},
		{id: domain.AchievementWorkouts20, lifetime: domain.LifetimeStats{WorkoutsCompleted: 19}, want: false},
		{id: domain.AchievementWellnessStreak7, lifetime: domain.LifetimeStats{WellnessStreak: 7}, want: true},
		{id: "unknown-badge", lifetime: domain.LifetimeStats{TotalDhikr: 1 << 20}, want: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			assert.Equal(t, tt.want, Satisfied(tt.id, tt.daily, tt.lifetime))
		})
	}
}

func TestSatisfied_EveryKnownIDHasPredicate(t *testing.T) {
	maxed := domain.LifetimeStats{
		TotalDhikr: 1 << 20, TotalQuranPages: 1 << 20, TotalQuranVerses: 1 << 20,
		LecturesWatched: 1 << 20, WorkoutsCompleted: 1 << 20, WellnessStreak: 1 << 20,
	}
	daily := domain.DailyProgress{
		Prayers: domain.PrayerProgress{Streak: 1 << 20},
		Dhikr:   domain.DhikrProgress{Streak: 1 << 20},
		Quran:   domain.QuranProgress{Streak: 1 << 20},
	}
	for _, id := range domain.AllAchievementIDs {
		assert.True(t, Satisfied(id, daily, maxed), id)
	}
}

func TestCheckAchievements_Dhikr10000UnlocksOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testUser)
	f.repo.On("GetUnlockedAchievementIDs", mock.Anything, testUser).Return([]domain.AchievementID{}, nil)
	f.engine.LoadAchievements(ctx)

	daily := domain.NewDailyProgress("2025-03-12")

	unlocks := f.engine.CheckAchievements(ctx, daily, domain.LifetimeStats{TotalDhikr: 9999})
	require.Len(t, unlocks, 1)
	assert.Equal(t, domain.AchievementDhikr1000, unlocks[0].Achievement.ID)

	unlocks = f.engine.CheckAchievements(ctx, daily, domain.LifetimeStats{TotalDhikr: 10000})
	require.Len(t, unlocks, 1)
	assert.Equal(t, domain.AchievementDhikr10000, unlocks[0].Achievement.ID)
	assert.NotEmpty(t, unlocks[0].UnlockID)
	assert.Equal(t, 400, unlocks[0].Points)

	unlocks = f.engine.CheckAchievements(ctx, daily, domain.LifetimeStats{TotalDhikr: 12000})
	assert.Empty(t, unlocks)

	assert.Equal(t, []int{100, 400}, f.points.grants)
	require.Len(t, f.queue.unlocks, 2)
	assert.Equal(t, testUser, f.queue.unlocks[1].UserID)
	assert.Equal(t, domain.AchievementDhikr10000, f.queue.unlocks[1].AchievementID)
	assert.Equal(t, storedUnlockID(t, f), f.queue.unlocks[1].ID)
}

func storedUnlockID(t *testing.T, f *fixture) string {
	t.Helper()
	var local map[domain.AchievementID]unlockRecord
	found, err := kv.GetJSON(context.Background(), f.kv, kv.KeyAchievements, &local)
	require.NoError(t, err)
	require.True(t, found)
	return local[domain.AchievementDhikr10000].UnlockID
}

func TestCheckAchievements_DefaultPoints(t *testing.T) {
	f := newFixture(t, "")
	f.engine.LoadAchievements(context.Background())

	unlocks := f.engine.CheckAchievements(context.Background(), domain.DailyProgress{}, domain.LifetimeStats{LecturesWatched: 10})
	require.Len(t, unlocks, 1)
	assert.Equal(t, domain.DefaultAchievementPoints, unlocks[0].Points)
	assert.Empty(t, f.queue.unlocks, "no remote identity")
}

func TestCheckAchievements_FailedGrantStaysLocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testUser)
	f.repo.On("GetUnlockedAchievementIDs", mock.Anything, testUser).Return([]domain.AchievementID{}, nil)
	f.engine.LoadAchievements(ctx)
	f.points.failNext = 1

	lifetime := domain.LifetimeStats{LecturesWatched: 10}
	assert.Empty(t, f.engine.CheckAchievements(ctx, domain.DailyProgress{}, lifetime))
	assert.Empty(t, unlockedIDs(f.engine.Achievements()))
	assert.Empty(t, f.queue.unlocks)

	unlocks := f.engine.CheckAchievements(ctx, domain.DailyProgress{}, lifetime)
	require.Len(t, unlocks, 1)
	assert.Equal(t, domain.AchievementLectures10, unlocks[0].Achievement.ID)
	assert.Equal(t, []int{domain.DefaultAchievementPoints}, f.points.grants)
	assert.Len(t, f.queue.unlocks, 1)
}

func TestCheckAchievements_CancelledContextStillAwards(t *testing.T) {
	f := newFixture(t, "")
	f.engine.LoadAchievements(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	unlocks := f.engine.CheckAchievements(ctx, domain.DailyProgress{}, domain.LifetimeStats{LecturesWatched: 10})
	require.Len(t, unlocks, 1)
	assert.Equal(t, []int{domain.DefaultAchievementPoints}, f.points.grants)
}

func TestCheckAchievements_PersistsOnlyOnUnlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	f.engine.LoadAchievements(ctx)
	require.NoError(t, f.kv.Remove(ctx, kv.KeyAchievements))

	f.engine.CheckAchievements(ctx, domain.DailyProgress{}, domain.LifetimeStats{})
	_, err := f.kv.Get(ctx, kv.KeyAchievements)
	assert.ErrorIs(t, err, kv.ErrNotFound)

	f.engine.CheckAchievements(ctx, domain.DailyProgress{}, domain.LifetimeStats{WorkoutsCompleted: 20})
	_, err = f.kv.Get(ctx, kv.KeyAchievements)
	assert.NoError(t, err)
}

func TestLoadAchievements_UnionWithRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testUser)

	unlockedAt := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, kv.SetJSON(ctx, f.kv, kv.KeyAchievements, map[domain.AchievementID]unlockRecord{
		domain.AchievementVerses50:  {UnlockID: "local-1", UnlockedAt: unlockedAt},
		domain.AchievementDhikr1000: {UnlockID: "local-2", UnlockedAt: unlockedAt},
	}))
	f.repo.On("GetUnlockedAchievementIDs", mock.Anything, testUser).
		Return([]domain.AchievementID{domain.AchievementDhikr1000, domain.AchievementPrayerStreak7}, nil)

	statuses := f.engine.LoadAchievements(ctx)
	assert.ElementsMatch(t,
		[]domain.AchievementID{domain.AchievementPrayerStreak7, domain.AchievementDhikr1000, domain.AchievementVerses50},
		unlockedIDs(statuses),
	)

	// The local-only unlock is re-sent with its original ID.
	require.Len(t, f.queue.unlocks, 1)
	assert.Equal(t, "local-1", f.queue.unlocks[0].ID)
	assert.Equal(t, domain.AchievementVerses50, f.queue.unlocks[0].AchievementID)

	// Remote-only unlocks are never re-awarded.
	unlocks := f.engine.CheckAchievements(ctx, domain.DailyProgress{Prayers: domain.PrayerProgress{Streak: 9}}, domain.LifetimeStats{})
	assert.Empty(t, unlocks)
	assert.Empty(t, f.points.grants)
}

func TestLoadAchievements_RemoteFailureUsesLocal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testUser)
	require.NoError(t, kv.SetJSON(ctx, f.kv, kv.KeyAchievements, map[domain.AchievementID]unlockRecord{
		domain.AchievementLectures10: {UnlockID: "x", UnlockedAt: time.Now()},
	}))
	f.repo.On("GetUnlockedAchievementIDs", mock.Anything, testUser).Return(nil, errors.New("connection refused"))

	statuses := f.engine.LoadAchievements(ctx)
	assert.Equal(t, []domain.AchievementID{domain.AchievementLectures10}, unlockedIDs(statuses))
	assert.Empty(t, f.queue.unlocks)
}

func TestLoadAchievements_DefaultsLocked(t *testing.T) {
	f := newFixture(t, "")
	statuses := f.engine.LoadAchievements(context.Background())
	require.Len(t, statuses, len(domain.AllAchievementIDs))
	for _, s := range statuses {
		assert.False(t, s.Unlocked)
		assert.Nil(t, s.UnlockedAt)
	}
}

func TestUnlockSurvivesReload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	f.engine.LoadAchievements(ctx)
	f.engine.CheckAchievements(ctx, domain.DailyProgress{}, domain.LifetimeStats{WellnessStreak: 7})

	reloaded := NewEngine(f.deps)
	statuses := reloaded.LoadAchievements(ctx)
	assert.Equal(t, []domain.AchievementID{domain.AchievementWellnessStreak7}, unlockedIDs(statuses))

	unlocks := reloaded.CheckAchievements(ctx, domain.DailyProgress{}, domain.LifetimeStats{WellnessStreak: 8})
	assert.Empty(t, unlocks)
	assert.Len(t, f.points.grants, 1)
}

func TestAchievement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	f.engine.LoadAchievements(ctx)
	f.engine.CheckAchievements(ctx, domain.DailyProgress{}, domain.LifetimeStats{LecturesWatched: 10})

	got, err := f.engine.Achievement(domain.AchievementLectures10)
	require.NoError(t, err)
	assert.True(t, got.Unlocked)
	require.NotNil(t, got.UnlockedAt)

	got, err = f.engine.Achievement(domain.AchievementDhikr10000)
	require.NoError(t, err)
	assert.False(t, got.Unlocked)

	_, err = f.engine.Achievement("dhikr-unknown")
	assert.True(t, progresserrors.HasCode(err, progresserrors.ErrCodeAchievementNotFound))
}
