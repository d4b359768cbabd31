package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/deenly/progress-core/pkg/domain"
	progresserrors "github.com/deenly/progress-core/pkg/errors"
)

// SQLProgressRepository implements ProgressRepository on sqlx.
// Queries are written with '?' placeholders and rebound for the connected driver,
// so the same statements run on PostgreSQL and SQLite.
type SQLProgressRepository struct {
	db *sqlx.DB
}

// NewSQLProgressRepository creates a new SQL-backed progress repository.
func NewSQLProgressRepository(db *sqlx.DB) *SQLProgressRepository {
	return &SQLProgressRepository{db: db}
}

// dailyProgressRow is the flattened daily_progress row.
type dailyProgressRow struct {
	UserID               string `db:"user_id"`
	Date                 string `db:"date"`
	PrayersCompleted     int    `db:"prayers_completed"`
	PrayersTotal         int    `db:"prayers_total"`
	PrayersStreak        int    `db:"prayers_streak"`
	DhikrCount           int    `db:"dhikr_count"`
	DhikrGoal            int    `db:"dhikr_goal"`
	DhikrStreak          int    `db:"dhikr_streak"`
	QuranPages           int    `db:"quran_pages"`
	QuranPagesGoal       int    `db:"quran_pages_goal"`
	QuranVersesMemorized int    `db:"quran_verses_memorized"`
	QuranVersesGoal      int    `db:"quran_verses_goal"`
	QuranStreak          int    `db:"quran_streak"`
}

func newDailyProgressRow(userID string, p *domain.DailyProgress) dailyProgressRow {
	return dailyProgressRow{
		UserID:               userID,
		Date:                 p.Date,
		PrayersCompleted:     p.Prayers.Completed,
		PrayersTotal:         p.Prayers.Total,
		PrayersStreak:        p.Prayers.Streak,
		DhikrCount:           p.Dhikr.Count,
		DhikrGoal:            p.Dhikr.Goal,
		DhikrStreak:          p.Dhikr.Streak,
		QuranPages:           p.Quran.Pages,
		QuranPagesGoal:       p.Quran.PagesGoal,
		QuranVersesMemorized: p.Quran.VersesMemorized,
		QuranVersesGoal:      p.Quran.VersesGoal,
		QuranStreak:          p.Quran.Streak,
	}
}

func (r dailyProgressRow) toDomain() *domain.DailyProgress {
	return &domain.DailyProgress{
		Date: r.Date,
		Prayers: domain.PrayerProgress{
			Completed: r.PrayersCompleted,
			Total:     r.PrayersTotal,
			Streak:    r.PrayersStreak,
		},
		Dhikr: domain.DhikrProgress{
			Count:  r.DhikrCount,
			Goal:   r.DhikrGoal,
			Streak: r.DhikrStreak,
		},
		Quran: domain.QuranProgress{
			Pages:           r.QuranPages,
			PagesGoal:       r.QuranPagesGoal,
			VersesMemorized: r.QuranVersesMemorized,
			VersesGoal:      r.QuranVersesGoal,
			Streak:          r.QuranStreak,
		},
	}
}

// GetDailyProgress retrieves the user's record for one calendar day.
func (r *SQLProgressRepository) GetDailyProgress(ctx context.Context, userID, date string) (*domain.DailyProgress, error) {
	query := r.db.Rebind(`
		SELECT user_id, date,
		       prayers_completed, prayers_total, prayers_streak,
		       dhikr_count, dhikr_goal, dhikr_streak,
		       quran_pages, quran_pages_goal, quran_verses_memorized, quran_verses_goal, quran_streak
		FROM daily_progress
		WHERE user_id = ? AND date = ?
	`)

	var row dailyProgressRow
	err := r.db.GetContext(ctx, &row, query, userID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No remote record for this day
	}
	if err != nil {
		return nil, progresserrors.ErrDatabaseError("get daily progress", err)
	}

	return row.toDomain(), nil
}

// UpsertDailyProgress replaces the full row keyed by (user_id, date).
func (r *SQLProgressRepository) UpsertDailyProgress(ctx context.Context, userID string, progress *domain.DailyProgress) error {
	query := `
		INSERT INTO daily_progress (
			user_id, date,
			prayers_completed, prayers_total, prayers_streak,
			dhikr_count, dhikr_goal, dhikr_streak,
			quran_pages, quran_pages_goal, quran_verses_memorized, quran_verses_goal, quran_streak,
			updated_at
		) VALUES (
			:user_id, :date,
			:prayers_completed, :prayers_total, :prayers_streak,
			:dhikr_count, :dhikr_goal, :dhikr_streak,
			:quran_pages, :quran_pages_goal, :quran_verses_memorized, :quran_verses_goal, :quran_streak,
			CURRENT_TIMESTAMP
		)
		ON CONFLICT (user_id, date) DO UPDATE SET
			prayers_completed = excluded.prayers_completed,
			prayers_total = excluded.prayers_total,
			prayers_streak = excluded.prayers_streak,
			dhikr_count = excluded.dhikr_count,
			dhikr_goal = excluded.dhikr_goal,
			dhikr_streak = excluded.dhikr_streak,
			quran_pages = excluded.quran_pages,
			quran_pages_goal = excluded.quran_pages_goal,
			quran_verses_memorized = excluded.quran_verses_memorized,
			quran_verses_goal = excluded.quran_verses_goal,
			quran_streak = excluded.quran_streak,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := r.db.NamedExecContext(ctx, query, newDailyProgressRow(userID, progress)); err != nil {
		return progresserrors.ErrDatabaseError("upsert daily progress", err)
	}
	return nil
}

// GetChallengeProgress retrieves all challenge rows for the given week boundary.
func (r *SQLProgressRepository) GetChallengeProgress(ctx context.Context, userID, weekStart string) ([]*domain.ChallengeProgress, error) {
	query := r.db.Rebind(`
		SELECT challenge_id, week_start, progress, completed
		FROM challenge_progress
		WHERE user_id = ? AND week_start = ?
		ORDER BY challenge_id
	`)

	rows := []*domain.ChallengeProgress{}
	if err := r.db.SelectContext(ctx, &rows, query, userID, weekStart); err != nil {
		return nil, progresserrors.ErrDatabaseError("get challenge progress", err)
	}
	return rows, nil
}

// UpsertChallengeProgress replaces the row keyed by (user_id, challenge_id, week_start).
func (r *SQLProgressRepository) UpsertChallengeProgress(ctx context.Context, userID string, progress *domain.ChallengeProgress) error {
	query := r.db.Rebind(`
		INSERT INTO challenge_progress (user_id, challenge_id, week_start, progress, completed, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, challenge_id, week_start) DO UPDATE SET
			progress = excluded.progress,
			completed = excluded.completed,
			updated_at = CURRENT_TIMESTAMP
	`)

	_, err := r.db.ExecContext(ctx, query,
		userID,
		string(progress.ChallengeID),
		progress.WeekStart,
		progress.Progress,
		progress.Completed,
	)
	if err != nil {
		return progresserrors.ErrDatabaseError("upsert challenge progress", err)
	}
	return nil
}

// DeleteChallengeProgressBefore removes rows of weeks older than weekStart.
// ISO date keys compare lexically in chronological order.
func (r *SQLProgressRepository) DeleteChallengeProgressBefore(ctx context.Context, userID, weekStart string) (int64, error) {
	query := r.db.Rebind(`DELETE FROM challenge_progress WHERE user_id = ? AND week_start < ?`)

	result, err := r.db.ExecContext(ctx, query, userID, weekStart)
	if err != nil {
		return 0, progresserrors.ErrDatabaseError("delete old challenge progress", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, progresserrors.ErrDatabaseError("check rows affected", err)
	}
	return n, nil
}

// InsertAchievementUnlock records one unlock event.
func (r *SQLProgressRepository) InsertAchievementUnlock(ctx context.Context, unlock *domain.AchievementUnlock) error {
	query := r.db.Rebind(`
		INSERT INTO achievement_unlocks (id, user_id, achievement_id, unlocked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)

	_, err := r.db.ExecContext(ctx, query,
		unlock.ID,
		unlock.UserID,
		string(unlock.AchievementID),
		unlock.UnlockedAt.UTC(),
	)
	if err != nil {
		return progresserrors.ErrDatabaseError("insert achievement unlock", err)
	}
	return nil
}

// GetUnlockedAchievementIDs returns the distinct achievement IDs the user has unlocked.
func (r *SQLProgressRepository) GetUnlockedAchievementIDs(ctx context.Context, userID string) ([]domain.AchievementID, error) {
	query := r.db.Rebind(`
		SELECT DISTINCT achievement_id
		FROM achievement_unlocks
		WHERE user_id = ?
		ORDER BY achievement_id
	`)

	var raw []string
	if err := r.db.SelectContext(ctx, &raw, query, userID); err != nil {
		return nil, progresserrors.ErrDatabaseError("get unlocked achievements", err)
	}

	ids := make([]domain.AchievementID, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, domain.AchievementID(id))
	}
	return ids, nil
}

// GetTotalPoints returns the mirrored points total, or 0 if none is stored.
func (r *SQLProgressRepository) GetTotalPoints(ctx context.Context, userID string) (int, error) {
	query := r.db.Rebind(`SELECT total_points FROM user_points WHERE user_id = ?`)

	var total int
	err := r.db.GetContext(ctx, &total, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, progresserrors.ErrDatabaseError("get total points", err)
	}
	return total, nil
}

// UpsertTotalPoints stores an absolute total. The stored value is never lowered,
// so a delayed retry carrying an older total cannot undo a newer one.
func (r *SQLProgressRepository) UpsertTotalPoints(ctx context.Context, userID string, total int) error {
	query := r.db.Rebind(`
		INSERT INTO user_points (user_id, total_points, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			total_points = CASE
				WHEN excluded.total_points > user_points.total_points THEN excluded.total_points
				ELSE user_points.total_points
			END,
			updated_at = CURRENT_TIMESTAMP
	`)

	if _, err := r.db.ExecContext(ctx, query, userID, total); err != nil {
		return progresserrors.ErrDatabaseError("upsert total points", err)
	}
	return nil
}
