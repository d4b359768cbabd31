package repository

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/deenly/progress-core/pkg/domain"
)

// MockProgressRepository is a mock implementation of ProgressRepository for testing.
// It uses testify/mock to allow test assertions on method calls.
type MockProgressRepository struct {
	mock.Mock
}

// NewMockProgressRepository creates a new mock progress repository.
func NewMockProgressRepository() *MockProgressRepository {
	return &MockProgressRepository{}
}

func (m *MockProgressRepository) GetDailyProgress(ctx context.Context, userID, date string) (*domain.DailyProgress, error) {
	args := m.Called(ctx, userID, date)
	if p := args.Get(0); p != nil {
		return p.(*domain.DailyProgress), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProgressRepository) UpsertDailyProgress(ctx context.Context, userID string, progress *domain.DailyProgress) error {
	args := m.Called(ctx, userID, progress)
	return args.Error(0)
}

func (m *MockProgressRepository) GetChallengeProgress(ctx context.Context, userID, weekStart string) ([]*domain.ChallengeProgress, error) {
	args := m.Called(ctx, userID, weekStart)
	if rows := args.Get(0); rows != nil {
		return rows.([]*domain.ChallengeProgress), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProgressRepository) UpsertChallengeProgress(ctx context.Context, userID string, progress *domain.ChallengeProgress) error {
	args := m.Called(ctx, userID, progress)
	return args.Error(0)
}

func (m *MockProgressRepository) DeleteChallengeProgressBefore(ctx context.Context, userID, weekStart string) (int64, error) {
	args := m.Called(ctx, userID, weekStart)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProgressRepository) InsertAchievementUnlock(ctx context.Context, unlock *domain.AchievementUnlock) error {
	args := m.Called(ctx, unlock)
	return args.Error(0)
}

func (m *MockProgressRepository) GetUnlockedAchievementIDs(ctx context.Context, userID string) ([]domain.AchievementID, error) {
	args := m.Called(ctx, userID)
	if ids := args.Get(0); ids != nil {
		return ids.([]domain.AchievementID), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProgressRepository) GetTotalPoints(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockProgressRepository) UpsertTotalPoints(ctx context.Context, userID string, total int) error {
	args := m.Called(ctx, userID, total)
	return args.Error(0)
}
