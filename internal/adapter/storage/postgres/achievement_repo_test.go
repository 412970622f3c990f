package postgres

import (
	"context"
	"testing"
	"time"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func achievementColumns() []string {
	return []string{"user_id", "counters", "total_xp", "unlocked", "updated_at"}
}

func TestAchievementRepo_GetByUserID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAchievementRepo(mock)
	userID := uuid.New()
	counters := map[string]int64{domain.StatQRScans: 3}

	mock.ExpectQuery("SELECT .+ FROM achievement_stats WHERE user_id").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(achievementColumns()).
			AddRow(userID, counters, int64(150), []string{"first_scan"}, time.Now()))

	rec, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(3), rec.Stats.Get(domain.StatQRScans))
	assert.Equal(t, int64(150), rec.Stats.TotalXP)
	assert.Equal(t, []string{"first_scan"}, rec.Unlocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAchievementRepo_GetByUserID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAchievementRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM achievement_stats").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(achievementColumns()))

	rec, err := repo.GetByUserID(context.Background(), userID)
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAchievementRepo_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAchievementRepo(mock)
	userID := uuid.New()

	// nil counters and unlocked are written as empty values, never NULL.
	mock.ExpectExec("INSERT INTO achievement_stats .+ ON CONFLICT \\(user_id\\) DO UPDATE").
		WithArgs(userID, map[string]int64{}, int64(0), []string{}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Upsert(context.Background(), &domain.AchievementRecord{UserID: userID})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
