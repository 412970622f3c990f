package postgres

import (
	"context"
	"errors"
	"fmt"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AchievementRepo implements ports.AchievementRepository.
type AchievementRepo struct {
	pool Pool
}

// NewAchievementRepo creates a new AchievementRepo.
func NewAchievementRepo(pool Pool) *AchievementRepo {
	return &AchievementRepo{pool: pool}
}

// GetByUserID fetches a user's stats row. Returns nil, nil if absent.
func (r *AchievementRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.AchievementRecord, error) {
	query := `SELECT user_id, counters, total_xp, unlocked, updated_at
		FROM achievement_stats WHERE user_id = $1`

	rec := &domain.AchievementRecord{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&rec.UserID, &rec.Stats.Counters, &rec.Stats.TotalXP, &rec.Unlocked, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get achievement stats: %w", err)
	}
	if rec.Stats.Counters == nil {
		rec.Stats.Counters = make(map[string]int64)
	}
	if rec.Unlocked == nil {
		rec.Unlocked = []string{}
	}
	return rec, nil
}

// Upsert writes the full stats snapshot. The last writer wins.
func (r *AchievementRepo) Upsert(ctx context.Context, rec *domain.AchievementRecord) error {
	query := `INSERT INTO achievement_stats (user_id, counters, total_xp, unlocked, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			counters = EXCLUDED.counters,
			total_xp = EXCLUDED.total_xp,
			unlocked = EXCLUDED.unlocked,
			updated_at = NOW()`

	counters := rec.Stats.Counters
	if counters == nil {
		counters = map[string]int64{}
	}
	unlocked := rec.Unlocked
	if unlocked == nil {
		unlocked = []string{}
	}

	if _, err := r.pool.Exec(ctx, query, rec.UserID, counters, rec.Stats.TotalXP, unlocked); err != nil {
		return fmt.Errorf("upsert achievement stats: %w", err)
	}
	return nil
}
