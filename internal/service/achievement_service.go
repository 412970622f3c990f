package service

import (
	"context"
	"fmt"

	"payquest/internal/core/domain"
	"payquest/internal/core/ports"
	"payquest/pkg/apperror"
	"payquest/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AchievementServiceImpl implements ports.AchievementService.
type AchievementServiceImpl struct {
	repo  ports.AchievementRepository
	clock clock.Clock
	log   zerolog.Logger
}

// NewAchievementService creates a new AchievementServiceImpl.
func NewAchievementService(repo ports.AchievementRepository, clk clock.Clock, log zerolog.Logger) *AchievementServiceImpl {
	return &AchievementServiceImpl{repo: repo, clock: clk, log: log}
}

// GetOrCreate returns the user's stats row, inserting a zeroed one on first use.
func (s *AchievementServiceImpl) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.AchievementRecord, error) {
	rec, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get achievement stats: %w", err))
	}
	if rec != nil {
		return rec, nil
	}

	rec = &domain.AchievementRecord{
		UserID:    userID,
		Stats:     domain.NewStats(),
		Unlocked:  []string{},
		UpdatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create achievement stats: %w", err))
	}

	s.log.Info().Str("user_id", userID.String()).Msg("achievement stats created")
	return rec, nil
}

// Update replaces the stored stats snapshot. The last writer wins.
func (s *AchievementServiceImpl) Update(ctx context.Context, userID uuid.UUID, stats domain.Stats, unlocked []string) error {
	if stats.TotalXP < 0 {
		return apperror.Validation("total_xp must not be negative")
	}
	for name, v := range stats.Counters {
		if v < 0 {
			return apperror.Validation(fmt.Sprintf("counter %s must not be negative", name))
		}
	}
	if stats.Counters == nil {
		stats.Counters = map[string]int64{}
	}
	if unlocked == nil {
		unlocked = []string{}
	}

	rec := &domain.AchievementRecord{
		UserID:    userID,
		Stats:     stats,
		Unlocked:  unlocked,
		UpdatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("update achievement stats: %w", err))
	}
	return nil
}
