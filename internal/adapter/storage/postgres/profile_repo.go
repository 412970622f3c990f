package postgres

import (
	"context"
	"errors"
	"fmt"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProfileRepo implements ports.ProfileRepository.
type ProfileRepo struct {
	pool Pool
}

// NewProfileRepo creates a new ProfileRepo.
func NewProfileRepo(pool Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

// GetByUserID fetches a profile. Returns nil, nil if absent.
func (r *ProfileRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	query := `SELECT user_id, phone, phone_verified, updated_at FROM profiles WHERE user_id = $1`

	p := &domain.Profile{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.Phone, &p.PhoneVerified, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// SetVerifiedPhone stores a normalized, verified phone number on the profile.
func (r *ProfileRepo) SetVerifiedPhone(ctx context.Context, tx pgx.Tx, userID uuid.UUID, phone string) error {
	query := `INSERT INTO profiles (user_id, phone, phone_verified, updated_at)
		VALUES ($1, $2, TRUE, NOW())
		ON CONFLICT (user_id) DO UPDATE SET phone = EXCLUDED.phone, phone_verified = TRUE, updated_at = NOW()`

	if _, err := tx.Exec(ctx, query, userID, phone); err != nil {
		return fmt.Errorf("set verified phone: %w", err)
	}
	return nil
}
