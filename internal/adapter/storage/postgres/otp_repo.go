package postgres

import (
	"context"
	"errors"
	"fmt"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OTPRepo implements ports.OTPRepository.
type OTPRepo struct {
	pool Pool
}

// NewOTPRepo creates a new OTPRepo.
func NewOTPRepo(pool Pool) *OTPRepo {
	return &OTPRepo{pool: pool}
}

// Create stores an issued code.
func (r *OTPRepo) Create(ctx context.Context, rec *domain.OTPRecord) error {
	query := `INSERT INTO otp_codes (id, user_id, phone, code, expires_at, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.Phone, rec.Code, rec.ExpiresAt, rec.Verified, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}
	return nil
}

// FindUnverified returns the newest unverified code matching user, phone and code.
func (r *OTPRepo) FindUnverified(ctx context.Context, userID uuid.UUID, phone, code string) (*domain.OTPRecord, error) {
	query := `SELECT id, user_id, phone, code, expires_at, verified, created_at
		FROM otp_codes
		WHERE user_id = $1 AND phone = $2 AND code = $3 AND verified = FALSE
		ORDER BY created_at DESC LIMIT 1`

	rec := &domain.OTPRecord{}
	err := r.pool.QueryRow(ctx, query, userID, phone, code).Scan(
		&rec.ID, &rec.UserID, &rec.Phone, &rec.Code, &rec.ExpiresAt, &rec.Verified, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find otp: %w", err)
	}
	return rec, nil
}

// MarkVerified flags a code as used. Returns false when a concurrent
// verification got there first.
func (r *OTPRepo) MarkVerified(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `UPDATE otp_codes SET verified = TRUE WHERE id = $1 AND verified = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("mark otp verified: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
