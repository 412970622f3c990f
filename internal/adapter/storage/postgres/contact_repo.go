package postgres

import (
	"context"
	"fmt"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ContactRepo implements ports.ContactRepository.
type ContactRepo struct {
	pool Pool
}

// NewContactRepo creates a new ContactRepo.
func NewContactRepo(pool Pool) *ContactRepo {
	return &ContactRepo{pool: pool}
}

// Append inserts a contact. Replays of the same id are ignored.
func (r *ContactRepo) Append(ctx context.Context, userID uuid.UUID, c *domain.Contact) (bool, error) {
	query := `INSERT INTO contacts (id, user_id, name, phone, email, picture, linked_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		c.ID, userID, c.Name, c.Phone, c.Email, c.Picture, c.LinkedUserID, c.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert contact: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns a user's contacts in insertion order.
func (r *ContactRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Contact, error) {
	query := `SELECT id, name, phone, email, picture, linked_user_id, created_at
		FROM contacts WHERE user_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]domain.Contact, 0)
	for rows.Next() {
		c := domain.Contact{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Picture, &c.LinkedUserID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact row: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contact rows: %w", err)
	}
	return contacts, nil
}

// DeleteByUser removes a user's address book within a database transaction.
func (r *ContactRepo) DeleteByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM contacts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete contacts: %w", err)
	}
	return nil
}
