package checkin

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/utils"
)

// Repository handles check-in token persistence and attendance stamping.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a check-in repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateToken issues the per-registration check-in token. The unique
// constraint on registration_id guarantees at most one; a conflict returns
// the existing token untouched (tokens are never reissued).
func (r *Repository) CreateToken(ctx context.Context, registrationID uuid.UUID) (*models.CheckInToken, error) {
	token, err := utils.RandomToken(24)
	if err != nil {
		return nil, err
	}
	const q = `INSERT INTO checkin_tokens (registration_id, token)
		VALUES ($1, $2)
		ON CONFLICT (registration_id) DO UPDATE SET registration_id = EXCLUDED.registration_id
		RETURNING id, registration_id, token, created_at`
	var t models.CheckInToken
	err = r.pool.QueryRow(ctx, q, registrationID, token).
		Scan(&t.ID, &t.RegistrationID, &t.Token, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByRegistrationID returns the token for a registration, or nil.
func (r *Repository) GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*models.CheckInToken, error) {
	const q = `SELECT id, registration_id, token, created_at FROM checkin_tokens WHERE registration_id = $1`
	var t models.CheckInToken
	err := r.pool.QueryRow(ctx, q, registrationID).Scan(&t.ID, &t.RegistrationID, &t.Token, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkCheckedIn stamps the registration once. Zero rows affected means it was
// already checked in.
func (r *Repository) MarkCheckedIn(ctx context.Context, registrationID uuid.UUID, operator string) (bool, error) {
	const q = `UPDATE registrations SET checked_in_at = NOW(), checked_in_by = $2, updated_at = NOW()
		WHERE id = $1 AND checked_in_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, registrationID, operator)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
