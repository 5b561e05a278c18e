package guests

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
)

// Repository handles guest persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a guests repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create adds a guest to a registration.
func (r *Repository) Create(ctx context.Context, g *models.Guest) error {
	const q = `INSERT INTO guests (registration_id, first_name, last_name, dietary)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, g.RegistrationID, g.FirstName, g.LastName, g.Dietary).
		Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

// GetByID returns a guest, or nil.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Guest, error) {
	const q = `SELECT id, registration_id, first_name, last_name, dietary, created_at, updated_at
		FROM guests WHERE id = $1`
	var g models.Guest
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&g.ID, &g.RegistrationID, &g.FirstName, &g.LastName, &g.Dietary, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListByRegistration returns a registration's guests.
func (r *Repository) ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.Guest, error) {
	const q = `SELECT id, registration_id, first_name, last_name, dietary, created_at, updated_at
		FROM guests WHERE registration_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Guest
	for rows.Next() {
		var g models.Guest
		if err := rows.Scan(&g.ID, &g.RegistrationID, &g.FirstName, &g.LastName, &g.Dietary,
			&g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// CountByRegistration returns how many guests a registration already has.
func (r *Repository) CountByRegistration(ctx context.Context, registrationID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM guests WHERE registration_id = $1`, registrationID).Scan(&n)
	return n, err
}

// Update writes a guest's editable fields.
func (r *Repository) Update(ctx context.Context, g *models.Guest) error {
	const q = `UPDATE guests SET first_name = $2, last_name = $3, dietary = $4, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, g.ID, g.FirstName, g.LastName, g.Dietary).Scan(&g.UpdatedAt)
}

// Delete removes a guest.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM guests WHERE id = $1`, id)
	return err
}
