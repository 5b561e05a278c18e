package qualifiers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
)

const qualifierColumns = `id, event_id, email, unicity_id, first_name, last_name, phone, locale, guest_allowance, created_at`

// Repository handles qualified-registrant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a qualifiers repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanQualifier(row pgx.Row) (*models.QualifiedRegistrant, error) {
	var q models.QualifiedRegistrant
	err := row.Scan(&q.ID, &q.EventID, &q.Email, &q.UnicityID, &q.FirstName, &q.LastName,
		&q.Phone, &q.Locale, &q.GuestAllowance, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Create inserts one qualified registrant.
func (r *Repository) Create(ctx context.Context, q *models.QualifiedRegistrant) error {
	const sql = `INSERT INTO qualified_registrants
		(event_id, email, unicity_id, first_name, last_name, phone, locale, guest_allowance)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, sql, q.EventID, q.Email, q.UnicityID, q.FirstName, q.LastName,
		q.Phone, q.Locale, q.GuestAllowance).Scan(&q.ID, &q.CreatedAt)
}

// GetByEventAndEmail returns the pre-approval for event+email, or nil.
func (r *Repository) GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.QualifiedRegistrant, error) {
	sql := `SELECT ` + qualifierColumns + ` FROM qualified_registrants
		WHERE event_id = $1 AND LOWER(email) = LOWER($2) LIMIT 1`
	return scanQualifier(r.pool.QueryRow(ctx, sql, eventID, email))
}

// GetByEventAndUnicityID returns the pre-approval for event+unicity ID, or nil.
func (r *Repository) GetByEventAndUnicityID(ctx context.Context, eventID uuid.UUID, unicityID string) (*models.QualifiedRegistrant, error) {
	sql := `SELECT ` + qualifierColumns + ` FROM qualified_registrants
		WHERE event_id = $1 AND unicity_id = $2 LIMIT 1`
	return scanQualifier(r.pool.QueryRow(ctx, sql, eventID, unicityID))
}

// ListByEvent returns all pre-approvals for an event.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.QualifiedRegistrant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+qualifierColumns+` FROM qualified_registrants
		WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.QualifiedRegistrant
	for rows.Next() {
		q, err := scanQualifier(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *q)
	}
	return list, rows.Err()
}

// Delete removes one pre-approval.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM qualified_registrants WHERE id = $1`, id)
	return err
}

// BulkInsert inserts all rows in one transaction: either every row lands or
// none do.
func (r *Repository) BulkInsert(ctx context.Context, eventID uuid.UUID, rows []models.QualifiedRegistrant) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const sql = `INSERT INTO qualified_registrants
		(event_id, email, unicity_id, first_name, last_name, phone, locale, guest_allowance)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8)`
	for i, q := range rows {
		if _, err := tx.Exec(ctx, sql, eventID, q.Email, q.UnicityID, q.FirstName, q.LastName,
			q.Phone, q.Locale, q.GuestAllowance); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}
