package swag

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
)

// ErrOutOfStock means no units of the item remain to assign.
var ErrOutOfStock = errors.New("swag item out of stock")

// Repository handles swag inventory and assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a swag repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateItem adds a stock line for an event.
func (r *Repository) CreateItem(ctx context.Context, item *models.SwagItem) error {
	const q = `INSERT INTO swag_items (event_id, name, size, stock)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, item.EventID, item.Name, item.Size, item.Stock).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}

// GetItem returns a swag item, or nil.
func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*models.SwagItem, error) {
	const q = `SELECT id, event_id, name, size, stock, created_at, updated_at FROM swag_items WHERE id = $1`
	var item models.SwagItem
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&item.ID, &item.EventID, &item.Name, &item.Size, &item.Stock, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems returns an event's stock lines.
func (r *Repository) ListItems(ctx context.Context, eventID uuid.UUID) ([]models.SwagItem, error) {
	const q = `SELECT id, event_id, name, size, stock, created_at, updated_at
		FROM swag_items WHERE event_id = $1 ORDER BY name, size`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SwagItem
	for rows.Next() {
		var item models.SwagItem
		if err := rows.Scan(&item.ID, &item.EventID, &item.Name, &item.Size, &item.Stock,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, rows.Err()
}

// UpdateItem writes a stock line's editable fields.
func (r *Repository) UpdateItem(ctx context.Context, item *models.SwagItem) error {
	const q = `UPDATE swag_items SET name = $2, size = $3, stock = $4, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, item.ID, item.Name, item.Size, item.Stock).Scan(&item.UpdatedAt)
}

// DeleteItem removes a stock line and its assignment history.
func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM swag_items WHERE id = $1`, id)
	return err
}

// Assign hands one unit to a registration, decrementing stock in the same
// transaction. Assignment fails when stock is exhausted; concurrent assigns
// cannot oversell because the decrement is conditional.
func (r *Repository) Assign(ctx context.Context, itemID, registrationID uuid.UUID, assignedBy string) (*models.SwagAssignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE swag_items SET stock = stock - 1, updated_at = NOW() WHERE id = $1 AND stock > 0`, itemID)
	if err != nil {
		return nil, fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrOutOfStock
	}

	const q = `INSERT INTO swag_assignments (swag_item_id, registration_id, assigned_by)
		VALUES ($1, $2, $3)
		RETURNING id, assigned_at`
	a := &models.SwagAssignment{SwagItemID: itemID, RegistrationID: &registrationID, AssignedBy: assignedBy}
	if err := tx.QueryRow(ctx, q, itemID, registrationID, assignedBy).Scan(&a.ID, &a.AssignedAt); err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

// ListAssignments returns a registration's swag.
func (r *Repository) ListAssignments(ctx context.Context, registrationID uuid.UUID) ([]models.SwagAssignment, error) {
	const q = `SELECT id, swag_item_id, registration_id, assigned_by, assigned_at
		FROM swag_assignments WHERE registration_id = $1 ORDER BY assigned_at`
	rows, err := r.pool.Query(ctx, q, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SwagAssignment
	for rows.Next() {
		var a models.SwagAssignment
		if err := rows.Scan(&a.ID, &a.SwagItemID, &a.RegistrationID, &a.AssignedBy, &a.AssignedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Unassign returns one unit to stock and removes the assignment.
func (r *Repository) Unassign(ctx context.Context, assignmentID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var itemID uuid.UUID
	err = tx.QueryRow(ctx,
		`DELETE FROM swag_assignments WHERE id = $1 RETURNING swag_item_id`, assignmentID).Scan(&itemID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE swag_items SET stock = stock + 1, updated_at = NOW() WHERE id = $1`, itemID); err != nil {
		return fmt.Errorf("restock: %w", err)
	}
	return tx.Commit(ctx)
}
