package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
)

const registrationColumns = `id, event_id, email, first_name, last_name, phone, unicity_id,
	passport_number, passport_country, dietary, locale, form_data, acknowledgments,
	verified_by_hydra, order_id, attendee_index, checked_in_at, checked_in_by,
	payment_status, created_at, updated_at`

// Repository handles registration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var r models.Registration
	err := row.Scan(&r.ID, &r.EventID, &r.Email, &r.FirstName, &r.LastName, &r.Phone, &r.UnicityID,
		&r.PassportNumber, &r.PassportCountry, &r.Dietary, &r.Locale, &r.FormData, &r.Acknowledgments,
		&r.VerifiedByHydra, &r.OrderID, &r.AttendeeIndex, &r.CheckedInAt, &r.CheckedInBy,
		&r.PaymentStatus, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Upsert inserts or replaces the registration for (event, email). The partial
// unique index on LOWER(email) makes concurrent submits for the same address
// collapse to a single row; the xmax trick tells insert from update so the
// handler can pick 200 vs 201.
func (r *Repository) Upsert(ctx context.Context, reg *models.Registration) (wasUpdate bool, err error) {
	const q = `INSERT INTO registrations
		(event_id, email, first_name, last_name, phone, unicity_id,
		 passport_number, passport_country, dietary, locale, form_data, acknowledgments,
		 verified_by_hydra, payment_status)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (event_id, LOWER(email)) WHERE order_id IS NULL
		DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			unicity_id = COALESCE(EXCLUDED.unicity_id, registrations.unicity_id),
			passport_number = EXCLUDED.passport_number,
			passport_country = EXCLUDED.passport_country,
			dietary = EXCLUDED.dietary,
			locale = EXCLUDED.locale,
			form_data = EXCLUDED.form_data,
			acknowledgments = EXCLUDED.acknowledgments,
			verified_by_hydra = registrations.verified_by_hydra OR EXCLUDED.verified_by_hydra,
			updated_at = NOW()
		RETURNING ` + registrationColumns + `, (xmax <> 0) AS was_update`
	row := r.pool.QueryRow(ctx, q, reg.EventID, reg.Email, reg.FirstName, reg.LastName, reg.Phone,
		reg.UnicityID, reg.PassportNumber, reg.PassportCountry, reg.Dietary, reg.Locale,
		reg.FormData, reg.Acknowledgments, reg.VerifiedByHydra, reg.PaymentStatus)
	err = row.Scan(&reg.ID, &reg.EventID, &reg.Email, &reg.FirstName, &reg.LastName, &reg.Phone,
		&reg.UnicityID, &reg.PassportNumber, &reg.PassportCountry, &reg.Dietary, &reg.Locale,
		&reg.FormData, &reg.Acknowledgments, &reg.VerifiedByHydra, &reg.OrderID, &reg.AttendeeIndex,
		&reg.CheckedInAt, &reg.CheckedInBy, &reg.PaymentStatus, &reg.CreatedAt, &reg.UpdatedAt,
		&wasUpdate)
	return wasUpdate, err
}

// InsertAnonymousBatch inserts one order's attendee rows in a single
// transaction. All rows share the order ID; attendee_index runs 0..n-1.
func (r *Repository) InsertAnonymousBatch(ctx context.Context, regs []*models.Registration) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO registrations
		(event_id, email, first_name, last_name, phone, locale, form_data, acknowledgments,
		 order_id, attendee_index, payment_status)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	for _, reg := range regs {
		err := tx.QueryRow(ctx, q, reg.EventID, reg.Email, reg.FirstName, reg.LastName, reg.Phone,
			reg.Locale, reg.FormData, reg.Acknowledgments, reg.OrderID, reg.AttendeeIndex,
			reg.PaymentStatus).Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert attendee %d: %w", derefInt(reg.AttendeeIndex), err)
		}
	}
	return tx.Commit(ctx)
}

func derefInt(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

// DeleteByOrderID removes every attendee of an anonymous order. Used as the
// compensating action when post-insert work fails partway.
func (r *Repository) DeleteByOrderID(ctx context.Context, orderID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM registrations WHERE order_id = $1`, orderID)
	return err
}

// GetByID returns a registration, or nil.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
}

// GetByEventAndEmail returns the verified-mode registration for the address,
// or nil. Anonymous rows never match.
func (r *Repository) GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.Registration, error) {
	return scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		WHERE event_id = $1 AND LOWER(email) = LOWER($2) AND order_id IS NULL`, eventID, email))
}

// GetByEventAndUnicityID returns the registration holding the unicity ID, or nil.
func (r *Repository) GetByEventAndUnicityID(ctx context.Context, eventID uuid.UUID, unicityID string) (*models.Registration, error) {
	return scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		WHERE event_id = $1 AND unicity_id = $2 LIMIT 1`, eventID, unicityID))
}

// ListByEvent returns an event's registrations, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 ORDER BY created_at DESC`,
		eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// ListByOrderID returns all attendees of an anonymous order in seat order.
func (r *Repository) ListByOrderID(ctx context.Context, orderID string) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE order_id = $1 ORDER BY attendee_index`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// Update writes the attendee-editable fields.
func (r *Repository) Update(ctx context.Context, reg *models.Registration) error {
	const q = `UPDATE registrations SET
		first_name = $2, last_name = $3, phone = $4,
		passport_number = $5, passport_country = $6, dietary = $7, locale = $8,
		form_data = $9, acknowledgments = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, reg.ID, reg.FirstName, reg.LastName, reg.Phone,
		reg.PassportNumber, reg.PassportCountry, reg.Dietary, reg.Locale,
		reg.FormData, reg.Acknowledgments).Scan(&reg.UpdatedAt)
}

// SetPaymentStatus updates the payment state, typically from the Stripe
// webhook.
func (r *Repository) SetPaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE registrations SET payment_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

// SetPaymentStatusByOrderID updates payment state for every seat of an order.
func (r *Repository) SetPaymentStatusByOrderID(ctx context.Context, orderID string, status models.PaymentStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE registrations SET payment_status = $2, updated_at = NOW() WHERE order_id = $1`, orderID, status)
	return err
}

// Delete removes a registration. Dependent rows cascade or null out per the
// schema.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	return err
}
