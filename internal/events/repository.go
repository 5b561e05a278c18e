package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
)

const eventColumns = `id, slug, name, name_es, starts_at, ends_at, status, registration_mode,
	allow_guests, max_guests, qualification_starts_at, qualification_ends_at,
	form_template_id, form_fields, market_code, price_cents, currency, created_by, created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Slug, &e.Name, &e.NameEs, &e.StartsAt, &e.EndsAt, &e.Status,
		&e.RegistrationMode, &e.AllowGuests, &e.MaxGuests,
		&e.QualificationStartsAt, &e.QualificationEndsAt,
		&e.FormTemplateID, &e.FormFieldsRaw, &e.MarketCode, &e.PriceCents, &e.Currency,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts an event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events
		(slug, name, name_es, starts_at, ends_at, status, registration_mode,
		 allow_guests, max_guests, qualification_starts_at, qualification_ends_at,
		 form_template_id, form_fields, market_code, price_cents, currency, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Slug, e.Name, e.NameEs, e.StartsAt, e.EndsAt,
		e.Status, e.RegistrationMode, e.AllowGuests, e.MaxGuests,
		e.QualificationStartsAt, e.QualificationEndsAt,
		e.FormTemplateID, e.FormFieldsRaw, e.MarketCode, e.PriceCents, e.Currency, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID, or nil.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// GetByIDOrSlug resolves the :id path segment, which may be a UUID or a slug.
func (r *Repository) GetByIDOrSlug(ctx context.Context, idOrSlug string) (*models.Event, error) {
	if id, err := uuid.Parse(idOrSlug); err == nil {
		return r.GetByID(ctx, id)
	}
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE slug = $1`, idOrSlug))
}

// List returns events, newest first. Archived events are included; the
// admin UI filters client-side.
func (r *Repository) List(ctx context.Context) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY starts_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Update writes the mutable fields of an event.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET slug = $2, name = $3, name_es = $4, starts_at = $5, ends_at = $6,
		status = $7, registration_mode = $8, allow_guests = $9, max_guests = $10,
		qualification_starts_at = $11, qualification_ends_at = $12,
		form_template_id = $13, market_code = $14, price_cents = $15, currency = $16, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, e.ID, e.Slug, e.Name, e.NameEs, e.StartsAt, e.EndsAt,
		e.Status, e.RegistrationMode, e.AllowGuests, e.MaxGuests,
		e.QualificationStartsAt, e.QualificationEndsAt,
		e.FormTemplateID, e.MarketCode, e.PriceCents, e.Currency).Scan(&e.UpdatedAt)
}

// UpdateFormFields replaces the registration-form definition.
func (r *Repository) UpdateFormFields(ctx context.Context, id uuid.UUID, fields json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `UPDATE events SET form_fields = $2, updated_at = NOW() WHERE id = $1`, id, fields)
	return err
}

// Archive marks an event archived. There is no un-archive.
func (r *Repository) Archive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, models.EventArchived)
	return err
}

// Stats aggregates registration, check-in and guest counts for an event.
func (r *Repository) Stats(ctx context.Context, id uuid.UUID) (*models.EventStats, error) {
	const q = `SELECT
		COUNT(r.id),
		COUNT(r.checked_in_at),
		COALESCE((SELECT COUNT(*) FROM guests g JOIN registrations r2 ON g.registration_id = r2.id WHERE r2.event_id = $1), 0)
		FROM registrations r WHERE r.event_id = $1`
	s := models.EventStats{EventID: id}
	if err := r.pool.QueryRow(ctx, q, id).Scan(&s.Registrations, &s.CheckedIn, &s.Guests); err != nil {
		return nil, err
	}
	return &s, nil
}
