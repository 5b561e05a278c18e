package travel

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
)

// Repository handles flight and reimbursement persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a travel repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const flightColumns = `id, registration_id, direction, carrier, flight_number, airport, scheduled_at, created_at, updated_at`

func scanFlight(row pgx.Row) (*models.Flight, error) {
	var f models.Flight
	err := row.Scan(&f.ID, &f.RegistrationID, &f.Direction, &f.Carrier, &f.FlightNumber,
		&f.Airport, &f.ScheduledAt, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFlight adds a flight leg to a registration.
func (r *Repository) CreateFlight(ctx context.Context, f *models.Flight) error {
	const q = `INSERT INTO flights (registration_id, direction, carrier, flight_number, airport, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, f.RegistrationID, f.Direction, f.Carrier, f.FlightNumber,
		f.Airport, f.ScheduledAt).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
}

// GetFlight returns a flight, or nil.
func (r *Repository) GetFlight(ctx context.Context, id uuid.UUID) (*models.Flight, error) {
	return scanFlight(r.pool.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = $1`, id))
}

// ListFlights returns a registration's flights, arrivals first.
func (r *Repository) ListFlights(ctx context.Context, registrationID uuid.UUID) ([]models.Flight, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+flightColumns+` FROM flights WHERE registration_id = $1 ORDER BY direction, scheduled_at`,
		registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Flight
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *f)
	}
	return list, rows.Err()
}

// UpdateFlight writes a flight's editable fields.
func (r *Repository) UpdateFlight(ctx context.Context, f *models.Flight) error {
	const q = `UPDATE flights SET direction = $2, carrier = $3, flight_number = $4,
		airport = $5, scheduled_at = $6, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, f.ID, f.Direction, f.Carrier, f.FlightNumber,
		f.Airport, f.ScheduledAt).Scan(&f.UpdatedAt)
}

// DeleteFlight removes a flight.
func (r *Repository) DeleteFlight(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM flights WHERE id = $1`, id)
	return err
}

const reimbursementColumns = `id, registration_id, amount_cents, currency, description, status, created_at, updated_at`

func scanReimbursement(row pgx.Row) (*models.Reimbursement, error) {
	var m models.Reimbursement
	err := row.Scan(&m.ID, &m.RegistrationID, &m.AmountCents, &m.Currency, &m.Description,
		&m.Status, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateReimbursement files a travel-cost claim.
func (r *Repository) CreateReimbursement(ctx context.Context, m *models.Reimbursement) error {
	const q = `INSERT INTO reimbursements (registration_id, amount_cents, currency, description, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, m.RegistrationID, m.AmountCents, m.Currency, m.Description,
		m.Status).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// GetReimbursement returns a claim, or nil.
func (r *Repository) GetReimbursement(ctx context.Context, id uuid.UUID) (*models.Reimbursement, error) {
	return scanReimbursement(r.pool.QueryRow(ctx,
		`SELECT `+reimbursementColumns+` FROM reimbursements WHERE id = $1`, id))
}

// ListReimbursements returns a registration's claims.
func (r *Repository) ListReimbursements(ctx context.Context, registrationID uuid.UUID) ([]models.Reimbursement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reimbursementColumns+` FROM reimbursements WHERE registration_id = $1 ORDER BY created_at`,
		registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Reimbursement
	for rows.Next() {
		m, err := scanReimbursement(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// SetReimbursementStatus moves a claim through its review states.
func (r *Repository) SetReimbursementStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE reimbursements SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

// DeleteReimbursement removes a claim.
func (r *Repository) DeleteReimbursement(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM reimbursements WHERE id = $1`, id)
	return err
}
