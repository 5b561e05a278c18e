package admin

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/utils"
)

// AttendeeSessionTTL is how long an attendee-portal bearer token lives.
const AttendeeSessionTTL = 24 * time.Hour

// Repository handles admin users, auth sessions and attendee sessions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an admin repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByEmail returns an admin user by email, or nil.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	const q = `SELECT id, email, full_name, role, markets, created_at, updated_at
		FROM admin_users WHERE LOWER(email) = LOWER($1)`
	var u models.AdminUser
	err := r.pool.QueryRow(ctx, q, email).
		Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.Markets, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns an admin user by ID, or nil.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	const q = `SELECT id, email, full_name, role, markets, created_at, updated_at
		FROM admin_users WHERE id = $1`
	var u models.AdminUser
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.Markets, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts an admin user.
func (r *Repository) Create(ctx context.Context, email, fullName string, role models.Role, markets []string) (*models.AdminUser, error) {
	const q = `INSERT INTO admin_users (email, full_name, role, markets)
		VALUES (LOWER($1), $2, $3, $4)
		RETURNING id, email, full_name, role, markets, created_at, updated_at`
	var u models.AdminUser
	err := r.pool.QueryRow(ctx, q, email, fullName, string(role), markets).
		Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.Markets, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns all admin users.
func (r *Repository) List(ctx context.Context) ([]models.AdminUser, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, full_name, role, markets, created_at, updated_at
		FROM admin_users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AdminUser
	for rows.Next() {
		var u models.AdminUser
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.Markets, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// CreateAuthSession persists a JWT's jti for revocation checks.
func (r *Repository) CreateAuthSession(ctx context.Context, jti, userID uuid.UUID, expiresAt time.Time) error {
	const q = `INSERT INTO auth_sessions (jti, user_id, expires_at) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, q, jti, userID, expiresAt)
	return err
}

// AuthSessionActive reports whether the jti still maps to an unexpired
// session. Logged-out tokens fail here even when the JWT itself is valid.
func (r *Repository) AuthSessionActive(ctx context.Context, jti uuid.UUID) (bool, error) {
	const q = `SELECT 1 FROM auth_sessions WHERE jti = $1 AND expires_at > NOW()`
	var one int
	err := r.pool.QueryRow(ctx, q, jti).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteAuthSession revokes a session (logout).
func (r *Repository) DeleteAuthSession(ctx context.Context, jti uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE jti = $1`, jti)
	return err
}

// CreateAttendeeSession issues an opaque attendee-portal bearer token.
func (r *Repository) CreateAttendeeSession(ctx context.Context, email string, eventID *uuid.UUID) (*models.AttendeeSession, error) {
	token, err := utils.RandomToken(32)
	if err != nil {
		return nil, err
	}
	const q = `INSERT INTO attendee_sessions (token, email, event_id, expires_at)
		VALUES ($1, LOWER($2), $3, $4)
		RETURNING token, email, event_id, expires_at, created_at`
	var s models.AttendeeSession
	err = r.pool.QueryRow(ctx, q, token, email, eventID, time.Now().Add(AttendeeSessionTTL)).
		Scan(&s.Token, &s.Email, &s.EventID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetAttendeeSession returns an unexpired attendee session, or nil.
func (r *Repository) GetAttendeeSession(ctx context.Context, token string) (*models.AttendeeSession, error) {
	const q = `SELECT token, email, event_id, expires_at, created_at
		FROM attendee_sessions WHERE token = $1 AND expires_at > NOW()`
	var s models.AttendeeSession
	err := r.pool.QueryRow(ctx, q, token).Scan(&s.Token, &s.Email, &s.EventID, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteAttendeeSession revokes an attendee session (logout).
func (r *Repository) DeleteAttendeeSession(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM attendee_sessions WHERE token = $1`, token)
	return err
}
