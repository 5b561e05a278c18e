package otp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
)

const sessionColumns = `id, email, purpose, validation_id, verified, verified_at,
	registration_event_id, verified_distributor_id, session_token, profile,
	redirect_token, redirect_token_expires_at, redirect_token_consumed, expires_at, created_at`

// Repository handles OTP session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an OTP session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSession(row pgx.Row) (*models.OtpSession, error) {
	var s models.OtpSession
	err := row.Scan(&s.ID, &s.Email, &s.Purpose, &s.ValidationID, &s.Verified, &s.VerifiedAt,
		&s.RegistrationEventID, &s.VerifiedDistributorID, &s.SessionToken, &s.Profile,
		&s.RedirectToken, &s.RedirectTokenExpires, &s.RedirectTokenConsumed, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new session. Prior pending sessions for the same email are
// left untouched; each request gets its own row.
func (r *Repository) Create(ctx context.Context, s *models.OtpSession) error {
	const q = `INSERT INTO otp_sessions
		(email, purpose, validation_id, registration_event_id, verified_distributor_id, session_token, profile, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, s.Email, s.Purpose, s.ValidationID,
		s.RegistrationEventID, s.VerifiedDistributorID, s.SessionToken, s.Profile, s.ExpiresAt).
		Scan(&s.ID, &s.CreatedAt)
}

// LatestPendingByEmail returns the most recent unexpired session for the
// email, verified or not (the caller distinguishes "already used").
func (r *Repository) LatestPendingByEmail(ctx context.Context, email string) (*models.OtpSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM otp_sessions
		WHERE LOWER(email) = LOWER($1) AND expires_at > NOW()
		ORDER BY created_at DESC LIMIT 1`
	return scanSession(r.pool.QueryRow(ctx, q, email))
}

// GetBySessionToken returns the unexpired session carrying the opaque token
// issued by the distributor-ID flow.
func (r *Repository) GetBySessionToken(ctx context.Context, token string) (*models.OtpSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM otp_sessions
		WHERE session_token = $1 AND expires_at > NOW()`
	return scanSession(r.pool.QueryRow(ctx, q, token))
}

// MarkVerified flips the session to verified atomically. Zero rows affected
// means another call won the race; the caller reports "already used".
func (r *Repository) MarkVerified(ctx context.Context, id uuid.UUID, profile json.RawMessage, redirectToken string, redirectExpires time.Time) (bool, error) {
	const q = `UPDATE otp_sessions
		SET verified = TRUE, verified_at = NOW(), profile = $2,
		    redirect_token = $3, redirect_token_expires_at = $4
		WHERE id = $1 AND verified = FALSE`
	tag, err := r.pool.Exec(ctx, q, id, profile, redirectToken, redirectExpires)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetByRedirectToken returns the session carrying the redirect token.
func (r *Repository) GetByRedirectToken(ctx context.Context, token string) (*models.OtpSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM otp_sessions WHERE redirect_token = $1`
	return scanSession(r.pool.QueryRow(ctx, q, token))
}

// ConsumeRedirectToken marks the redirect token used, atomically. Zero rows
// affected means it was already consumed.
func (r *Repository) ConsumeRedirectToken(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `UPDATE otp_sessions SET redirect_token_consumed = TRUE
		WHERE id = $1 AND redirect_token_consumed = FALSE`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// LatestVerifiedForEvent returns the most recent session for the email that
// is verified and bound to the event. The caller still applies the 30-minute
// window check.
func (r *Repository) LatestVerifiedForEvent(ctx context.Context, email string, eventID uuid.UUID) (*models.OtpSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM otp_sessions
		WHERE LOWER(email) = LOWER($1) AND registration_event_id = $2 AND verified = TRUE
		ORDER BY verified_at DESC LIMIT 1`
	return scanSession(r.pool.QueryRow(ctx, q, email, eventID))
}
