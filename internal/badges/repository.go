package badges

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
)

// Repository handles badge templates, printers and print logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a badges repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTemplate adds a ZPL layout.
func (r *Repository) CreateTemplate(ctx context.Context, t *models.BadgeTemplate) error {
	const q = `INSERT INTO badge_templates (event_id, name, zpl, asset_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.EventID, t.Name, t.ZPL, t.AssetKey).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetTemplate returns a template, or nil.
func (r *Repository) GetTemplate(ctx context.Context, id uuid.UUID) (*models.BadgeTemplate, error) {
	const q = `SELECT id, event_id, name, zpl, asset_key, created_at, updated_at
		FROM badge_templates WHERE id = $1`
	var t models.BadgeTemplate
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&t.ID, &t.EventID, &t.Name, &t.ZPL, &t.AssetKey, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplates returns templates usable for the event: event-bound plus
// shared ones.
func (r *Repository) ListTemplates(ctx context.Context, eventID uuid.UUID) ([]models.BadgeTemplate, error) {
	const q = `SELECT id, event_id, name, zpl, asset_key, created_at, updated_at
		FROM badge_templates WHERE event_id = $1 OR event_id IS NULL ORDER BY name`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.BadgeTemplate
	for rows.Next() {
		var t models.BadgeTemplate
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name, &t.ZPL, &t.AssetKey,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// UpdateTemplate writes a template's editable fields.
func (r *Repository) UpdateTemplate(ctx context.Context, t *models.BadgeTemplate) error {
	const q = `UPDATE badge_templates SET name = $2, zpl = $3, asset_key = $4, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, t.ID, t.Name, t.ZPL, t.AssetKey).Scan(&t.UpdatedAt)
}

// DeleteTemplate removes a template. Print logs keep their rows with the
// reference nulled.
func (r *Repository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM badge_templates WHERE id = $1`, id)
	return err
}

// CreatePrinter registers a printer with the bridge address.
func (r *Repository) CreatePrinter(ctx context.Context, p *models.Printer) error {
	const q = `INSERT INTO printers (name, address, event_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.Name, p.Address, p.EventID).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetPrinter returns a printer, or nil.
func (r *Repository) GetPrinter(ctx context.Context, id uuid.UUID) (*models.Printer, error) {
	const q = `SELECT id, name, address, event_id, created_at, updated_at FROM printers WHERE id = $1`
	var p models.Printer
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&p.ID, &p.Name, &p.Address, &p.EventID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPrinters returns all registered printers.
func (r *Repository) ListPrinters(ctx context.Context) ([]models.Printer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, address, event_id, created_at, updated_at FROM printers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Printer
	for rows.Next() {
		var p models.Printer
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.EventID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// DeletePrinter removes a printer and its log history.
func (r *Repository) DeletePrinter(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM printers WHERE id = $1`, id)
	return err
}

// LogPrint records one print attempt, success or failure.
func (r *Repository) LogPrint(ctx context.Context, l *models.PrintLog) error {
	const q = `INSERT INTO print_logs (printer_id, registration_id, template_id, status, error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, l.PrinterID, l.RegistrationID, l.TemplateID, l.Status, l.Error).
		Scan(&l.ID, &l.CreatedAt)
}

// ListPrintLogs returns a printer's recent attempts, newest first.
func (r *Repository) ListPrintLogs(ctx context.Context, printerID uuid.UUID, limit int) ([]models.PrintLog, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, printer_id, registration_id, template_id, status, error, created_at
		FROM print_logs WHERE printer_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, printerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PrintLog
	for rows.Next() {
		var l models.PrintLog
		if err := rows.Scan(&l.ID, &l.PrinterID, &l.RegistrationID, &l.TemplateID,
			&l.Status, &l.Error, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
