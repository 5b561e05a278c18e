package models

import (
	"time"

	"github.com/google/uuid"
)

// BadgeTemplate is a named ZPL layout for badge printing. The body may carry
// {{FirstName}}, {{LastName}}, {{EventName}} and {{QRPayload}} placeholders.
type BadgeTemplate struct {
	ID        uuid.UUID  `json:"id"`
	EventID   *uuid.UUID `json:"event_id,omitempty"` // nil = shared template
	Name      string     `json:"name"`
	ZPL       string     `json:"zpl"`
	AssetKey  *string    `json:"asset_key,omitempty"` // S3 key of an uploaded logo asset
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Printer is a network badge printer reachable through the printer bridge.
type Printer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"` // host:port as known to the bridge
	EventID   *uuid.UUID `json:"event_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrintLog records one badge print attempt.
type PrintLog struct {
	ID             uuid.UUID  `json:"id"`
	PrinterID      uuid.UUID  `json:"printer_id"`
	RegistrationID *uuid.UUID `json:"registration_id,omitempty"`
	TemplateID     *uuid.UUID `json:"template_id,omitempty"`
	Status         string     `json:"status"` // "sent" or "failed"
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
