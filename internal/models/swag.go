package models

import (
	"time"

	"github.com/google/uuid"
)

// SwagItem is distributable merchandise for an event.
type SwagItem struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	Name      string    `json:"name"`
	Size      string    `json:"size,omitempty"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SwagAssignment hands one item to one registration. RegistrationID is nulled
// (not deleted) when the registration is removed, preserving stock history.
type SwagAssignment struct {
	ID             uuid.UUID  `json:"id"`
	SwagItemID     uuid.UUID  `json:"swag_item_id"`
	RegistrationID *uuid.UUID `json:"registration_id,omitempty"`
	AssignedBy     string     `json:"assigned_by"`
	AssignedAt     time.Time  `json:"assigned_at"`
}
