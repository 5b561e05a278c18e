package models

import (
	"time"

	"github.com/google/uuid"
)

// Guest is a companion attached to a registration.
type Guest struct {
	ID             uuid.UUID `json:"id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Dietary        string    `json:"dietary,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
