package models

import (
	"time"

	"github.com/google/uuid"
)

// Flight is travel information attached to a registration.
type Flight struct {
	ID             uuid.UUID  `json:"id"`
	RegistrationID uuid.UUID  `json:"registration_id"`
	Direction      string     `json:"direction"` // "arrival" or "departure"
	Carrier        string     `json:"carrier"`
	FlightNumber   string     `json:"flight_number"`
	Airport        string     `json:"airport,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Reimbursement is a travel-cost claim attached to a registration.
type Reimbursement struct {
	ID             uuid.UUID `json:"id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	AmountCents    int       `json:"amount_cents"`
	Currency       string    `json:"currency"`
	Description    string    `json:"description,omitempty"`
	Status         string    `json:"status"` // "submitted", "approved", "rejected", "paid"
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
