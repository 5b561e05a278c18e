package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus of a registration for paid events.
type PaymentStatus string

const (
	PaymentNone    PaymentStatus = "none"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Acknowledgment records a checkbox consent captured at submission time.
// The log is append-only: unchecking a box later never removes an entry.
type Acknowledgment struct {
	Field string    `json:"field"`
	IP    string    `json:"ip"`
	At    time.Time `json:"at"`
}

// Registration is one attendee's record for one event. Identity is
// (event_id, email) for verified modes; anonymous mode groups attendees by
// order_id + attendee_index instead.
type Registration struct {
	ID              uuid.UUID       `json:"id"`
	EventID         uuid.UUID       `json:"event_id"`
	Email           string          `json:"email"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	Phone           string          `json:"phone,omitempty"`
	UnicityID       *string         `json:"unicity_id,omitempty"`
	PassportNumber  string          `json:"passport_number,omitempty"`
	PassportCountry string          `json:"passport_country,omitempty"`
	Dietary         string          `json:"dietary,omitempty"`
	Locale          string          `json:"locale,omitempty"`
	FormData        json.RawMessage `json:"form_data,omitempty"`
	Acknowledgments json.RawMessage `json:"acknowledgments,omitempty"`
	VerifiedByHydra bool            `json:"verified_by_hydra"`
	OrderID         *string         `json:"order_id,omitempty"`
	AttendeeIndex   *int            `json:"attendee_index,omitempty"`
	CheckedInAt     *time.Time      `json:"checked_in_at,omitempty"`
	CheckedInBy     *string         `json:"checked_in_by,omitempty"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// FormDataMap decodes the free-form template-driven fields.
func (r *Registration) FormDataMap() map[string]any {
	if len(r.FormData) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(r.FormData, &m); err != nil {
		return nil
	}
	return m
}

// AcknowledgmentList decodes the consent audit trail.
func (r *Registration) AcknowledgmentList() []Acknowledgment {
	if len(r.Acknowledgments) == 0 {
		return nil
	}
	var list []Acknowledgment
	if err := json.Unmarshal(r.Acknowledgments, &list); err != nil {
		return nil
	}
	return list
}

// CheckInToken is the per-registration secret embedded in the badge QR code.
// One per registration; never reissued without re-registration.
type CheckInToken struct {
	ID             uuid.UUID `json:"id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	Token          string    `json:"token"`
	CreatedAt      time.Time `json:"created_at"`
}
