package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventPrivate   EventStatus = "private"
	EventArchived  EventStatus = "archived"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventPublished, EventPrivate, EventArchived:
		return true
	}
	return false
}

// RegistrationMode controls whether qualification and/or OTP verification is
// required to register. It is the sole source of truth; the legacy boolean
// flags are derived, never stored.
type RegistrationMode string

const (
	ModeQualifiedVerified RegistrationMode = "qualified_verified"
	ModeOpenVerified      RegistrationMode = "open_verified"
	ModeOpenAnonymous     RegistrationMode = "open_anonymous"
)

// Valid reports whether m is a known registration mode.
func (m RegistrationMode) Valid() bool {
	switch m {
	case ModeQualifiedVerified, ModeOpenVerified, ModeOpenAnonymous:
		return true
	}
	return false
}

// RequiresQualification reports whether registrants must be pre-approved.
func (m RegistrationMode) RequiresQualification() bool { return m == ModeQualifiedVerified }

// RequiresVerification reports whether registrants must pass an OTP challenge.
func (m RegistrationMode) RequiresVerification() bool { return m != ModeOpenAnonymous }

// FormField is one admin-defined field in an event's registration form.
type FormField struct {
	Name     string `json:"name"`  // key for storing the response, e.g. "company"
	Label    string `json:"label"` // display label
	Type     string `json:"type"`  // "text", "phone", "tel", "checkbox", "select", ...
	Required bool   `json:"required"`
}

// Event is a registrable occasion.
type Event struct {
	ID                    uuid.UUID        `json:"id"`
	Slug                  *string          `json:"slug,omitempty"`
	Name                  string           `json:"name"`
	NameEs                string           `json:"name_es,omitempty"`
	StartsAt              time.Time        `json:"starts_at"`
	EndsAt                time.Time        `json:"ends_at"`
	Status                EventStatus      `json:"status"`
	RegistrationMode      RegistrationMode `json:"registration_mode"`
	AllowGuests           bool             `json:"allow_guests"`
	MaxGuests             int              `json:"max_guests"`
	QualificationStartsAt *time.Time       `json:"qualification_starts_at,omitempty"`
	QualificationEndsAt   *time.Time       `json:"qualification_ends_at,omitempty"`
	FormTemplateID        *uuid.UUID       `json:"form_template_id,omitempty"`
	FormFieldsRaw         json.RawMessage  `json:"form_fields,omitempty"`
	MarketCode            *string          `json:"market_code,omitempty"`
	PriceCents            int              `json:"price_cents"`
	Currency              string           `json:"currency,omitempty"`
	CreatedBy             uuid.UUID        `json:"created_by"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// Paid reports whether attendance requires payment.
func (e *Event) Paid() bool { return e.PriceCents > 0 }

// FormFields decodes the event's registration-form definition. A missing or
// malformed definition yields an empty slice.
func (e *Event) FormFields() []FormField {
	if len(e.FormFieldsRaw) == 0 {
		return nil
	}
	var fields []FormField
	if err := json.Unmarshal(e.FormFieldsRaw, &fields); err != nil {
		return nil
	}
	return fields
}

// EventStats aggregates registration counts for an event.
type EventStats struct {
	EventID       uuid.UUID `json:"event_id"`
	Registrations int       `json:"registrations"`
	CheckedIn     int       `json:"checked_in"`
	Guests        int       `json:"guests"`
}
