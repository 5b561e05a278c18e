package models

import (
	"time"

	"github.com/google/uuid"
)

// QualifiedRegistrant is a pre-approval record scoping one event to one
// email/unicity-ID pair. Created one at a time or via CSV bulk import;
// unicity-ID uniqueness within an event is enforced at the application level.
type QualifiedRegistrant struct {
	ID             uuid.UUID `json:"id"`
	EventID        uuid.UUID `json:"event_id"`
	Email          string    `json:"email"`
	UnicityID      *string   `json:"unicity_id,omitempty"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Phone          string    `json:"phone,omitempty"`
	Locale         string    `json:"locale,omitempty"`
	GuestAllowance *int      `json:"guest_allowance,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
