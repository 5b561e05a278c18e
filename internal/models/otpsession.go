package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OtpPurpose tags what an OTP session is for. Keeping the purpose typed (not
// a flag buried in free-form data) makes invalid combinations unrepresentable.
type OtpPurpose string

const (
	PurposeAdminLogin        OtpPurpose = "admin_login"
	PurposeRegistration      OtpPurpose = "registration"
	PurposeAttendeePortal    OtpPurpose = "attendee_portal"
	PurposeDistributorLookup OtpPurpose = "distributor_lookup"
)

// VerifiedSessionWindow is how long a verified OTP session authorizes writes.
// Authorization checks must test this window, never the bare verified flag.
const VerifiedSessionWindow = 30 * time.Minute

// RedirectTokenTTL is the lifetime of the single-use redirect token issued on
// successful validation.
const RedirectTokenTTL = 10 * time.Minute

// OtpProfile is the identity data learned during verification.
type OtpProfile struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	UnicityID string `json:"unicity_id,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

// OtpSession is one short-lived verification attempt keyed by email.
type OtpSession struct {
	ID                    uuid.UUID       `json:"id"`
	Email                 string          `json:"email"`
	Purpose               OtpPurpose      `json:"purpose"`
	ValidationID          string          `json:"validation_id"`
	Verified              bool            `json:"verified"`
	VerifiedAt            *time.Time      `json:"verified_at,omitempty"`
	RegistrationEventID   *uuid.UUID      `json:"registration_event_id,omitempty"`
	VerifiedDistributorID *string         `json:"verified_distributor_id,omitempty"`
	SessionToken          *string         `json:"-"` // distributor-ID variant; never echoed with the email
	Profile               json.RawMessage `json:"profile,omitempty"`
	RedirectToken         *string         `json:"-"`
	RedirectTokenExpires  *time.Time      `json:"-"`
	RedirectTokenConsumed bool            `json:"-"`
	ExpiresAt             time.Time       `json:"expires_at"`
	CreatedAt             time.Time       `json:"created_at"`
}

// VerifiedWithin reports whether the session was verified inside the given
// window as of now.
func (s *OtpSession) VerifiedWithin(window time.Duration, now time.Time) bool {
	return s.Verified && s.VerifiedAt != nil && now.Sub(*s.VerifiedAt) <= window
}

// ProfileData decodes the stored profile. Returns the zero value on absence
// or malformed data.
func (s *OtpSession) ProfileData() OtpProfile {
	var p OtpProfile
	if len(s.Profile) > 0 {
		_ = json.Unmarshal(s.Profile, &p)
	}
	return p
}
