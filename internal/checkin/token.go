package checkin

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const qrPrefix = "CHECKIN"

// QRPayload is the decoded contents of a badge QR code.
type QRPayload struct {
	EventID        uuid.UUID
	RegistrationID uuid.UUID
	Token          string
}

// BuildQRPayload encodes the literal QR string
// CHECKIN:<eventId>:<registrationId>:<token>.
func BuildQRPayload(eventID, registrationID uuid.UUID, token string) string {
	return fmt.Sprintf("%s:%s:%s:%s", qrPrefix, eventID, registrationID, token)
}

// ParseQRPayload decodes a QR string. Malformed payloads (wrong prefix,
// wrong segment count, bad IDs) yield nil rather than an error: a scanner
// pointed at an arbitrary barcode is an expected event, not a fault.
func ParseQRPayload(s string) *QRPayload {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] != qrPrefix {
		return nil
	}
	eventID, err := uuid.Parse(parts[1])
	if err != nil {
		return nil
	}
	registrationID, err := uuid.Parse(parts[2])
	if err != nil {
		return nil
	}
	if parts[3] == "" {
		return nil
	}
	return &QRPayload{
		EventID:        eventID,
		RegistrationID: registrationID,
		Token:          parts[3],
	}
}
