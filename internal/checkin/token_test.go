package checkin

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRPayloadRoundTrip(t *testing.T) {
	eventID := uuid.New()
	registrationID := uuid.New()
	token := "dGVzdC10b2tlbi12YWx1ZQ"

	payload := BuildQRPayload(eventID, registrationID, token)
	assert.Equal(t, "CHECKIN:"+eventID.String()+":"+registrationID.String()+":"+token, payload)

	decoded := ParseQRPayload(payload)
	require.NotNil(t, decoded)
	assert.Equal(t, eventID, decoded.EventID)
	assert.Equal(t, registrationID, decoded.RegistrationID)
	assert.Equal(t, token, decoded.Token)
}

func TestParseQRPayloadMalformed(t *testing.T) {
	eventID := uuid.New().String()
	registrationID := uuid.New().String()

	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"wrong prefix", "TICKET:" + eventID + ":" + registrationID + ":tok"},
		{"lowercase prefix", "checkin:" + eventID + ":" + registrationID + ":tok"},
		{"too few segments", "CHECKIN:" + eventID + ":tok"},
		{"too many segments", "CHECKIN:" + eventID + ":" + registrationID + ":tok:extra"},
		{"bad event id", "CHECKIN:not-a-uuid:" + registrationID + ":tok"},
		{"bad registration id", "CHECKIN:" + eventID + ":not-a-uuid:tok"},
		{"empty token", "CHECKIN:" + eventID + ":" + registrationID + ":"},
		{"random text", "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, ParseQRPayload(tt.payload))
		})
	}
}
