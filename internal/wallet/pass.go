package wallet

import (
	"encoding/json"
	"time"

	"github.com/lumen-events/backend/internal/models"
)

// PassDefinition is the pass.json content sent to the signer service. Field
// names follow the PKPass format.
type PassDefinition struct {
	FormatVersion      int        `json:"formatVersion"`
	PassTypeIdentifier string     `json:"passTypeIdentifier"`
	TeamIdentifier     string     `json:"teamIdentifier"`
	OrganizationName   string     `json:"organizationName"`
	SerialNumber       string     `json:"serialNumber"`
	Description        string     `json:"description"`
	RelevantDate       string     `json:"relevantDate,omitempty"`
	Barcodes           []Barcode  `json:"barcodes"`
	EventTicket        TicketInfo `json:"eventTicket"`
}

// Barcode is the scannable code on the pass.
type Barcode struct {
	Format          string `json:"format"`
	Message         string `json:"message"`
	MessageEncoding string `json:"messageEncoding"`
}

// TicketInfo carries the visible fields.
type TicketInfo struct {
	PrimaryFields   []Field `json:"primaryFields"`
	SecondaryFields []Field `json:"secondaryFields"`
}

// Field is one label/value pair on the pass face.
type Field struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// BuildPass assembles the pass definition for one registration. The QR
// message is the same payload printed on the badge, so either surface scans
// at the door.
func BuildPass(event *models.Event, reg *models.Registration, qrPayload, passTypeID, teamID, orgName string) *PassDefinition {
	p := &PassDefinition{
		FormatVersion:      1,
		PassTypeIdentifier: passTypeID,
		TeamIdentifier:     teamID,
		OrganizationName:   orgName,
		SerialNumber:       reg.ID.String(),
		Description:        event.Name,
		Barcodes: []Barcode{{
			Format:          "PKBarcodeFormatQR",
			Message:         qrPayload,
			MessageEncoding: "iso-8859-1",
		}},
		EventTicket: TicketInfo{
			PrimaryFields: []Field{
				{Key: "event", Label: "EVENT", Value: event.Name},
			},
			SecondaryFields: []Field{
				{Key: "attendee", Label: "ATTENDEE", Value: reg.FirstName + " " + reg.LastName},
			},
		},
	}
	if !event.StartsAt.IsZero() {
		p.RelevantDate = event.StartsAt.Format(time.RFC3339)
	}
	return p
}

// Encode marshals the definition for the signer request.
func (p *PassDefinition) Encode() ([]byte, error) {
	return json.Marshal(p)
}
