package badges

import (
	"strings"

	"github.com/lumen-events/backend/internal/models"
)

// RenderData holds the values substituted into a ZPL template.
type RenderData struct {
	FirstName string
	LastName  string
	EventName string
	QRPayload string
}

// RenderZPL fills a template's placeholders. Unknown placeholders are left
// untouched so a typo shows up on the printed badge instead of vanishing.
func RenderZPL(t *models.BadgeTemplate, data RenderData) string {
	r := strings.NewReplacer(
		"{{FirstName}}", sanitizeZPL(data.FirstName),
		"{{LastName}}", sanitizeZPL(data.LastName),
		"{{EventName}}", sanitizeZPL(data.EventName),
		"{{QRPayload}}", sanitizeZPL(data.QRPayload),
	)
	return r.Replace(t.ZPL)
}

// sanitizeZPL strips the ZPL control characters so attendee-supplied names
// cannot inject commands into the print stream.
func sanitizeZPL(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '^', '~':
			return -1
		}
		return r
	}, s)
}
