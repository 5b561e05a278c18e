package badges

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumen-events/backend/internal/models"
)

func TestRenderZPLSubstitutesPlaceholders(t *testing.T) {
	tpl := &models.BadgeTemplate{
		ZPL: "^XA^FO50,50^FD{{FirstName}} {{LastName}}^FS^FO50,100^FD{{EventName}}^FS^FO50,150^BQN,2,5^FDQA,{{QRPayload}}^FS^XZ",
	}
	out := RenderZPL(tpl, RenderData{
		FirstName: "Ada",
		LastName:  "Lovelace",
		EventName: "Summit",
		QRPayload: "CHECKIN:a:b:c",
	})
	assert.Contains(t, out, "^FDAda Lovelace^FS")
	assert.Contains(t, out, "^FDSummit^FS")
	assert.Contains(t, out, "QA,CHECKIN:a:b:c")
	assert.NotContains(t, out, "{{")
}

func TestRenderZPLStripsControlCharacters(t *testing.T) {
	tpl := &models.BadgeTemplate{ZPL: "^XA^FD{{FirstName}}^FS^XZ"}
	out := RenderZPL(tpl, RenderData{FirstName: "Eve^XZ~JR"})
	assert.Equal(t, "^XA^FDEveXZJR^FS^XZ", out)
}

func TestRenderZPLLeavesUnknownPlaceholders(t *testing.T) {
	tpl := &models.BadgeTemplate{ZPL: "^FD{{Company}}^FS"}
	out := RenderZPL(tpl, RenderData{FirstName: "Ada"})
	assert.Equal(t, "^FD{{Company}}^FS", out)
}
