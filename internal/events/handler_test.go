package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumen-events/backend/internal/models"
)

func TestStatusValid(t *testing.T) {
	for _, s := range []models.EventStatus{
		models.EventDraft, models.EventPublished, models.EventPrivate, models.EventArchived,
	} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, models.EventStatus("deleted").Valid())
	assert.False(t, models.EventStatus("").Valid())
}

func TestStatusChangeAllowed(t *testing.T) {
	assert.True(t, statusChangeAllowed(models.EventDraft, models.EventPublished))
	assert.True(t, statusChangeAllowed(models.EventPublished, models.EventArchived))
	assert.True(t, statusChangeAllowed(models.EventArchived, models.EventArchived))

	assert.False(t, statusChangeAllowed(models.EventArchived, models.EventPublished))
	assert.False(t, statusChangeAllowed(models.EventArchived, models.EventDraft))
	assert.False(t, statusChangeAllowed(models.EventArchived, models.EventPrivate))
}
