package scoping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumen-events/backend/config"
	"github.com/lumen-events/backend/internal/models"
)

func strPtr(s string) *string { return &s }

func TestIsAllowed(t *testing.T) {
	scopedUser := &models.AdminUser{Markets: []string{"US", "MX"}}
	globalUser := &models.AdminUser{Markets: nil}

	tests := []struct {
		name    string
		enabled bool
		user    *models.AdminUser
		market  *string
		want    bool
	}{
		{"flag off always allows", false, scopedUser, strPtr("JP"), true},
		{"nil resource market allows", true, scopedUser, nil, true},
		{"empty resource market allows", true, scopedUser, strPtr(""), true},
		{"nil markets list means global access", true, globalUser, strPtr("JP"), true},
		{"nil user allows", true, nil, strPtr("JP"), true},
		{"member market allows", true, scopedUser, strPtr("MX"), true},
		{"non-member market denies", true, scopedUser, strPtr("JP"), false},
		{"empty markets list denies everything scoped", true, &models.AdminUser{Markets: []string{}}, strPtr("US"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(config.ScopingConfig{MarketScopingEnabled: tt.enabled})
			assert.Equal(t, tt.want, checker.IsAllowed(tt.user, tt.market))
		})
	}
}
