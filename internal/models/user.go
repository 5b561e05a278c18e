package models

import (
	"time"

	"github.com/google/uuid"
)

// Role gates the admin API surface.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleEventManager Role = "event_manager"
	RoleMarketing    Role = "marketing"
	RoleReadonly     Role = "readonly"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEventManager, RoleMarketing, RoleReadonly:
		return true
	}
	return false
}

// AdminUser is a back-office user. Markets nil means global access; a non-nil
// list restricts visibility when market scoping is enabled.
type AdminUser struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	Markets   []string  `json:"markets,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
