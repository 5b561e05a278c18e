package scoping

import (
	"github.com/lumen-events/backend/config"
	"github.com/lumen-events/backend/internal/models"
)

// Checker decides whether an admin may see or modify a market-scoped
// resource. The flag is injected via config, never read from ambient state,
// so tests can vary it per case.
type Checker struct {
	cfg config.ScopingConfig
}

// NewChecker creates a market-scope checker.
func NewChecker(cfg config.ScopingConfig) *Checker {
	return &Checker{cfg: cfg}
}

// IsAllowed is a pure allow/deny predicate. It short-circuits to true when
// scoping is disabled, the resource carries no market code, or the user has
// a nil markets list (global access).
func (c *Checker) IsAllowed(user *models.AdminUser, resourceMarketCode *string) bool {
	if !c.cfg.MarketScopingEnabled {
		return true
	}
	if resourceMarketCode == nil || *resourceMarketCode == "" {
		return true
	}
	if user == nil || user.Markets == nil {
		return true
	}
	for _, m := range user.Markets {
		if m == *resourceMarketCode {
			return true
		}
	}
	return false
}
