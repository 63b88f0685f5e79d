package entitlements

import (
	"strings"
	"time"

	"github.com/ManuelReschke/PixelMarket/app/models"
)

type Level string

const (
	LevelBaseline Level = models.ACCESS_BASELINE
	LevelPremium  Level = models.ACCESS_PREMIUM
	LevelDesigner Level = models.ACCESS_DESIGNER
	LevelSupport  Level = models.ACCESS_SUPPORT
	LevelAdmin    Level = models.ACCESS_ADMIN
)

// NormalizeLevel maps unknown values to baseline.
func NormalizeLevel(level string) Level {
	switch l := Level(strings.ToLower(strings.TrimSpace(level))); l {
	case LevelPremium, LevelDesigner, LevelSupport, LevelAdmin:
		return l
	default:
		return LevelBaseline
	}
}

// IsAdministrative reports whether level belongs to the team. Billing events
// never change such accounts.
func IsAdministrative(level string) bool {
	switch NormalizeLevel(level) {
	case LevelDesigner, LevelSupport, LevelAdmin:
		return true
	default:
		return false
	}
}

// HasPremiumAccess reports whether u may use premium assets at now.
func HasPremiumAccess(u *models.User, now time.Time) bool {
	if u == nil {
		return false
	}
	if IsAdministrative(u.AccessLevel) {
		return true
	}
	if NormalizeLevel(u.AccessLevel) != LevelPremium {
		return false
	}
	if u.LifetimeAccess {
		return true
	}
	return u.ExpirationDate != nil && u.ExpirationDate.After(now)
}
