package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/PixelMarket/app/models"
)

const (
	monthlyPeriodDays = 30
	annualPeriodDays  = 365
)

func normalizePlanType(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case "monthly", "month", "mensal", "mensual":
		return models.PlanTypeMonthly
	case "annual", "yearly", "year", "anual":
		return models.PlanTypeAnnual
	case "lifetime", "vitalicio", "vitalício":
		return models.PlanTypeLifetime
	default:
		return ""
	}
}

// periodDays is the access length a paid period grants; 0 for lifetime.
func periodDays(plan string) int {
	switch normalizePlanType(plan) {
	case models.PlanTypeMonthly:
		return monthlyPeriodDays
	case models.PlanTypeAnnual:
		return annualPeriodDays
	default:
		return 0
	}
}

// expirationFor returns start plus the plan period, or nil for lifetime and
// unknown plans.
func expirationFor(plan string, start time.Time) *time.Time {
	days := periodDays(plan)
	if days == 0 {
		return nil
	}
	exp := start.AddDate(0, 0, days)
	return &exp
}
