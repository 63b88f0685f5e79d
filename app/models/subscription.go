package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PlanTypeMonthly  = "monthly"
	PlanTypeAnnual   = "annual"
	PlanTypeLifetime = "lifetime"
)

// Subscription is the append-only history of applied approvals and renewals.
type Subscription struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	Source         string         `gorm:"type:varchar(20);not null;index" json:"source"`
	TransactionID  string         `gorm:"type:varchar(191);not null;index" json:"transaction_id"`
	EventKind      string         `gorm:"type:varchar(20);not null" json:"event_kind"`
	PlanType       string         `gorm:"type:varchar(20);not null" json:"plan_type"`
	StartDate      *time.Time     `gorm:"type:timestamp;default:null" json:"start_date,omitempty"`
	ExpirationDate *time.Time     `gorm:"type:timestamp;default:null" json:"expiration_date,omitempty"`
	LifetimeAccess bool           `gorm:"default:false" json:"lifetime_access"`
	WebhookLogID   uint           `gorm:"not null;index" json:"webhook_log_id"`
	EventSnapshot  datatypes.JSON `json:"event_snapshot"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
