package models

import "time"

// WebhookEventClaim holds the dedup key of an applied event. The unique index
// makes the claim insert the single point where concurrent redeliveries race.
type WebhookEventClaim struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Source        string    `gorm:"type:varchar(20);not null;index:ux_webhook_event_claims_key,unique,priority:1" json:"source"`
	TransactionID string    `gorm:"type:varchar(191);not null;index:ux_webhook_event_claims_key,unique,priority:2" json:"transaction_id"`
	EventKind     string    `gorm:"type:varchar(20);not null;index:ux_webhook_event_claims_key,unique,priority:3" json:"event_kind"`
	WebhookLogID  uint      `gorm:"not null;index" json:"webhook_log_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
