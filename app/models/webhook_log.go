package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	WebhookSourceHotmart = "hotmart"
	WebhookSourceKiwify  = "kiwify"
	WebhookSourceStripe  = "stripe"
)

const (
	WebhookStatusReceived  = "received"
	WebhookStatusProcessed = "processed"
	WebhookStatusSkipped   = "skipped"
	WebhookStatusError     = "error"
)

// WebhookLog is the append-only audit record of one webhook delivery. Only the
// outcome columns change, once, when the status leaves "received".
type WebhookLog struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Source        string         `gorm:"type:varchar(20);not null;index:idx_webhook_logs_source_status,priority:1;index:idx_webhook_logs_dedup,priority:1" json:"source"`
	EventType     string         `gorm:"type:varchar(100);not null;default:''" json:"event_type"`
	EventKind     string         `gorm:"type:varchar(20);not null;default:'';index:idx_webhook_logs_dedup,priority:3" json:"event_kind"`
	RawPayload    []byte         `gorm:"type:longblob;not null" json:"raw_payload"`
	Signature     string         `gorm:"type:varchar(512);not null;default:''" json:"-"`
	Headers       datatypes.JSON `json:"headers"`
	Status        string         `gorm:"type:varchar(20);not null;default:'received';index:idx_webhook_logs_source_status,priority:2" json:"status"`
	Email         string         `gorm:"type:varchar(200);not null;default:'';index" json:"email"`
	TransactionID string         `gorm:"type:varchar(191);not null;default:'';index:idx_webhook_logs_dedup,priority:2" json:"transaction_id"`
	ErrorMessage  string         `gorm:"type:text" json:"error_message"`
	ErrorKind     string         `gorm:"type:varchar(50);not null;default:''" json:"error_kind"`
	DuplicateOfID *uint          `gorm:"default:null" json:"duplicate_of_id,omitempty"`
	UserID        *uint          `gorm:"default:null;index" json:"user_id,omitempty"`
	SourceIP      string         `gorm:"type:varchar(45);not null;default:''" json:"source_ip"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	ProcessedAt   *time.Time     `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
}

// IsTerminal reports whether the log already carries its final outcome.
func (l *WebhookLog) IsTerminal() bool {
	return l.Status != WebhookStatusReceived
}
