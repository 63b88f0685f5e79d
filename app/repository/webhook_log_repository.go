package repository

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ManuelReschke/PixelMarket/app/models"
	"gorm.io/gorm"
)

// webhookLogRepository implements the WebhookLogRepository interface
type webhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a new webhook log repository instance
func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

// Create appends a log row. The status is forced to received.
func (r *webhookLogRepository) Create(entry *models.WebhookLog) error {
	entry.Status = models.WebhookStatusReceived
	return r.db.Create(entry).Error
}

// GetByID retrieves a log entry including its raw payload
func (r *webhookLogRepository) GetByID(id uint) (*models.WebhookLog, error) {
	var entry models.WebhookLog
	if err := r.db.First(&entry, id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// Annotate stores the normalized identifiers while the log is still received
func (r *webhookLogRepository) Annotate(id uint, a WebhookLogAnnotation) error {
	updates := map[string]interface{}{
		"event_type":     truncate(a.EventType, 100),
		"event_kind":     truncate(a.EventKind, 20),
		"email":          truncate(a.Email, 200),
		"transaction_id": truncate(a.TransactionID, 191),
	}
	return r.db.Model(&models.WebhookLog{}).
		Where("id = ? AND status = ?", id, models.WebhookStatusReceived).
		Updates(updates).Error
}

// Finish writes the terminal outcome. The update only matches a received
// row, so a log is finished at most once; the bool reports whether this
// call did it.
func (r *webhookLogRepository) Finish(id uint, o WebhookLogOutcome) (bool, error) {
	processedAt := o.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}
	updates := map[string]interface{}{
		"status":          o.Status,
		"error_kind":      o.ErrorKind,
		"error_message":   o.ErrorMessage,
		"duplicate_of_id": o.DuplicateOfID,
		"user_id":         o.UserID,
		"processed_at":    &processedAt,
	}
	tx := r.db.Model(&models.WebhookLog{}).
		Where("id = ? AND status = ?", id, models.WebhookStatusReceived).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// Recent returns the newest log entries without their payloads
func (r *webhookLogRepository) Recent(limit int) ([]models.WebhookLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []models.WebhookLog
	err := r.db.
		Omit("raw_payload", "signature", "headers").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// ListReceivedBefore returns the ids of logs still received that were
// created before cutoff, oldest first
func (r *webhookLogRepository) ListReceivedBefore(cutoff time.Time, limit int) ([]uint, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []uint
	err := r.db.Model(&models.WebhookLog{}).
		Where("status = ? AND created_at < ?", models.WebhookStatusReceived, cutoff).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// CountByProviderAndStatus aggregates log rows per source and status
func (r *webhookLogRepository) CountByProviderAndStatus() ([]WebhookLogCount, error) {
	var rows []WebhookLogCount
	err := r.db.Model(&models.WebhookLog{}).
		Select("source, status, COUNT(*) AS count").
		Group("source, status").
		Order("source, status").
		Scan(&rows).Error
	return rows, err
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
// Invalid bytes are dropped so the value fits a utf8mb4 column.
func truncate(s string, max int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
