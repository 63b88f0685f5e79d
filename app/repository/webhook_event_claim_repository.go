package repository

import (
	"github.com/ManuelReschke/PixelMarket/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookEventClaimRepository struct {
	db *gorm.DB
}

// NewWebhookEventClaimRepository creates a new claim repository instance
func NewWebhookEventClaimRepository(db *gorm.DB) WebhookEventClaimRepository {
	return &webhookEventClaimRepository{db: db}
}

// Claim inserts the dedup key unless it already exists. It returns whether
// this call won the key and the stored claim, which names the log that holds it.
func (r *webhookEventClaimRepository) Claim(claim *models.WebhookEventClaim) (bool, *models.WebhookEventClaim, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source"},
			{Name: "transaction_id"},
			{Name: "event_kind"},
		},
		DoNothing: true,
	}).Create(claim)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEventClaim
	// Locking read: see the holder committed by a concurrent transaction
	if err := r.db.Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).Where("source = ? AND transaction_id = ? AND event_kind = ?", claim.Source, claim.TransactionID, claim.EventKind).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}
