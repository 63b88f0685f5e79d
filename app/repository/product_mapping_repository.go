package repository

import (
	"github.com/ManuelReschke/PixelMarket/app/models"
	"gorm.io/gorm"
)

type productMappingRepository struct {
	db *gorm.DB
}

// NewProductMappingRepository creates a new product mapping repository
func NewProductMappingRepository(db *gorm.DB) ProductMappingRepository {
	return &productMappingRepository{db: db}
}

// Create stores a mapping
func (r *productMappingRepository) Create(mapping *models.ProductMapping) error {
	return r.db.Create(mapping).Error
}

// FindActive returns the active mapping of a provider product reference
func (r *productMappingRepository) FindActive(provider, providerProductID string) (*models.ProductMapping, error) {
	var m models.ProductMapping
	err := r.db.
		Where("provider = ? AND provider_product_id = ? AND is_active = ?", provider, providerProductID, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountActiveByProvider returns the number of active mappings per provider
func (r *productMappingRepository) CountActiveByProvider() (map[string]int64, error) {
	var rows []struct {
		Provider string
		Count    int64
	}
	err := r.db.Model(&models.ProductMapping{}).
		Select("provider, COUNT(*) AS count").
		Where("is_active = ?", true).
		Group("provider").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Provider] = row.Count
	}
	return counts, nil
}
