package models

import "time"

// ProductMapping maps a provider product/price/plan reference to an internal
// plan type. Maintained by the admin panel; read-only for the webhook engine.
type ProductMapping struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Provider          string    `gorm:"type:varchar(20);not null;index:ux_product_mappings_ref,unique,priority:1" json:"provider"`
	ProviderProductID string    `gorm:"type:varchar(191);not null;index:ux_product_mappings_ref,unique,priority:2" json:"provider_product_id"`
	PlanType          string    `gorm:"type:varchar(20);not null" json:"plan_type"`
	Description       string    `gorm:"type:varchar(255);default:null" json:"description"`
	IsActive          bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsLifetime reports whether the mapped plan grants lifetime access.
func (m *ProductMapping) IsLifetime() bool {
	return m.PlanType == PlanTypeLifetime
}
