package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is the canonical catalog listing sold at the register.
// The postgres schema comes from the goose migrations; type tags here are
// kept portable so sqlite-backed tests can AutoMigrate the model (tags is
// text[] in postgres, stored through the pq array literal either way).
type Product struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	SKU            string         `gorm:"column:sku;not null;uniqueIndex"`
	Name           string         `gorm:"column:name;not null"`
	Tags           pq.StringArray `gorm:"column:tags;type:text"`
	UnitPriceCents int            `gorm:"column:unit_price_cents;not null"`
	StockQty       int            `gorm:"column:stock_qty;not null;default:0"`
	IsActive       bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
