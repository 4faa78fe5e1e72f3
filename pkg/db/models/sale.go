package models

import (
	"time"

	"github.com/google/uuid"
)

// SaleHeader records one committed sale. Created atomically with its lines
// and the matching stock decrements; immutable after commit.
type SaleHeader struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	SoldAt     time.Time  `gorm:"column:sold_at;not null"`
	TotalCents int64      `gorm:"column:total_cents;not null"`
	Lines      []SaleLine `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// SaleLine is one product entry of a committed sale.
type SaleLine struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SaleID         uuid.UUID `gorm:"column:sale_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Name           string    `gorm:"column:name;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	SubtotalCents  int64     `gorm:"column:subtotal_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
