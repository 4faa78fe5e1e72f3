package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductSalesAverage holds the per-product daily moving average of sold
// quantity. Recomputed by the cron worker, read by the catalog cache and the
// restock advisor.
type ProductSalesAverage struct {
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;primaryKey"`
	AvgDailyQty decimal.Decimal `gorm:"column:avg_daily_qty;type:numeric(12,4);not null"`
	WindowDays  int             `gorm:"column:window_days;not null"`
	ComputedAt  time.Time       `gorm:"column:computed_at;not null"`
}
