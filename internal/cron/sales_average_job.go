package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mavilaortega/caja-backend/pkg/db/models"
	"github.com/mavilaortega/caja-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultAverageWindowDays = 30

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SalesAverageJobParams configure the moving-average recompute.
type SalesAverageJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	WindowDays int
}

type soldQuantity struct {
	ProductID uuid.UUID
	TotalQty  int64
}

// NewSalesAverageJob builds the job that rebuilds product_sales_averages
// from the recent sale lines. The table is replaced wholesale inside one
// transaction so products that stopped selling lose their stale average.
func NewSalesAverageJob(params SalesAverageJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	windowDays := params.WindowDays
	if windowDays <= 0 {
		windowDays = defaultAverageWindowDays
	}
	return &salesAverageJob{
		logg:       params.Logger,
		db:         params.DB,
		windowDays: windowDays,
		now:        time.Now,
	}, nil
}

type salesAverageJob struct {
	logg       *logger.Logger
	db         txRunner
	windowDays int
	now        func() time.Time
}

func (j *salesAverageJob) Name() string { return "sales-average-recompute" }

func (j *salesAverageJob) Run(ctx context.Context) error {
	computedAt := j.now().UTC()
	cutoff := computedAt.Add(-time.Duration(j.windowDays) * 24 * time.Hour)

	var rebuilt int
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var sold []soldQuantity
		err := tx.Model(&models.SaleLine{}).
			Select("product_id", "SUM(qty) AS total_qty").
			Where("created_at >= ?", cutoff).
			Group("product_id").
			Scan(&sold).Error
		if err != nil {
			return fmt.Errorf("aggregate sale lines: %w", err)
		}

		if err := tx.Where("1 = 1").Delete(&models.ProductSalesAverage{}).Error; err != nil {
			return fmt.Errorf("clear averages: %w", err)
		}
		if len(sold) == 0 {
			return nil
		}

		days := decimal.NewFromInt(int64(j.windowDays))
		averages := make([]models.ProductSalesAverage, 0, len(sold))
		for _, row := range sold {
			averages = append(averages, models.ProductSalesAverage{
				ProductID:   row.ProductID,
				AvgDailyQty: decimal.NewFromInt(row.TotalQty).DivRound(days, 4),
				WindowDays:  j.windowDays,
				ComputedAt:  computedAt,
			})
		}
		if err := tx.Create(&averages).Error; err != nil {
			return fmt.Errorf("insert averages: %w", err)
		}
		rebuilt = len(averages)
		return nil
	})
	if err != nil {
		return fmt.Errorf("sales average recompute: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"window_days": j.windowDays,
		"cutoff":      cutoff,
		"products":    rebuilt,
	})
	j.logg.Info(logCtx, "sales averages rebuilt")
	return nil
}
