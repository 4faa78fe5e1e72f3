package restock

import (
	"context"
	"errors"

	"github.com/mavilaortega/caja-backend/pkg/db/models"
	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/mavilaortega/caja-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Advisor derives per-product minimum-stock thresholds from sales history and
// flags products whose post-sale stock has fallen to or below the floor. It
// runs strictly after a successful commit and never blocks one.
type Advisor interface {
	ThresholdFor(ctx context.Context, productID uuid.UUID) decimal.Decimal
	ShouldAlert(ctx context.Context, productID uuid.UUID, postCommitStock int) bool
}

type advisor struct {
	db               *gorm.DB
	logg             *logger.Logger
	defaultThreshold decimal.Decimal
}

func NewAdvisor(db *gorm.DB, logg *logger.Logger, defaultThreshold int) (Advisor, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "restock advisor requires a database handle")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "restock advisor requires a logger")
	}
	if defaultThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "default restock threshold cannot be negative")
	}
	return &advisor{
		db:               db,
		logg:             logg,
		defaultThreshold: decimal.NewFromInt(int64(defaultThreshold)),
	}, nil
}

// ThresholdFor returns the product's daily sales average as its stock floor.
// Products with no history, and any read failure, fall back to the default
// threshold; an advisory lookup must never surface an error into the sale
// response.
func (a *advisor) ThresholdFor(ctx context.Context, productID uuid.UUID) decimal.Decimal {
	if productID == uuid.Nil {
		return a.defaultThreshold
	}

	var avg models.ProductSalesAverage
	err := a.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&avg).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			a.logg.Warn(ctx, "restock threshold lookup failed, using default: "+err.Error())
		}
		return a.defaultThreshold
	}
	if avg.AvgDailyQty.LessThanOrEqual(decimal.Zero) {
		return a.defaultThreshold
	}
	return avg.AvgDailyQty
}

func (a *advisor) ShouldAlert(ctx context.Context, productID uuid.UUID, postCommitStock int) bool {
	threshold := a.ThresholdFor(ctx, productID)
	return decimal.NewFromInt(int64(postCommitStock)).LessThanOrEqual(threshold)
}
