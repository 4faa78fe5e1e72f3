package catalog

import (
	"context"

	"github.com/mavilaortega/caja-backend/pkg/db/models"
	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductView is the display-oriented copy of a product held by a snapshot.
// Stock here is the value at capture time and must never drive a commit
// decision.
type ProductView struct {
	ID             uuid.UUID      `json:"id"`
	SKU            string         `json:"sku"`
	Name           string         `json:"name"`
	Tags           pq.StringArray `json:"tags"`
	UnitPriceCents int            `json:"unitPriceCents"`
	StockQty       int            `json:"stockQty"`
}

// Reader supplies the two independent reads a refresh is assembled from.
type Reader interface {
	ListProducts(ctx context.Context) ([]ProductView, error)
	SalesAverages(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error)
}

type gormReader struct {
	db *gorm.DB
}

func NewReader(db *gorm.DB) (Reader, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog reader requires a database handle")
	}
	return &gormReader{db: db}, nil
}

func (r *gormReader) ListProducts(ctx context.Context) ([]ProductView, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list products")
	}

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{
			ID:             p.ID,
			SKU:            p.SKU,
			Name:           p.Name,
			Tags:           p.Tags,
			UnitPriceCents: p.UnitPriceCents,
			StockQty:       p.StockQty,
		})
	}
	return views, nil
}

func (r *gormReader) SalesAverages(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []models.ProductSalesAverage
	err := r.db.WithContext(ctx).Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load sales averages")
	}

	averages := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		averages[row.ProductID] = row.AvgDailyQty
	}
	return averages, nil
}
