package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/mavilaortega/caja-backend/pkg/db/models"
	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Gate answers "can we sell this quantity right now" against the
// authoritative store. It deliberately bypasses the catalog snapshot: the
// snapshot's refresh interval is coarser than the gap between display and
// checkout and could overpromise.
type Gate interface {
	Verify(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
}

type gate struct {
	db *gorm.DB
}

// NewGate builds a stock gate backed by the provided GORM DB.
func NewGate(db *gorm.DB) (Gate, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &gate{db: db}, nil
}

// Verify issues a fresh read of the persisted stock and reports whether the
// requested quantity is coverable. Equality passes. A read failure fails
// closed: the stock is treated as insufficient and the error is surfaced.
func (g *gate) Verify(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	if productID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
	}

	var product models.Product
	err := g.db.WithContext(ctx).
		Select("id", "stock_qty", "is_active").
		First(&product, "id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read product stock")
	}
	if !product.IsActive {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "product is not available")
	}

	return qty <= product.StockQty, nil
}
