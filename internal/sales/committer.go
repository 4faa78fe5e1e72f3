package sales

import (
	"context"
	"errors"
	"time"

	"github.com/mavilaortega/caja-backend/internal/cart"
	"github.com/mavilaortega/caja-backend/pkg/db/models"
	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/mavilaortega/caja-backend/pkg/logger"
	"github.com/mavilaortega/caja-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TxRunner executes a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Refresher is notified after a committed sale so displayed stock catches up.
type Refresher interface {
	MarkStale()
}

// CommitResult carries the persisted sale and the stock each product was left
// with, read inside the same transaction.
type CommitResult struct {
	Sale            *models.SaleHeader
	PostCommitStock map[uuid.UUID]int
}

// Committer persists a finalized cart as one atomic unit of work: stock
// decrements, sale header, sale lines. It never retries on its own; a failed
// commit leaves the cart untouched and the retry decision with the caller.
type Committer struct {
	runner    TxRunner
	refresher Refresher
	logg      *logger.Logger
	metrics   *metrics.SaleMetrics
	now       func() time.Time

	// afterHeaderInsert injects failures in tests to exercise rollback.
	afterHeaderInsert func(tx *gorm.DB) error
}

func NewCommitter(runner TxRunner, refresher Refresher, logg *logger.Logger, m *metrics.SaleMetrics) (*Committer, error) {
	if runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "committer requires a transaction runner")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "committer requires a logger")
	}
	return &Committer{
		runner:    runner,
		refresher: refresher,
		logg:      logg,
		metrics:   m,
		now:       time.Now,
	}, nil
}

// Commit writes the sale and marks the catalog stale on success; on any
// failure everything rolls back. The cart itself is never mutated here: the
// owning checkout clears it under its own lock once the commit is reported.
func (c *Committer) Commit(ctx context.Context, crt *cart.Cart) (*CommitResult, error) {
	if crt == nil || crt.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot commit an empty cart")
	}

	started := c.now()
	lines := crt.Lines()

	var (
		header    models.SaleHeader
		postStock map[uuid.UUID]int
	)
	err := c.runner.WithTx(ctx, func(tx *gorm.DB) error {
		for _, line := range lines {
			if err := c.decrementStock(tx, line); err != nil {
				return err
			}
		}

		header = models.SaleHeader{
			ID:         uuid.New(),
			SoldAt:     c.now().UTC(),
			TotalCents: crt.TotalCents(),
		}
		if err := tx.Create(&header).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to insert sale header")
		}

		if c.afterHeaderInsert != nil {
			if err := c.afterHeaderInsert(tx); err != nil {
				return err
			}
		}

		saleLines := make([]models.SaleLine, 0, len(lines))
		for _, line := range lines {
			saleLines = append(saleLines, models.SaleLine{
				ID:             uuid.New(),
				SaleID:         header.ID,
				ProductID:      line.ProductID,
				Name:           line.Name,
				UnitPriceCents: line.UnitPriceCents,
				Qty:            line.Qty,
				SubtotalCents:  line.SubtotalCents(),
			})
		}
		if err := tx.Create(&saleLines).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to insert sale lines")
		}
		header.Lines = saleLines

		var err error
		postStock, err = c.readPostCommitStock(tx, lines)
		return err
	})
	if err != nil {
		code := string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			code = string(typed.Code())
		}
		c.metrics.ObserveCommit("failure", c.now().Sub(started))
		c.metrics.IncFailed(code)
		return nil, err
	}

	if c.refresher != nil {
		c.refresher.MarkStale()
	}

	c.metrics.ObserveCommit("success", c.now().Sub(started))
	c.metrics.IncCommitted()
	c.logg.Info(c.logg.WithSaleID(ctx, header.ID.String()), "sale committed")

	return &CommitResult{
		Sale:            &header,
		PostCommitStock: postStock,
	}, nil
}

// decrementStock applies one line's conditional decrement. The stock_qty
// guard closes the race with concurrent sales: the row only changes when
// enough stock is still there.
func (c *Committer) decrementStock(tx *gorm.DB, line cart.LineItem) error {
	res := tx.Model(&models.Product{}).
		Where("id = ? AND is_active = ? AND stock_qty >= ?", line.ProductID, true, line.Qty).
		UpdateColumn("stock_qty", gorm.Expr("stock_qty - ?", line.Qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "failed to decrement stock")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Zero rows: distinguish a vanished product from a stock shortfall.
	var product models.Product
	err := tx.Select("id", "stock_qty", "is_active").
		Where("id = ?", line.ProductID).
		First(&product).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "product no longer exists").
			WithDetails(map[string]any{"productId": line.ProductID})
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to re-read product stock")
	case !product.IsActive:
		return pkgerrors.New(pkgerrors.CodeNotFound, "product is no longer active").
			WithDetails(map[string]any{"productId": line.ProductID})
	default:
		return pkgerrors.New(pkgerrors.CodeStockConflict, "stock changed since verification").
			WithDetails(map[string]any{
				"productId": line.ProductID,
				"requested": line.Qty,
				"available": product.StockQty,
			})
	}
}

func (c *Committer) readPostCommitStock(tx *gorm.DB, lines []cart.LineItem) (map[uuid.UUID]int, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}

	var products []models.Product
	err := tx.Select("id", "stock_qty").Where("id IN ?", ids).Find(&products).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to read post-commit stock")
	}

	stock := make(map[uuid.UUID]int, len(products))
	for _, p := range products {
		stock[p.ID] = p.StockQty
	}
	return stock, nil
}
