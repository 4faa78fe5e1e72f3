package cron

import (
	"context"
	"testing"
	"time"

	"github.com/mavilaortega/caja-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sqliteRunner struct {
	db *gorm.DB
}

func (r sqliteRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newJobTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cron_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.SaleHeader{}, &models.SaleLine{}, &models.ProductSalesAverage{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedSaleLine(t *testing.T, db *gorm.DB, productID uuid.UUID, qty int, createdAt time.Time) {
	t.Helper()
	line := models.SaleLine{
		ID:             uuid.New(),
		SaleID:         uuid.New(),
		ProductID:      productID,
		Name:           "line",
		UnitPriceCents: 100,
		Qty:            qty,
		SubtotalCents:  int64(qty) * 100,
		CreatedAt:      createdAt,
	}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("seed sale line: %v", err)
	}
}

func TestSalesAverageJobRebuildsAverages(t *testing.T) {
	t.Parallel()

	db := newJobTestDB(t)
	now := time.Now().UTC()
	productID := uuid.New()

	// 60 units sold inside the 30 day window: 2.0 per day.
	seedSaleLine(t, db, productID, 25, now.Add(-24*time.Hour))
	seedSaleLine(t, db, productID, 35, now.Add(-48*time.Hour))
	// Outside the window, must not count.
	seedSaleLine(t, db, productID, 999, now.Add(-40*24*time.Hour))

	job, err := NewSalesAverageJob(SalesAverageJobParams{
		Logger:     newTestLogger(),
		DB:         sqliteRunner{db: db},
		WindowDays: 30,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var avg models.ProductSalesAverage
	if err := db.Where("product_id = ?", productID).First(&avg).Error; err != nil {
		t.Fatalf("read average: %v", err)
	}
	if !avg.AvgDailyQty.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected average 2, got %s", avg.AvgDailyQty)
	}
	if avg.WindowDays != 30 {
		t.Fatalf("expected window 30, got %d", avg.WindowDays)
	}
}

func TestSalesAverageJobDropsStaleRows(t *testing.T) {
	t.Parallel()

	db := newJobTestDB(t)
	staleProduct := uuid.New()

	// A leftover average for a product with no recent sales.
	stale := models.ProductSalesAverage{
		ProductID:   staleProduct,
		AvgDailyQty: decimal.NewFromInt(9),
		WindowDays:  30,
		ComputedAt:  time.Now().Add(-48 * time.Hour),
	}
	if err := db.Create(&stale).Error; err != nil {
		t.Fatalf("seed stale average: %v", err)
	}

	job, err := NewSalesAverageJob(SalesAverageJobParams{
		Logger: newTestLogger(),
		DB:     sqliteRunner{db: db},
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var count int64
	if err := db.Model(&models.ProductSalesAverage{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected stale averages removed, found %d rows", count)
	}
}

func TestSessionSweepJobReportsRemovals(t *testing.T) {
	t.Parallel()

	sweeper := &stubSweeper{removed: 3}
	job, err := NewSessionSweepJob(SessionSweepJobParams{
		Logger:   newTestLogger(),
		Registry: sweeper,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
}

type stubSweeper struct {
	removed int
	calls   int
}

func (s *stubSweeper) SweepIdle(ctx context.Context, now time.Time) int {
	s.calls++
	return s.removed
}
