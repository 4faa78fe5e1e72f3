package restock

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mavilaortega/caja-backend/pkg/db/models"
	"github.com/mavilaortega/caja-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:restock_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.ProductSalesAverage{}); err != nil {
		t.Fatalf("migrate averages: %v", err)
	}
	return db
}

func newTestAdvisor(t *testing.T, db *gorm.DB) Advisor {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	adv, err := NewAdvisor(db, logg, 5)
	if err != nil {
		t.Fatalf("new advisor: %v", err)
	}
	return adv
}

func seedAverage(t *testing.T, db *gorm.DB, productID uuid.UUID, avg string) {
	t.Helper()
	value, err := decimal.NewFromString(avg)
	if err != nil {
		t.Fatalf("parse average: %v", err)
	}
	row := models.ProductSalesAverage{
		ProductID:   productID,
		AvgDailyQty: value,
		WindowDays:  30,
		ComputedAt:  time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed average: %v", err)
	}
}

func TestThresholdForUsesSalesAverage(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	adv := newTestAdvisor(t, db)
	productID := uuid.New()
	seedAverage(t, db, productID, "12.5")

	got := adv.ThresholdFor(context.Background(), productID)
	if !got.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("expected threshold 12.5, got %s", got)
	}
}

func TestThresholdForFallsBackToDefault(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	adv := newTestAdvisor(t, db)

	// Never-sold product has no history row.
	got := adv.ThresholdFor(context.Background(), uuid.New())
	if !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected default threshold 5, got %s", got)
	}
}

func TestThresholdForDegradesOnReadFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	adv := newTestAdvisor(t, db)
	if err := db.Migrator().DropTable(&models.ProductSalesAverage{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	got := adv.ThresholdFor(context.Background(), uuid.New())
	if !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected default threshold on read failure, got %s", got)
	}
}

func TestShouldAlertBoundary(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	adv := newTestAdvisor(t, db)
	productID := uuid.New()
	seedAverage(t, db, productID, "10")

	tests := []struct {
		stock int
		want  bool
	}{
		{stock: 11, want: false},
		{stock: 10, want: true}, // fires at the threshold, not just below it
		{stock: 9, want: true},
		{stock: 0, want: true},
	}
	for _, tt := range tests {
		if got := adv.ShouldAlert(context.Background(), productID, tt.stock); got != tt.want {
			t.Fatalf("stock=%d: expected alert=%v got %v", tt.stock, tt.want, got)
		}
	}
}

func TestShouldAlertDefaultThresholdForUnsoldProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	adv := newTestAdvisor(t, db)

	if !adv.ShouldAlert(context.Background(), uuid.New(), 4) {
		t.Fatal("stock 4 with no history must alert against the default of 5")
	}
	if adv.ShouldAlert(context.Background(), uuid.New(), 6) {
		t.Fatal("stock 6 with no history must not alert")
	}
}
