package stock

import (
	"context"
	"testing"

	"github.com/mavilaortega/caja-backend/pkg/db/models"
	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:stockgate_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate products: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, stock int, active bool) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:             uuid.New(),
		SKU:            "sku-" + uuid.NewString()[:8],
		Name:           "Test Product",
		UnitPriceCents: 1000,
		StockQty:       stock,
		IsActive:       active,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func TestVerifyBoundary(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productID := seedProduct(t, db, 40, true)

	gate, err := NewGate(db)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	tests := []struct {
		qty  int
		want bool
	}{
		{qty: 1, want: true},
		{qty: 39, want: true},
		{qty: 40, want: true}, // equality passes
		{qty: 41, want: false},
		{qty: 50, want: false},
	}
	for _, tt := range tests {
		got, err := gate.Verify(ctx, productID, tt.qty)
		if err != nil {
			t.Fatalf("verify qty=%d: %v", tt.qty, err)
		}
		if got != tt.want {
			t.Fatalf("verify qty=%d: expected %v got %v", tt.qty, tt.want, got)
		}
	}
}

func TestVerifyUnknownProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	gate, err := NewGate(db)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	ok, err := gate.Verify(context.Background(), uuid.New(), 1)
	if ok {
		t.Fatal("unknown product must not verify")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestVerifyInactiveProductFailsClosed(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	productID := seedProduct(t, db, 100, false)
	gate, err := NewGate(db)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	ok, err := gate.Verify(context.Background(), productID, 1)
	if ok || err == nil {
		t.Fatalf("inactive product must fail closed, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyRejectsBadArguments(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	productID := seedProduct(t, db, 10, true)
	gate, err := NewGate(db)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	if _, err := gate.Verify(context.Background(), uuid.Nil, 1); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("nil product id should be a validation error, got %v", err)
	}
	if _, err := gate.Verify(context.Background(), productID, 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("zero qty should be a validation error, got %v", err)
	}
}

func TestVerifyPersistenceErrorFailsClosed(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	productID := seedProduct(t, db, 10, true)
	gate, err := NewGate(db)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	// Dropping the table forces a read failure underneath the gate.
	if err := db.Migrator().DropTable(&models.Product{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	ok, err := gate.Verify(context.Background(), productID, 1)
	if ok {
		t.Fatal("unreadable stock must be treated as insufficient")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
