package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ledgerEntry struct {
	ID    int
	Label string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dbclient_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&ledgerEntry{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func countEntries(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := conn.Model(&ledgerEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	conn := newTestDB(t)
	client := &Client{conn: conn}

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&ledgerEntry{Label: "kept"}).Error
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}
	if got := countEntries(t, conn); got != 1 {
		t.Fatalf("expected 1 entry, got %d", got)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	conn := newTestDB(t)
	client := &Client{conn: conn}

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&ledgerEntry{Label: "discarded"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return the callback error")
	}
	if got := countEntries(t, conn); got != 0 {
		t.Fatalf("expected rollback to leave 0 entries, got %d", got)
	}
}

func TestWithTxSurvivesCallerCancellation(t *testing.T) {
	conn := newTestDB(t)
	client := &Client{conn: conn}

	ctx, cancel := context.WithCancel(context.Background())
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		// Simulates the client connection dropping mid-transaction.
		cancel()
		return tx.Create(&ledgerEntry{Label: "survivor"}).Error
	})
	if err != nil {
		t.Fatalf("WithTx aborted on caller cancellation: %v", err)
	}
	if got := countEntries(t, conn); got != 1 {
		t.Fatalf("expected the unit of work to commit, got %d entries", got)
	}
}

func TestPing(t *testing.T) {
	client := &Client{conn: newTestDB(t)}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}
